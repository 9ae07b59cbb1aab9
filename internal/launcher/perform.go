package launcher

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/chess10kp/winlaunch/internal/platform"
)

var (
	startProgram  = platform.Start
	openTarget    = platform.Open
	writeClipText = clipboard.WriteAll
)

// Perform runs one of the standard actions. Launchers call it from Execute
// for items whose action needs no launcher-specific handling.
func Perform(ctx context.Context, action ActionData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch a := action.(type) {
	case *LaunchAction:
		return startProgram(a.Path, a.Args)
	case *OpenAction:
		return openTarget(a.Target)
	case *URLAction:
		return openTarget(a.URL)
	case *CopyAction:
		if err := writeClipText(a.Text); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		return nil
	case nil:
		return fmt.Errorf("item has no action")
	default:
		return fmt.Errorf("unsupported action type '%s'", action.Type())
	}
}
