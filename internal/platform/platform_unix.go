//go:build unix

package platform

import (
	"os/exec"
	"runtime"
	"syscall"
)

func open(target string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	return start(opener, []string{target})
}

func start(path string, args []string) error {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
