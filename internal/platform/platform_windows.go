//go:build windows

package platform

import (
	"golang.org/x/sys/windows"
)

func shellExecute(file, args string) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return err
	}
	filePtr, err := windows.UTF16PtrFromString(file)
	if err != nil {
		return err
	}
	var argsPtr *uint16
	if args != "" {
		if argsPtr, err = windows.UTF16PtrFromString(args); err != nil {
			return err
		}
	}
	return windows.ShellExecute(0, verb, filePtr, argsPtr, nil, windows.SW_SHOWNORMAL)
}

func open(target string) error {
	return shellExecute(target, "")
}

// start goes through the shell as well so .lnk, .url and .appref-ms
// entries resolve like a double click.
func start(path string, args []string) error {
	return shellExecute(path, windows.ComposeCommandLine(args))
}
