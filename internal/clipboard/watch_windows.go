//go:build windows

package clipboard

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procRegisterClassExW     = user32.NewProc("RegisterClassExW")
	procUnregisterClassW     = user32.NewProc("UnregisterClassW")
	procCreateWindowExW      = user32.NewProc("CreateWindowExW")
	procDestroyWindow        = user32.NewProc("DestroyWindow")
	procDefWindowProcW       = user32.NewProc("DefWindowProcW")
	procGetMessageW          = user32.NewProc("GetMessageW")
	procTranslateMessage     = user32.NewProc("TranslateMessage")
	procDispatchMessageW     = user32.NewProc("DispatchMessageW")
	procPostMessageW         = user32.NewProc("PostMessageW")
	procSendMessageW         = user32.NewProc("SendMessageW")
	procPostQuitMessage      = user32.NewProc("PostQuitMessage")
	procSetClipboardViewer   = user32.NewProc("SetClipboardViewer")
	procChangeClipboardChain = user32.NewProc("ChangeClipboardChain")
)

// HWND_MESSAGE parent for message-only windows
const hwndMessage = ^uintptr(2)

const className = "WinlaunchClipboardViewer"

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
	IconSm     windows.Handle
}

type point struct {
	X, Y int32
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// Only one viewer window exists per process; the window procedure finds it
// here.
var (
	activeWatcher   atomic.Pointer[Watcher]
	wndProcCallback = windows.NewCallback(wndProc)
)

type platformWatcher struct {
	hwnd    uintptr
	chain   viewerChain
	changed chan struct{}
	done    chan struct{}
}

func (w *Watcher) start() error {
	if !activeWatcher.CompareAndSwap(nil, w) {
		return errors.New("another clipboard watcher is running")
	}

	w.changed = make(chan struct{}, 1)
	w.done = make(chan struct{})
	ready := make(chan error, 1)

	go w.messageLoop(ready)
	if err := <-ready; err != nil {
		activeWatcher.CompareAndSwap(w, nil)
		return err
	}

	// Reading the clipboard inside the window procedure would block the chain
	go func(changed <-chan struct{}) {
		for range changed {
			w.capture()
		}
	}(w.changed)
	return nil
}

func (w *Watcher) messageLoop(ready chan<- error) {
	defer close(w.done)

	// Window messages are delivered to the creating thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	name, err := windows.UTF16PtrFromString(className)
	if err != nil {
		ready <- err
		return
	}

	var instance windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &instance); err != nil {
		ready <- fmt.Errorf("get module handle: %w", err)
		return
	}

	wc := wndClassEx{
		WndProc:   wndProcCallback,
		Instance:  instance,
		ClassName: name,
	}
	wc.Size = uint32(unsafe.Sizeof(wc))
	if r, _, err := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); r == 0 {
		ready <- fmt.Errorf("register window class: %w", err)
		return
	}
	defer procUnregisterClassW.Call(uintptr(unsafe.Pointer(name)), uintptr(instance))

	hwnd, _, err := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(name)),
		0, 0, 0, 0, 0,
		hwndMessage, 0, uintptr(instance), 0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("create viewer window: %w", err)
		return
	}

	w.hwnd = hwnd
	w.chain = viewerChain{
		onChange: w.notify,
		forward:  sendMessage,
	}
	next, _, _ := procSetClipboardViewer.Call(hwnd)
	w.chain.next = next
	ready <- nil

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (w *Watcher) notify() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *Watcher) stop() error {
	procPostMessageW.Call(w.hwnd, wmClose, 0, 0)
	<-w.done
	close(w.changed)
	activeWatcher.CompareAndSwap(w, nil)
	return nil
}

func sendMessage(hwnd uintptr, message uint32, wParam, lParam uintptr) {
	procSendMessageW.Call(hwnd, uintptr(message), wParam, lParam)
}

func wndProc(hwnd, message, wParam, lParam uintptr) uintptr {
	if w := activeWatcher.Load(); w != nil && w.hwnd == hwnd {
		if w.chain.handle(uint32(message), wParam, lParam) {
			return 0
		}
		switch uint32(message) {
		case wmClose:
			procChangeClipboardChain.Call(hwnd, w.chain.next)
			procDestroyWindow.Call(hwnd)
			return 0
		case wmDestroy:
			procPostQuitMessage.Call(0)
			return 0
		}
	}
	r, _, _ := procDefWindowProcW.Call(hwnd, message, wParam, lParam)
	return r
}
