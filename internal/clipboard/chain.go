package clipboard

// Clipboard viewer chain messages.
const (
	wmDestroy       = 0x0002
	wmClose         = 0x0010
	wmDrawClipboard = 0x0308
	wmChangeCBChain = 0x030D
)

// viewerChain holds one window's place in the clipboard viewer chain. Every
// viewer must pass chain messages on to the next one and repair its link
// when the next viewer leaves.
type viewerChain struct {
	next     uintptr
	onChange func()
	forward  func(next uintptr, msg uint32, wParam, lParam uintptr)
}

// handle processes a chain message and reports whether it was one.
func (c *viewerChain) handle(msg uint32, wParam, lParam uintptr) bool {
	switch msg {
	case wmDrawClipboard:
		if c.onChange != nil {
			c.onChange()
		}
		c.pass(msg, wParam, lParam)
		return true

	case wmChangeCBChain:
		// wParam is the window leaving the chain, lParam the one after it
		if wParam == c.next {
			c.next = lParam
		} else {
			c.pass(msg, wParam, lParam)
		}
		return true
	}
	return false
}

func (c *viewerChain) pass(msg uint32, wParam, lParam uintptr) {
	if c.next != 0 && c.forward != nil {
		c.forward(c.next, msg, wParam, lParam)
	}
}
