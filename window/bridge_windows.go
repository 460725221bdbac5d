//go:build windows

package window

import (
	"context"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetWindowPos        = user32.NewProc("SetWindowPos")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procShowWindow          = user32.NewProc("ShowWindow")
	procGetConsoleWindow    = kernel32.NewProc("GetConsoleWindow")
)

const (
	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpShowWindow = 0x0040
	swRestore     = 9
)

var (
	hwndTopmost   = ^uintptr(0) // (HWND)-1
	hwndNoTopmost = ^uintptr(1) // (HWND)-2
)

type user32Bridge struct {
	handle func() uintptr
}

// NewPlatformBridge targets the console window hosting the process.
func NewPlatformBridge() Bridge {
	return NewHandleBridge(consoleWindow)
}

// NewHandleBridge targets whatever window handle returns.
func NewHandleBridge(handle func() uintptr) Bridge {
	return &user32Bridge{handle: handle}
}

func consoleWindow() uintptr {
	if procGetConsoleWindow.Find() != nil {
		return 0
	}
	h, _, _ := procGetConsoleWindow.Call()
	return h
}

func (b *user32Bridge) Name() string { return "user32" }

func (b *user32Bridge) hwnd() (uintptr, error) {
	if err := procSetWindowPos.Find(); err != nil {
		return 0, &NativeBridgeError{Code: CodeWindowHandle, Message: err.Error()}
	}
	h := b.handle()
	if h == 0 {
		return 0, &NativeBridgeError{Code: CodeWindowNotFound, Message: "no window handle for this process"}
	}
	return h, nil
}

func (b *user32Bridge) SetAlwaysOnTop(_ context.Context, enabled bool) error {
	h, err := b.hwnd()
	if err != nil {
		return err
	}
	after := hwndNoTopmost
	if enabled {
		after = hwndTopmost
	}
	r, _, callErr := procSetWindowPos.Call(h, after, 0, 0, 0, 0, swpNoMove|swpNoSize|swpShowWindow)
	if r == 0 {
		return &NativeBridgeError{Code: CodeSetWindowPos, Message: callErr.Error()}
	}
	return nil
}

func (b *user32Bridge) BringToFront(_ context.Context) error {
	h, err := b.hwnd()
	if err != nil {
		return err
	}
	procShowWindow.Call(h, swRestore)
	r, _, callErr := procSetForegroundWindow.Call(h)
	if r == 0 {
		return &NativeBridgeError{Code: CodeException, Message: callErr.Error()}
	}
	return nil
}
