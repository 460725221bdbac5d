//go:build gui

package gui

import (
	"context"

	"anyvoice/window"

	"fyne.io/fyne/v2"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Bridge returns the native bridge for the app window. GLFW calls have to
// run on the fyne main loop, so each call is dispatched there and waited on.
func (a *App) Bridge() window.Bridge {
	return &glfwBridge{app: a}
}

var currentContext = glfw.GetCurrentContext

// nativeWindow resolves the GLFW window once and keeps it. Outside a paint
// the current context may be unset. Must run on the main loop.
func (a *App) nativeWindow() *glfw.Window {
	if a.glfwWin == nil {
		a.glfwWin = currentContext()
	}
	return a.glfwWin
}

type glfwBridge struct {
	app *App
}

func (b *glfwBridge) Name() string { return "glfw" }

func (b *glfwBridge) do(ctx context.Context, fn func(w *glfw.Window) error) error {
	done := make(chan error, 1)
	go fyne.DoAndWait(func() {
		w := b.app.nativeWindow()
		if w == nil {
			done <- &window.NativeBridgeError{Code: window.CodeWindowNotFound, Message: "no GLFW window"}
			return
		}
		done <- fn(w)
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *glfwBridge) SetAlwaysOnTop(ctx context.Context, enabled bool) error {
	v := glfw.False
	if enabled {
		v = glfw.True
	}
	return b.do(ctx, func(w *glfw.Window) error {
		w.SetAttrib(glfw.Floating, v)
		return nil
	})
}

func (b *glfwBridge) BringToFront(ctx context.Context) error {
	return b.do(ctx, func(w *glfw.Window) error {
		w.Show()
		w.Focus()
		return nil
	})
}
