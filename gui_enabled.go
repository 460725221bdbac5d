//go:build gui

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"anyvoice/audio"
	"anyvoice/gui"
	"anyvoice/window"
)

var guiApp *gui.App

// Audio context initialized on main thread for macOS Core Audio compatibility
var guiAudioCtx audio.Context

func initGUI() {
	var err error
	guiAudioCtx, err = audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}

	// Lock this goroutine to OS thread for Fyne/GLFW
	runtime.LockOSThread()

	guiApp = gui.NewApp(func() {
		run()
	})
	if err := gui.Run(guiApp); err != nil {
		guiAudioCtx.Close()
		panic(err)
	}
}

func guiSink() EventSink {
	if guiApp == nil {
		return nil
	}
	return guiApp
}

func guiBridge() window.Bridge {
	if guiApp == nil {
		return nil
	}
	return guiApp.Bridge()
}

// guiBind connects the window's controls to a.
func guiBind(ctx context.Context, a *app) {
	if guiApp == nil {
		return
	}
	guiApp.SetActions(gui.Actions{
		ToggleRecording: func() { a.toggleRecording(ctx) },
		Cancel:          a.cancel,
		CopyAgain:       func() { a.copyAgain(ctx) },
		SetAlwaysOnTop: func(on bool) {
			if err := a.toggle.Set(ctx, on); err != nil {
				a.sink.Notice("Could not change always-on-top: " + err.Error())
			}
			a.sink.AlwaysOnTop(a.toggle.On())
		},
	})
}

func guiQuit() {
	if guiApp != nil {
		guiApp.Quit()
	}
}
