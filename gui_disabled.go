//go:build !gui

package main

import (
	"context"
	"fmt"
	"os"

	"anyvoice/audio"
	"anyvoice/window"
)

// Stubs for builds without the desktop window.
var guiAudioCtx audio.Context

func initGUI() {
	fmt.Fprintln(os.Stderr, "anyvoice: built without GUI support (rebuild with -tags gui)")
	os.Exit(1)
}

func guiSink() EventSink { return nil }

func guiBridge() window.Bridge { return nil }

func guiBind(context.Context, *app) {}

func guiQuit() {}
