//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// onMainThread runs fn with the OS main thread reserved for the hotkey
// event loop, which macOS and Windows require.
func onMainThread(fn func()) { mainthread.Init(fn) }
