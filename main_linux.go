//go:build linux

package main

// evdev and pulse have no main-thread requirement on Linux.
func onMainThread(fn func()) { fn() }
