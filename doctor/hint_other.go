//go:build !linux

package doctor

func pasteHint() string { return "" }
