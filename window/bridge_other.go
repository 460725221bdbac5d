//go:build !windows

package window

// NewPlatformBridge returns nil: without a GUI window there is nothing to
// elevate outside Windows.
func NewPlatformBridge() Bridge {
	return nil
}
