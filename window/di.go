package window

import (
	"runtime"

	"anyvoice/settings"

	"github.com/samber/do/v2"
)

// RegisterDI uses a Bridge from the injector when one was provided, and
// the platform bridge otherwise.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		m := do.MustInvoke[*settings.Manager](i)
		bridge, err := do.Invoke[Bridge](i)
		if err != nil || bridge == nil {
			bridge = NewPlatformBridge()
		}
		return New(runtime.GOOS, bridge, WithTimeout(m.Get().BridgeTimeout)), nil
	})
	do.Provide(injector, func(i do.Injector) (*Toggle, error) {
		m := do.MustInvoke[*settings.Manager](i)
		svc := do.MustInvoke[*Service](i)
		return NewToggle(svc, m.Get().AlwaysOnTop, m.SetAlwaysOnTop), nil
	})
}
