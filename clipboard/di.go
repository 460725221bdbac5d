package clipboard

import (
	"anyvoice/settings"

	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*System, error) {
		m := do.MustInvoke[*settings.Manager](i)
		return New(m.Get().AutoPaste), nil
	})
}
