package settings

import (
	"github.com/samber/do/v2"
)

// RegisterDI expects a Store and Overrides to be provided by the caller.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		store := do.MustInvoke[Store](i)
		overrides := do.MustInvoke[Overrides](i)
		return NewManager(store, overrides)
	})
}
