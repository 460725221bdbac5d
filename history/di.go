package history

import (
	"context"

	"github.com/samber/do/v2"
)

// Path is the database location handed to RegisterDI.
type Path string

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Store, error) {
		path := do.MustInvoke[Path](i)
		return Open(context.Background(), string(path))
	})
}
