package pipeline

import (
	"github.com/samber/do/v2"
)

// RegisterDI expects the four collaborators and a Config to be provided.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Pipeline, error) {
		rec := do.MustInvoke[Recorder](i)
		tr := do.MustInvoke[Transcriber](i)
		co := do.MustInvoke[Corrector](i)
		clip := do.MustInvoke[Clipboard](i)
		cfg := do.MustInvoke[Config](i)
		return New(rec, tr, co, clip, cfg), nil
	})
}
