package recorder

import (
	"anyvoice/audio"
	"anyvoice/pipeline"

	"github.com/samber/do/v2"
)

type Options struct {
	Device *audio.DeviceInfo
	Dir    string
}

// RegisterDI provides the recorder as a pipeline.Recorder. It expects an
// audio.Context and Options to be provided.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (pipeline.Recorder, error) {
		actx := do.MustInvoke[audio.Context](i)
		opts := do.MustInvoke[Options](i)
		return New(actx, opts.Device, opts.Dir), nil
	})
}
