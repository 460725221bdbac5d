package main

import (
	"anyvoice/audio"
	"anyvoice/clipboard"
	"anyvoice/history"
	"anyvoice/log"
	"anyvoice/pipeline"
	"anyvoice/recorder"
	"anyvoice/settings"
	"anyvoice/transcriber"
	"anyvoice/window"

	"github.com/samber/do/v2"
)

// setupDI builds the service graph. Values that depend on the command line
// or the platform are provided here; everything else comes from each
// package's RegisterDI.
func setupDI(store settings.Store, overrides settings.Overrides, actx audio.Context, recOpts recorder.Options) do.Injector {
	injector := do.New()

	do.ProvideValue[settings.Store](injector, store)
	do.ProvideValue(injector, overrides)
	do.ProvideValue(injector, actx)
	do.ProvideValue(injector, recOpts)
	if b := guiBridge(); b != nil {
		do.ProvideValue(injector, b)
	}

	settings.RegisterDI(injector)
	transcriber.RegisterDI(injector)
	clipboard.RegisterDI(injector)
	recorder.RegisterDI(injector)
	window.RegisterDI(injector)
	history.RegisterDI(injector)
	provideHistoryPath(injector)
	providePipelinePorts(injector)
	pipeline.RegisterDI(injector)

	return injector
}

func provideHistoryPath(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (history.Path, error) {
		m := do.MustInvoke[*settings.Manager](i)
		if p := m.Get().HistoryPath; p != "" {
			return history.Path(p), nil
		}
		p, err := history.DefaultPath()
		return history.Path(p), err
	})
}

// providePipelinePorts exposes the concrete services under the interfaces
// the pipeline asks for, plus its Config.
func providePipelinePorts(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (pipeline.Transcriber, error) {
		return do.MustInvoke[*transcriber.Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (pipeline.Corrector, error) {
		return do.MustInvoke[*transcriber.Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (pipeline.Clipboard, error) {
		return do.MustInvoke[*clipboard.System](i), nil
	})
	do.Provide(injector, func(i do.Injector) (pipeline.Config, error) {
		m := do.MustInvoke[*settings.Manager](i)
		s := m.Get()
		cfg := pipeline.Config{
			Language:       m.Language,
			Credential:     m.APIKey,
			Provider:       s.Provider,
			RequestTimeout: s.RequestTimeout,
		}
		if hist, err := do.Invoke[*history.Store](i); err == nil {
			cfg.OnFinish = hist.Record
		} else {
			log.Warnf("history disabled: %v", err)
		}
		return cfg, nil
	})
}
