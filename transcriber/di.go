package transcriber

import (
	"anyvoice/settings"

	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Client, error) {
		m := do.MustInvoke[*settings.Manager](i)
		p, err := ProviderByName(m.Get().Provider)
		if err != nil {
			return nil, err
		}
		return NewClient(p, m.APIKey), nil
	})
}
