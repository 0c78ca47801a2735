package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/provider/guerrilla"
	"github.com/nhle/tempvortex/internal/provider/mailtm"
	"github.com/nhle/tempvortex/internal/provider/onesecmail"
)

// NewRegistry builds one adapter per provider from cfg.
func NewRegistry(cfg model.ProvidersConfig, log *zap.Logger) (*provider.Registry, error) {
	adapters := make([]provider.Provider, 0, len(model.ProviderRotation))
	for _, id := range model.ProviderRotation {
		pc := cfg.For(id)
		opts := clientOptions(pc)

		var adapter provider.Provider
		switch id {
		case model.ProviderOneSecMail:
			adapter = onesecmail.NewAdapter(pc.BaseURL, opts...)
		case model.ProviderMailTM:
			adapter = mailtm.NewAdapter(pc.BaseURL, opts...)
		case model.ProviderGuerrilla:
			adapter = guerrilla.NewAdapter(pc.BaseURL, opts...)
		}
		adapters = append(adapters, adapter)

		log.Debug("provider registered",
			zap.String("provider", string(id)),
			zap.String("base_url", pc.BaseURL),
			zap.Float64("rate_limit", pc.RateLimit),
		)
	}
	return provider.NewRegistry(adapters...)
}

func clientOptions(pc model.ProviderConfig) []provider.ClientOption {
	var opts []provider.ClientOption
	if pc.TimeoutSec > 0 {
		opts = append(opts, provider.WithTimeout(time.Duration(pc.TimeoutSec)*time.Second))
	}
	if pc.RateLimit > 0 {
		opts = append(opts, provider.WithRateLimit(pc.RateLimit))
	}
	return opts
}
