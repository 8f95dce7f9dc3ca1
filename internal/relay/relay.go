package relay

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

// New returns the Sender selected by cfg.Kind.
func New(cfg config.Relay, log *zap.Logger) (contact.Sender, error) {
	switch cfg.Kind {
	case config.RelayFormspree, "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultEndpoint
		}
		return NewFormspree(endpoint, cfg.Timeout, log), nil
	case config.RelaySMTP:
		return NewMailer(cfg.SMTP, log), nil
	default:
		return nil, fmt.Errorf("relay: unknown kind %q", cfg.Kind)
	}
}
