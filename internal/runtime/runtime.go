// internal/runtime/runtime.go — wires config to the concrete clients
// and the GPIO host.
package runtime

import (
	"fmt"
	"log/slog"
	"os"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/joshsymonds/mailrelay/internal/auth"
	"github.com/joshsymonds/mailrelay/internal/config"
	"github.com/joshsymonds/mailrelay/internal/graph"
	"github.com/joshsymonds/mailrelay/internal/relay"
)

// NewMailClient builds the token manager and Graph client from config.
func NewMailClient(cfg *config.Config, logger *slog.Logger) (graph.Client, *auth.Manager) {
	tokens := auth.NewManager(cfg.IdentityHost, cfg.Tenant, cfg.ClientID, cfg.ClientSecret, cfg.GraphHost, logger)
	client := graph.NewHTTPClient("https://"+cfg.GraphHost, cfg.Mailbox, tokens, logger)
	return client, tokens
}

// OpenRelay initializes the GPIO host and returns a driver for the
// configured pin.
func OpenRelay(pinName string, logger *slog.Logger) (*relay.Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init gpio host: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}
	return relay.NewDriver(pin, logger), nil
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
