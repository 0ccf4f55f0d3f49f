package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailrelay/internal/config"
	"github.com/joshsymonds/mailrelay/internal/controller"
	"github.com/joshsymonds/mailrelay/internal/runtime"
)

func main() {
	cfgPath := flag.String("config", "/etc/mailrelay/config.yaml", "path to YAML config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		runtime.DefaultLogger().Error("mailrelayd failed", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := runtime.DefaultLogger()
	logger.Info("mailrelayd starting",
		"mailbox", cfg.Mailbox,
		"keyword", cfg.Keyword,
		"poll_interval", cfg.PollInterval,
		"relay_on_duration", cfg.RelayOnDuration,
		"relay_check_interval", cfg.RelayCheckInterval,
		"gpio_pin", cfg.GPIOPin,
	)

	drv, err := runtime.OpenRelay(cfg.GPIOPin, logger)
	if err != nil {
		return fmt.Errorf("open relay pin: %w", err)
	}
	// Leave the relay de-energized on the way out.
	defer drv.Set(false)

	client, tokens := runtime.NewMailClient(cfg, logger)

	// Warm up the token cache as a connectivity probe. Failure is not
	// fatal; the first poll cycle retries.
	if _, err := tokens.Token(ctx); err != nil {
		logger.Warn("token warm-up failed, will retry on first poll", "error", err)
	}

	svc := controller.NewService(client, drv, logger)
	spec := controller.Spec{
		Keyword:            cfg.Keyword,
		PollInterval:       cfg.PollInterval,
		RelayOnDuration:    cfg.RelayOnDuration,
		RelayCheckInterval: cfg.RelayCheckInterval,
		StartupSettle:      cfg.StartupSettle,
		SelfTestPulse:      cfg.SelfTestPulse,
		Tick:               cfg.Tick,
	}

	if err := svc.Run(ctx, spec); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run controller: %w", err)
	}
	logger.Info("mailrelayd stopped")
	return nil
}
