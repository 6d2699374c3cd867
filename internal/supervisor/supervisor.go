// Package supervisor sequences process startup (spec §5): load and
// validate configuration, initialize the DNS resolver, compose and start
// every configured endpoint, then block until shutdown. Logging is
// initialized by the caller (cmd) before Run.
// Grounded on paqet's internal/client.Client.Start: construct every
// long-lived component up front, spawn its background goroutines, log a
// summary line, and tear down on ctx.Done.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"midori/internal/conf"
	"midori/internal/endpoint"
	"midori/internal/flog"
	"midori/internal/resolver"
)

// Run loads configPath, starts every configured endpoint, and blocks
// until an interrupt/TERM signal arrives or an endpoint fails fatally.
// Configuration or bind failures call flog.Fatalf and exit the process
// (spec §5's InvalidConfig/Bind startup errors); runtime errors after
// startup are logged and cause a clean shutdown instead.
func Run(configPath string) error {
	cfg, err := conf.Load(configPath)
	if err != nil {
		flog.Fatalf("supervisor: loading config: %v", err)
	}

	resolver.Init(cfg.DNSMode, cfg.DNSServers)

	eps := make([]*endpoint.Endpoint, 0, len(cfg.Endpoints))
	for i, ecfg := range cfg.Endpoints {
		ep, err := endpoint.New(ecfg)
		if err != nil {
			for _, started := range eps {
				started.Close()
			}
			flog.Fatalf("supervisor: endpoint %d (%s): %v", i, ecfg.Listen.Addr, err)
		}
		eps = append(eps, ep)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errCh := make(chan error, len(eps))
	for _, ep := range eps {
		wg.Add(1)
		go func(ep *endpoint.Endpoint) {
			defer wg.Done()
			if err := ep.Serve(); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}(ep)
	}

	flog.Infof("supervisor: %d endpoint(s) started", len(eps))

	select {
	case <-ctx.Done():
		flog.Infof("supervisor: shutdown signal received")
	case err := <-errCh:
		flog.Errorf("supervisor: endpoint failed: %v", err)
	}

	for _, ep := range eps {
		ep.Close()
	}
	wg.Wait()

	flog.Infof("supervisor: shutdown complete")
	if dropped := flog.Dropped(); dropped > 0 {
		flog.Errorf("supervisor: %d log lines dropped under load", dropped)
	}
	return nil
}

// ValidateOnly loads and validates configPath without starting any
// endpoint. No CLI command calls it.
func ValidateOnly(configPath string) error {
	if _, err := conf.Load(configPath); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}
