// Package worker is the shared bootstrap for worker processes. It owns
// the startup order (config, init hook, dispatch client, start hook,
// reload subscription), applies reload signals, and runs the bounded
// shutdown when the context ends.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relaycore/relaycore/internal/config"
	"github.com/relaycore/relaycore/internal/dispatch"
	"github.com/relaycore/relaycore/internal/reload"
)

// DefaultShutdownTimeout bounds the Stop hook when Options leaves
// ShutdownTimeout zero.
const DefaultShutdownTimeout = 30 * time.Second

var ErrNoLoadConfig = errors.New("worker: Options.LoadConfig is required")

// Hooks are the worker-specific callbacks the bootstrap drives. Any nil
// hook is skipped.
type Hooks struct {
	// Init runs after config load, before the dispatch client exists.
	// Open connections and validate worker-specific settings here.
	Init func(ctx context.Context, cfg *config.Config) error

	// Start begins the worker's main work. It must not block: launch
	// goroutines and return.
	Start func(ctx context.Context, client *dispatch.Client) error

	// OnReload applies a freshly loaded config. The client is the same
	// instance passed to Start; in-flight dispatches are unaffected. A
	// reload failure stops the worker.
	OnReload func(ctx context.Context, client *dispatch.Client, cfg *config.Config) error

	// Stop tears the worker down. It runs under the shutdown timeout.
	Stop func(ctx context.Context) error
}

type Options struct {
	// LoadConfig is called at startup and again on every reload signal.
	LoadConfig func() (*config.Config, error)

	// Bus delivers reload signals. Nil disables reload handling.
	Bus reload.Bus

	// ReloadScopes filters which signals trigger OnReload. Empty means
	// all scopes.
	ReloadScopes []string

	Hooks Hooks

	// ShutdownTimeout bounds the Stop hook. Zero means
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Run executes the worker lifecycle and blocks until ctx ends or a
// startup or reload step fails. The caller decides process exit codes;
// any non-nil return means the worker did not shut down cleanly of its
// own accord.
func Run(ctx context.Context, opts Options) error {
	if opts.LoadConfig == nil {
		return ErrNoLoadConfig
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}

	if opts.Hooks.Init != nil {
		if err := opts.Hooks.Init(ctx, cfg); err != nil {
			return fmt.Errorf("worker: init: %w", err)
		}
	}

	client := dispatch.NewClient(cfg.APIBaseURL, cfg.InternalSecret)

	if opts.Hooks.Start != nil {
		if err := opts.Hooks.Start(ctx, client); err != nil {
			return fmt.Errorf("worker: start: %w", err)
		}
	}
	log.Printf("worker: started, dispatch=%s", client.BaseURL())

	var signals <-chan reload.Signal
	if opts.Bus != nil && opts.Hooks.OnReload != nil {
		sub, err := opts.Bus.Subscribe(ctx, opts.ReloadScopes...)
		if err != nil {
			return fmt.Errorf("worker: subscribe reload: %w", err)
		}
		defer sub.Close()
		signals = sub.Signals()
		log.Printf("worker: watching reload scopes %v", opts.ReloadScopes)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown(opts)
		case sig, ok := <-signals:
			if !ok {
				// Bus gone; treat like a shutdown request.
				return shutdown(opts)
			}
			log.Printf("worker: reload signal scope=%s", sig.Scope)
			fresh, err := opts.LoadConfig()
			if err != nil {
				return fmt.Errorf("worker: reload config: %w", err)
			}
			if err := opts.Hooks.OnReload(ctx, client, fresh); err != nil {
				return fmt.Errorf("worker: apply reload: %w", err)
			}
			log.Println("worker: reload applied")
		}
	}
}

func shutdown(opts Options) error {
	if opts.Hooks.Stop == nil {
		log.Println("worker: stopped")
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()

	if err := opts.Hooks.Stop(stopCtx); err != nil {
		return fmt.Errorf("worker: stop: %w", err)
	}
	log.Println("worker: stopped")
	return nil
}
