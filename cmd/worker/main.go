package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/relaycore/relaycore/internal/config"
	"github.com/relaycore/relaycore/internal/dispatch"
	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/reload"
	"github.com/relaycore/relaycore/internal/worker"
)

// The stdin adapter is a placeholder channel: it turns input lines into
// dispatched events so the worker lifecycle can be exercised end to end.
// Real deployments replace it with a channel adapter (Slack, GitHub, ...).
func main() {
	cfg := config.Load()

	var bus reload.Bus
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		bus = reload.NewRedisBus(client)
	} else {
		// WARNING: without Redis the worker cannot receive reload
		// signals published by the core service.
		log.Println("worker: WARNING - REDIS_ADDR not set; reload signals will not be received")
		bus = reload.NewMemoryBus()
	}

	adapter := &stdinAdapter{}

	opts := worker.Options{
		LoadConfig: func() (*config.Config, error) {
			fresh := config.Load()
			return &fresh, nil
		},
		Bus:          bus,
		ReloadScopes: cfg.ReloadScopes,
		Hooks: worker.Hooks{
			Init:     adapter.init,
			Start:    adapter.start,
			OnReload: adapter.onReload,
			Stop:     adapter.stop,
		},
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx, opts); err != nil {
		log.Printf("worker: %v", err)
		os.Exit(1)
	}
}

type stdinAdapter struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (a *stdinAdapter) init(ctx context.Context, cfg *config.Config) error {
	log.Printf("worker: stdin adapter targeting %s", cfg.APIBaseURL)
	return nil
}

func (a *stdinAdapter) start(ctx context.Context, client *dispatch.Client) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			id, err := client.Dispatch(runCtx, domain.RawDispatchInput{
				Source:  "stdin",
				Type:    "line.received",
				Payload: map[string]any{"text": line},
			})
			if err != nil {
				log.Printf("worker: dispatch failed: %v", err)
				continue
			}
			log.Printf("worker: dispatched event id=%s", id)
		}
	}()
	return nil
}

func (a *stdinAdapter) onReload(ctx context.Context, client *dispatch.Client, cfg *config.Config) error {
	// The stdin adapter has no per-channel settings; a reload only
	// confirms the endpoint is unchanged for the live client.
	log.Printf("worker: reload applied, dispatch endpoint %s", client.BaseURL())
	return nil
}

func (a *stdinAdapter) stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	// Scanner blocks on stdin; do not wait for it past the deadline.
	select {
	case <-a.done:
	case <-ctx.Done():
	}
	return nil
}
