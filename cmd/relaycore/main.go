package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/relaycore/relaycore/internal/analytics"
	"github.com/relaycore/relaycore/internal/api"
	"github.com/relaycore/relaycore/internal/config"
	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/event"
	"github.com/relaycore/relaycore/internal/leaderelection"
	"github.com/relaycore/relaycore/internal/metrics"
	"github.com/relaycore/relaycore/internal/pipeline"
	"github.com/relaycore/relaycore/internal/queue"
	"github.com/relaycore/relaycore/internal/reload"
	"github.com/relaycore/relaycore/internal/scheduler"
	"github.com/relaycore/relaycore/internal/store/postgres"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`relaycore - event dispatch and task scheduling service

Usage:
  relaycore <command>

Commands:
  serve      Start the scheduler, enqueue pipeline, and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for reload bus and analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  INTERNAL_SECRET           Shared secret for internal endpoints (optional)
  TICK_INTERVAL             Scheduler tick interval (default: "5s")

  QUEUE_BACKEND             "memory", "redis", or "kafka" (default: "memory")
  QUEUE_BUFFER_SIZE         Memory queue buffer (default: "100")
  QUEUE_REDIS_KEY           Redis list key (default: "relaycore:events")
  KAFKA_BROKERS             Comma-separated broker list (required for kafka)
  KAFKA_TOPIC               Kafka topic (default: "relaycore.events")

  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  SHUTDOWN_TIMEOUT          Worker shutdown timeout (default: "30s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  LEADER_ENABLED            Advisory-lock leader election (default: "false")
  LEADER_LOCK_KEY           Shared lock key across replicas
  LEADER_RETRY_INTERVAL     Follower retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection ping interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare schema: %v\n", err)
		return exitRuntimeError
	}

	// Metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("relaycore: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("relaycore: METRICS_ENABLED not set; metrics disabled")
	}

	// Redis backs the reload bus and analytics when configured; without
	// it reload signals stay process-local.
	var redisClient *redis.Client
	var reloadBus reload.Publisher
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		reloadBus = reload.NewRedisBus(redisClient)
		log.Printf("relaycore: reload bus on redis (addr=%s)", cfg.RedisAddr)
	} else {
		reloadBus = reload.NewMemoryBus()
		log.Println("relaycore: REDIS_ADDR not set; reload signals are process-local")
	}

	// Queue adapter
	var q queue.Queue
	var memQueue *queue.Memory
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		q = queue.NewRedis(redisClient, cfg.QueueRedisKey)
		log.Printf("relaycore: queue backend redis (key=%s)", cfg.QueueRedisKey)
	case config.QueueBackendKafka:
		producer, err := queue.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to kafka: %v\n", err)
			return exitRuntimeError
		}
		defer producer.Close()
		q = queue.NewKafka(producer, cfg.KafkaTopic)
		log.Printf("relaycore: queue backend kafka (topic=%s)", cfg.KafkaTopic)
	default:
		memQueue = queue.NewMemory(cfg.QueueBufferSize)
		q = memQueue
		log.Printf("relaycore: queue backend memory (buffer=%d)", cfg.QueueBufferSize)
	}

	// Enqueue pipeline with process-wide dedup for the dispatch endpoint
	pipe := pipeline.New()
	if metricsSink != nil {
		pipe = pipe.WithMetrics(metricsSink)
	}
	if redisClient != nil {
		pipe = pipe.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Println("relaycore: analytics enabled")
	}
	dedup := event.NewSet()

	// Scheduler fires into the same pipeline. Scheduled events skip
	// content dedup: every fired task must reach the queue.
	emit := func(ctx context.Context, raw domain.RawDispatchInput) error {
		_, err := pipe.Enqueue(ctx, q, raw, pipeline.Options{})
		return err
	}

	sched := scheduler.New(scheduler.Config{TickInterval: cfg.TickInterval}, store, emit)
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	if err := sched.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load scheduled tasks: %v\n", err)
		return exitRuntimeError
	}

	// Leader election: with multiple replicas only the lock holder runs
	// the tick loop. Disabled, this replica always ticks.
	var electorWg sync.WaitGroup
	var cancelElector context.CancelFunc
	if cfg.LeaderEnabled {
		elector := leaderelection.New(
			db,
			cfg.LeaderLockKey,
			cfg.LeaderRetryInterval,
			cfg.LeaderHeartbeatInterval,
			func(ctx context.Context) {
				if err := sched.Start(); err != nil {
					log.Printf("relaycore: scheduler start after election: %v", err)
				}
			},
			sched.Stop,
		)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}

		var electorCtx context.Context
		electorCtx, cancelElector = context.WithCancel(context.Background())
		electorWg.Add(1)
		go func() {
			defer electorWg.Done()
			elector.Run(electorCtx)
		}()
		log.Printf("relaycore: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		if err := sched.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start scheduler: %v\n", err)
			return exitRuntimeError
		}
	}

	// Memory queue needs an in-process consumer or it fills up.
	var drainWg sync.WaitGroup
	var cancelDrain context.CancelFunc
	if memQueue != nil {
		var drainCtx context.Context
		drainCtx, cancelDrain = context.WithCancel(context.Background())
		drainWg.Add(1)
		go func() {
			defer drainWg.Done()
			drainMemoryQueue(drainCtx, memQueue)
		}()
	}

	apiHandler := api.NewHandler(sched, pipe, q, dedup, cfg.InternalSecret).
		WithHealthChecker(store).
		WithPublisher(reloadBus)
	if metricsSink != nil {
		apiHandler = apiHandler.WithMetrics(metricsSink)
	}

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("relaycore: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("relaycore: http server error: %v", err)
		}
	}()

	log.Printf("relaycore: started (tick=%s, http=%s, queue=%s)", cfg.TickInterval, cfg.HTTPAddr, cfg.QueueBackend)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("relaycore: received signal %v, shutting down", received)

	// Phase 1: Stop the scheduler so no new events are emitted. With
	// leader election the elector's demotion path stops it.
	if cancelElector != nil {
		log.Println("relaycore: stopping leader election...")
		cancelElector()
		electorWg.Wait()
	}
	log.Println("relaycore: stopping scheduler...")
	sched.Stop()
	log.Println("relaycore: scheduler stopped")

	// Phase 2: Stop the HTTP server so no new dispatches arrive.
	log.Println("relaycore: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("relaycore: http server shutdown error: %v", err)
	}
	log.Println("relaycore: http server stopped")

	// Phase 3: Drain the in-process queue consumer.
	if cancelDrain != nil {
		log.Println("relaycore: stopping queue drain...")
		cancelDrain()
		drainWg.Wait()
		log.Println("relaycore: queue drain stopped")
	}

	log.Println("relaycore: stopped")
	return exitSuccess
}

// drainMemoryQueue consumes the in-memory queue and logs deliveries.
// Deployments that need real downstream delivery run the redis or kafka
// backend and consume out of process.
func drainMemoryQueue(ctx context.Context, q *queue.Memory) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.Events():
			log.Printf("queue: delivered event id=%s source=%s type=%s", e.ID, e.Source, e.Type)
		}
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("relaycore version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
