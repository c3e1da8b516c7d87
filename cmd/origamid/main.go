package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/xaenou/origami-chat/pkg/cache"
	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/limiter"
	"github.com/xaenou/origami-chat/pkg/llm"
	"github.com/xaenou/origami-chat/pkg/relay"
	"github.com/xaenou/origami-chat/pkg/transport"
	"github.com/xaenou/origami-chat/pkg/usage"
)

func main() {
	// 1. Load config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		log.Fatal("Config could not be read")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Redis (if enabled)
	var rdb *cache.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		fmt.Println("✅ Connected to Redis successfully!")
	}

	// 3. Usage log
	var store usage.Store
	if rdb != nil {
		store = usage.NewRedisStore(rdb, cfg.Retention())
		fmt.Println("✅ Usage log backed by Redis")
	} else {
		store = usage.NewMemoryStore()
		fmt.Println("⚠️  Redis disabled: usage log is in-memory and resets on restart")
	}

	// 4. Retention sweep (once at startup, then periodically)
	sweeper := usage.NewSweeper(store, func() time.Duration {
		if c := cfgStore.Get(); c != nil {
			return c.Retention()
		}
		return 24 * time.Hour
	}, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	// 5. Transport bridge
	msgr := transport.NewBridge(cfg.Transport.BridgeURL, cfg.Transport.Token)
	fmt.Printf("✅ Transport bridge: %s\n", cfg.Transport.BridgeURL)

	// 6. Optional reply cache
	var replies *relay.ReplyCache
	if cfg.ReplyCache.Enabled && rdb != nil {
		replies = relay.NewReplyCache(rdb, cfg.ReplyCache.TTL, logger)
		fmt.Println("✅ Reply caching enabled")
	}

	// 7. One orchestrator per provider
	limits := limiter.New(store, logger)
	orchestrators := make(map[string]*relay.Orchestrator, len(cfg.Providers))
	for name, pcfg := range cfg.Providers {
		client := llm.NewClient(name, pcfg)
		orchestrators[name] = relay.NewOrchestrator(name, cfgStore, store, limits, client, msgr, replies, logger)
		fmt.Printf("✅ Provider %q ready (trigger: %s %q, model: %s)\n",
			name, pcfg.Trigger.Kind, pcfg.Trigger.Value, pcfg.Model)
	}

	guard := relay.NewFloodGuard(cfg.FloodGuard, rdb, logger)
	if cfg.FloodGuard.Enabled {
		fmt.Printf("✅ Flood guard: %d messages/minute per sender\n", cfg.FloodGuard.PerMinute)
	}

	dispatcher := relay.NewDispatcher(cfgStore, orchestrators, guard, logger)

	// 8. HTTP surface: inbound webhook, metrics, health
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "usage store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/inbound", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var msg relay.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		// Relaying outlives the webhook request; ack immediately.
		go dispatcher.HandleMessage(context.WithoutCancel(ctx), msg)
		w.WriteHeader(http.StatusAccepted)
	})

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8090"
	}
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Println("\n🚀 Origami Chat Active:")
	fmt.Println("   - Inbound:      http://localhost" + addr + "/inbound")
	fmt.Println("   - Metrics:      http://localhost" + addr + "/metrics")
	fmt.Println("   - Health Check: http://localhost" + addr + "/health")
	fmt.Printf("\n🎯 Listening on %s\n", addr)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed:", err)
	}
}
