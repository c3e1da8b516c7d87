package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/xaenou/origami-chat/pkg/cache"
	"github.com/xaenou/origami-chat/pkg/config"
	"github.com/xaenou/origami-chat/pkg/usage"
)

// origami-usage is a maintenance sidecar for the usage log. The relay
// itself has no CLI surface; this tool only reads and purges the log
// out-of-band.
func main() {
	if len(os.Args) < 2 {
		usageHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "count":
		handleCount(os.Args[2:])
	case "purge":
		handlePurge(os.Args[2:])
	default:
		usageHelp()
		os.Exit(1)
	}
}

func usageHelp() {
	fmt.Println("origami-usage commands:")
	fmt.Println("  count                Count usage events in a window")
	fmt.Println("     flags: -user -provider -window (default 24h)")
	fmt.Println("  purge                Delete usage events older than a cutoff")
	fmt.Println("     flags: -older-than (default: configured retention)")
}

func handleCount(args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	user := fs.String("user", "", "user ID, empty for all users")
	provider := fs.String("provider", "", "provider name, empty for all providers")
	window := fs.Duration("window", 24*time.Hour, "how far back to count")
	fs.Parse(args)

	store, _ := mustStore()
	since := time.Now().UTC().Add(-*window)

	n, err := store.CountSince(context.Background(), *user, *provider, since)
	if err != nil {
		log.Fatalf("count failed: %v", err)
	}
	fmt.Printf("%d events since %s\n", n, since.Format(time.RFC3339))
}

func handlePurge(args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	olderThan := fs.Duration("older-than", 0, "purge events older than this (default: configured retention)")
	fs.Parse(args)

	store, cfg := mustStore()
	retention := *olderThan
	if retention <= 0 {
		retention = cfg.Retention()
	}
	cutoff := time.Now().UTC().Add(-retention)

	deleted, err := store.PurgeOlderThan(context.Background(), cutoff)
	if err != nil {
		log.Fatalf("purge failed: %v", err)
	}
	fmt.Printf("deleted %d events older than %s\n", deleted, cutoff.Format(time.RFC3339))
}

func mustStore() (usage.Store, *config.Config) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Redis.Enabled {
		log.Fatal("redis is not enabled in config; nothing to inspect")
	}
	rdb, err := cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	return usage.NewRedisStore(rdb, cfg.Retention()), cfg
}
