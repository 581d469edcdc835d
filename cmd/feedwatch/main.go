// feedwatch wires the engine end to end against a live API: it loads
// configuration, refreshes the feed for a query, and prints the ranked
// entries. Useful for poking a backend without a UI attached.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"feedstore/internal/sweep"
	"feedstore/pkg/apiclient"
	"feedstore/pkg/config"
	"feedstore/pkg/feed"
	"feedstore/pkg/logger"
	"feedstore/pkg/models"
	"feedstore/pkg/orchestrator"
	"feedstore/pkg/outbox"
	"feedstore/pkg/store"
)

func main() {
	var (
		cfgPath   string
		userID    string
		contactID string
		groupID   string
		hidden    bool
		hard      bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to yaml config")
	flag.StringVar(&userID, "user", "", "viewer user id")
	flag.StringVar(&contactID, "contact", "", "filter: contact id")
	flag.StringVar(&groupID, "group", "", "filter: group id")
	flag.BoolVar(&hidden, "hidden", false, "include dismissed/archived records")
	flag.BoolVar(&hard, "hard", true, "force a network fetch")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger.InitWithLevel(cfg.Logging.Level)

	if cfg.API.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "api.base_url (or FEEDSTORE_API_BASE_URL) required")
		os.Exit(2)
	}
	if userID == "" {
		fmt.Fprintln(os.Stderr, "-user required")
		os.Exit(2)
	}

	s := store.New()
	client := apiclient.New(cfg.API.BaseURL, cfg.TimeoutDuration())
	orch := orchestrator.New(s, client, orchestrator.Options{
		Freshness: cfg.FreshnessDuration(),
		RPS:       cfg.Feed.RPS,
		Burst:     cfg.Feed.Burst,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Outbox.Path != "" {
		if err := outbox.Open(cfg.Outbox.Path); err != nil {
			fmt.Fprintf(os.Stderr, "outbox: %v\n", err)
			os.Exit(1)
		}
		defer outbox.Close()
	}

	stopSweep, err := sweep.Start(ctx, orch, cfg.Sweep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		os.Exit(1)
	}
	defer stopSweep()

	q := models.FeedQuery{ContactID: contactID, GroupID: groupID, Hidden: hidden}
	drs, err := orch.RefreshFeed(ctx, q, hard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "refresh: %v\n", err)
		os.Exit(1)
	}

	if outbox.Ready() {
		if n, err := outbox.Replay(s); err != nil {
			logger.Warn("outbox_replay_failed", "error", err)
		} else if n > 0 {
			logger.Info("outbox_drained", "applied", n)
		}
	}

	entries := feed.FullFeed(feed.SortedActiveEntries(userID, q, drs))
	for _, e := range entries {
		if e.Separator != nil {
			fmt.Printf("--- %s ---\n", e.Separator.Text)
		}
		d := e.DR.Discussion
		fmt.Printf("%s  %s  (messages: %d, seen: %v)\n",
			time.Unix(0, e.Timestamp).Format(time.RFC822), d.Title, len(e.DR.Messages), e.IsSeen)
	}
	fmt.Printf("%d discussions\n", len(entries))
}
