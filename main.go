package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailmirror/mailmirror/internal/api"
	"github.com/mailmirror/mailmirror/internal/config"
	"github.com/mailmirror/mailmirror/internal/graph"
	natsjs "github.com/mailmirror/mailmirror/internal/nats"
	"github.com/mailmirror/mailmirror/internal/realtime"
	"github.com/mailmirror/mailmirror/internal/store"
	"github.com/mailmirror/mailmirror/internal/sync"
	"github.com/mailmirror/mailmirror/internal/tunnel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := store.Open(filepath.Join(cfg.DataDir, "mailmirror.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// The callback URL must be resolvable before any subscription can
	// be created.
	publicURL := cfg.PublicURL
	if publicURL == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		publicURL, err = tunnel.NewClient(cfg.TunnelAgentURL).PublicURL(ctx)
		cancel()
		if err != nil {
			log.Fatalf("resolve public URL: %v", err)
		}
	}
	log.Printf("webhook callbacks via %s", publicURL)

	hub := realtime.NewHub()
	broadcast := sync.Fanout{hub}

	if cfg.NATSURL != "" {
		publisher, err := natsjs.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatal(err)
		}
		defer publisher.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = publisher.EnsureStream(ctx)
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		broadcast = append(broadcast, publisher)
	}

	mailboxes := sync.MailboxFactory(func(accessToken string) (sync.Mailbox, error) {
		return graph.NewClient(accessToken)
	})

	subscriptions := &sync.SubscriptionManager{
		PublicURL:     publicURL,
		Subscriptions: db.Subscriptions,
		TTL:           time.Duration(cfg.SubscriptionTTLHours) * time.Hour,
	}
	orchestrator := &sync.Orchestrator{
		Mailboxes:     mailboxes,
		Messages:      db.Messages,
		Users:         db.Users,
		Subscriptions: subscriptions,
	}
	dispatcher := &sync.Dispatcher{
		Mailboxes: mailboxes,
		Messages:  db.Messages,
		Users:     db.Users,
		Broadcast: broadcast,
	}

	r := gin.Default()
	server := api.NewServer(orchestrator, dispatcher, hub, cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	server.Register(r)

	log.Fatal(r.Run(cfg.ListenAddr))
}
