package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"slack-insights/internal/config"
	"slack-insights/internal/logging"
	"slack-insights/pkg/slackclient"
	"slack-insights/pkg/store"
)

// Bootstraps the storage tier for the configured channel. Safe to run
// repeatedly: index creation is a no-op when the index already exists.
func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using system environment variables")
	}
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Printf("Connecting to Weaviate at %s://%s...\n", cfg.Weaviate.Scheme, cfg.Weaviate.Host)
	client, err := store.New(cfg.Weaviate.Scheme, cfg.Weaviate.Host, cfg.Weaviate.APIKey, cfg.Weaviate.Replicas)
	if err != nil {
		logrus.Fatalf("Failed to create storage client: %v", err)
	}

	ctx := context.Background()

	fmt.Println("Checking storage health...")
	if err := client.HealthCheck(ctx); err != nil {
		logrus.Fatalf("Storage health check failed: %v", err)
	}
	fmt.Println("✓ Storage is healthy")

	// Resolve the channel name through the API so the index matches the one
	// the fetch and report runs address.
	slackClient := slackclient.New(cfg.Slack.Token, cfg.Location())
	ch, _, err := slackClient.ChannelInfo(ctx, cfg.Slack.ChannelID)
	if err != nil {
		logrus.Fatalf("Failed to resolve channel: %v", err)
	}
	if cfg.Slack.ChannelName != "" {
		ch.Name = cfg.Slack.ChannelName
	}

	fmt.Printf("Ensuring index %s...\n", store.IndexName(ch.Name))
	if err := client.EnsureChannel(ctx, ch); err != nil {
		logrus.Fatalf("Failed to create channel index: %v", err)
	}
	fmt.Println("✓ Index ready")

	fmt.Println("\nStorage setup completed successfully!")
}
