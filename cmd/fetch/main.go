package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"slack-insights/internal/config"
	"slack-insights/internal/logging"
	"slack-insights/pkg/ingestion"
	"slack-insights/pkg/models"
	"slack-insights/pkg/slackclient"
	"slack-insights/pkg/store"
)

func main() {
	var (
		days      = flag.Int("days", 7, "Number of days of history to fetch")
		all       = flag.Bool("all", false, "Fetch the full channel history since channel creation")
		endDate   = flag.String("end-date", "", "Last day to fetch, YYYY-MM-DD (default: today)")
		noThreads = flag.Bool("no-threads", false, "Skip thread reply hydration")
		channel   = flag.String("channel", "", "Channel id override (default: SLACK_CHANNEL_ID)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using system environment variables")
	}
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	loc := cfg.Location()

	channelID := cfg.Slack.ChannelID
	if *channel != "" {
		channelID = *channel
	}

	ctx := context.Background()

	slackClient := slackclient.New(cfg.Slack.Token, loc)
	if err := slackClient.ValidateAuth(ctx); err != nil {
		logrus.Fatalf("Slack authentication failed: %v", err)
	}

	ch, created, err := slackClient.ChannelInfo(ctx, channelID)
	if err != nil {
		logrus.Fatalf("Failed to resolve channel: %v", err)
	}
	if cfg.Slack.ChannelName != "" {
		ch.Name = cfg.Slack.ChannelName
	}

	storeClient, err := store.New(cfg.Weaviate.Scheme, cfg.Weaviate.Host, cfg.Weaviate.APIKey, cfg.Weaviate.Replicas)
	if err != nil {
		logrus.Fatalf("Failed to create storage client: %v", err)
	}
	if err := storeClient.HealthCheck(ctx); err != nil {
		logrus.Fatalf("Storage health check failed: %v", err)
	}

	window, err := buildWindow(ch, created, *days, *all, *endDate, !*noThreads, loc)
	if err != nil {
		logrus.Fatalf("Invalid fetch window: %v", err)
	}

	service := ingestion.NewService(slackClient, storeClient)
	stats, err := service.Run(ctx, window)
	if err != nil {
		logrus.WithFields(stats.Fields()).Errorf("Fetch run aborted: %v", err)
		os.Exit(1)
	}
	if stats.FailedChunks > 0 || stats.FailedWrites > 0 || stats.Gaps > 0 {
		logrus.WithFields(stats.Fields()).Warn("Fetch run finished with gaps")
	}
}

// buildWindow derives the fetch range: the --days window ending at the end
// of --end-date (or now), or the whole history since channel creation
// with --all.
func buildWindow(ch models.Channel, created time.Time, days int, all bool, endDate string, includeThreads bool, loc *time.Location) (models.FetchWindow, error) {
	latest := time.Now().In(loc)
	if endDate != "" {
		day, err := time.ParseInLocation("2006-01-02", endDate, loc)
		if err != nil {
			return models.FetchWindow{}, fmt.Errorf("parse --end-date: %w", err)
		}
		latest = day.AddDate(0, 0, 1)
	}

	var oldest time.Time
	if all {
		oldest = created
		if oldest.IsZero() {
			return models.FetchWindow{}, fmt.Errorf("channel creation time unknown, cannot fetch all history")
		}
	} else {
		if days < 1 {
			return models.FetchWindow{}, fmt.Errorf("--days must be at least 1")
		}
		oldest = latest.AddDate(0, 0, -days)
	}

	if !oldest.Before(latest) {
		return models.FetchWindow{}, fmt.Errorf("window is empty (oldest %v, latest %v)", oldest, latest)
	}

	return models.FetchWindow{
		Channel:        ch,
		Oldest:         oldest,
		Latest:         latest,
		IncludeThreads: includeThreads,
	}, nil
}
