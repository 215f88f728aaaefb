package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"slack-insights/internal/config"
	"slack-insights/internal/logging"
	"slack-insights/pkg/analysis"
	"slack-insights/pkg/models"
	"slack-insights/pkg/report"
	"slack-insights/pkg/slackclient"
	"slack-insights/pkg/store"
)

func main() {
	var (
		reportType = flag.String("type", "daily", "Report type: daily or weekly")
		date       = flag.String("date", "", "Target date, YYYY-MM-DD (default: yesterday)")
		channel    = flag.String("channel", "", "Channel id override (default: SLACK_CHANNEL_ID)")
		dryRun     = flag.Bool("dry-run", false, "Format the report without posting it")
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

	period, err := buildPeriod(*reportType, *date, loc)
	if err != nil {
		logrus.Fatalf("Invalid report period: %v", err)
	}

	channelID := cfg.Slack.ChannelID
	if *channel != "" {
		channelID = *channel
	}

	ctx := context.Background()

	// Resolve the channel the same way the fetch run does, so both address
	// the same storage index.
	slackClient := slackclient.New(cfg.Slack.Token, loc)
	ch, _, err := slackClient.ChannelInfo(ctx, channelID)
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
	// Idempotent: a report against a never-fetched channel reads an empty
	// index instead of failing.
	if err := storeClient.EnsureChannel(ctx, ch); err != nil {
		logrus.Fatalf("Failed to ensure channel index: %v", err)
	}

	keywords, err := analysis.NewKeywordExtractor()
	if err != nil {
		logrus.Fatalf("Failed to initialize keyword extractor: %v", err)
	}
	analyzer := analysis.New(storeClient, keywords)

	stats, err := analyzer.Stats(ctx, ch, period)
	if err != nil {
		logrus.Fatalf("Failed to compute statistics: %v", err)
	}

	var capturer report.Capturer
	if period.Type == models.PeriodWeekly && cfg.Report.DashboardURL != "" {
		capturer = report.NewChromeCapturer()
	}
	renderer := report.NewRenderer(cfg.Report.OutputDir, cfg.Report.DashboardURL, capturer, cfg.Report.CaptureTimeout)

	artifacts, err := renderer.Render(ctx, stats)
	if err != nil {
		logrus.Fatalf("Failed to render report: %v", err)
	}

	dispatcher := report.NewDispatcher(slackClient, *dryRun)
	if err := dispatcher.Dispatch(ctx, ch.ID, report.FormatReport(stats), artifacts); err != nil {
		logrus.Fatalf("Failed to dispatch report: %v", err)
	}
}

// buildPeriod resolves the report period in the channel timezone. The
// default target is yesterday, the last fully elapsed day.
func buildPeriod(reportType, date string, loc *time.Location) (models.ReportPeriod, error) {
	target := time.Now().In(loc).AddDate(0, 0, -1)
	if date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return models.ReportPeriod{}, err
		}
		target = day
	}

	switch models.PeriodType(reportType) {
	case models.PeriodWeekly:
		return models.WeeklyPeriod(target), nil
	case models.PeriodDaily:
		return models.DailyPeriod(target), nil
	default:
		return models.ReportPeriod{}, fmt.Errorf("unknown report type %q (want daily or weekly)", reportType)
	}
}
