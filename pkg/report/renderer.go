// Package report turns statistics into text and image artifacts and posts
// them back to the channel.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"slack-insights/pkg/models"
)

// Fixed artifact filenames. Each run overwrites the previous report's
// images; only the latest report is needed downstream.
const (
	dailyHourlyFile    = "daily_hourly.png"
	weeklyHourlyFile   = "weekly_hourly.png"
	weeklyActivityFile = "weekly_activity.png"
	dashboardFile      = "dashboard.png"
)

// Capturer saves a dashboard page as an image.
type Capturer interface {
	Capture(ctx context.Context, url, outPath string) error
}

// Artifact is one rendered image with its upload title.
type Artifact struct {
	Path  string
	Title string
}

// Renderer produces the report's image artifacts.
type Renderer struct {
	outputDir      string
	dashboardURL   string
	capturer       Capturer
	captureTimeout time.Duration
}

// NewRenderer creates a renderer writing into outputDir. A nil capturer or
// empty dashboardURL disables dashboard capture.
func NewRenderer(outputDir, dashboardURL string, capturer Capturer, captureTimeout time.Duration) *Renderer {
	if captureTimeout <= 0 {
		captureTimeout = 30 * time.Second
	}
	return &Renderer{
		outputDir:      outputDir,
		dashboardURL:   dashboardURL,
		capturer:       capturer,
		captureTimeout: captureTimeout,
	}
}

// Render draws the period's charts and, for weekly reports, captures the
// dashboard. Capture failure is a degradation, not an error: the report
// proceeds with the programmatic charts only.
func (r *Renderer) Render(ctx context.Context, stats models.Statistics) ([]Artifact, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var artifacts []Artifact

	switch stats.Period.Type {
	case models.PeriodWeekly:
		hourly := filepath.Join(r.outputDir, weeklyHourlyFile)
		if err := renderHourlyChart(stats.HourlyHistogram, "Weekly Hourly Message Distribution", hourly); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{Path: hourly, Title: "Hourly Distribution - " + stats.Period.Label()})

		activity := filepath.Join(r.outputDir, weeklyActivityFile)
		if err := renderActivityChart(stats.DailyActivity, "Daily Message Activity", activity); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{Path: activity, Title: "Daily Activity - " + stats.Period.Label()})

		if dashboard, ok := r.captureDashboard(ctx); ok {
			artifacts = append(artifacts, Artifact{Path: dashboard, Title: "Dashboard - " + stats.Period.Label()})
		}

	default:
		hourly := filepath.Join(r.outputDir, dailyHourlyFile)
		if err := renderHourlyChart(stats.HourlyHistogram, "Hourly Message Distribution", hourly); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{Path: hourly, Title: "Hourly Distribution - " + stats.Period.Label()})
	}

	return artifacts, nil
}

// captureDashboard runs the headless-browser capture under its own timeout
// and fails closed.
func (r *Renderer) captureDashboard(ctx context.Context) (string, bool) {
	if r.capturer == nil || r.dashboardURL == "" {
		return "", false
	}

	outPath := filepath.Join(r.outputDir, dashboardFile)
	cctx, cancel := context.WithTimeout(ctx, r.captureTimeout)
	defer cancel()

	if err := r.capturer.Capture(cctx, r.dashboardURL, outPath); err != nil {
		logrus.WithError(err).WithField("url", r.dashboardURL).
			Warn("Dashboard capture failed, report proceeds without it")
		return "", false
	}
	return outPath, true
}
