package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"slack-insights/pkg/models"
)

func weeklyStats(loc *time.Location) models.Statistics {
	stats := models.Statistics{
		Period:        models.WeeklyPeriod(time.Date(2024, 4, 3, 0, 0, 0, 0, loc)),
		MessageCount:  70,
		ReactionCount: 21,
		TopUsers: []models.UserCount{
			{UserID: "U1", Username: "taro", Count: 30},
			{UserID: "U2", Count: 12},
		},
		TopMessages: []models.MessageRank{
			{
				Message: models.Message{
					ChannelID: "C1",
					TS:        "1711966000.000100",
					Text:      "deploy is done\ndetails in thread",
				},
				ReactionTotal: 9,
			},
		},
		Keywords: []models.KeywordCount{
			{Word: "機能", Count: 5},
			{Word: "会議", Count: 3},
		},
	}
	stats.HourlyHistogram[9] = 40
	return stats
}

func TestFormatReportWeekly(t *testing.T) {
	text := FormatReport(weeklyStats(time.UTC))

	for _, want := range []string{
		"*Weekly Report (2024-04-01 to 2024-04-07)*",
		"Total Messages: *70*",
		"Total Reactions: *21*",
		"Daily Average: *10.0* messages",
		"• taro: 30 messages",
		"• U2: 12 messages",
		"deploy is done... (9 reactions)",
		"<https://slack.com/archives/C1/p1711966000000100|link>",
		"機能 (5), 会議 (3)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestFormatReportDailyOmitsWeeklySections(t *testing.T) {
	loc := time.UTC
	stats := models.Statistics{
		Period:       models.DailyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, loc)),
		MessageCount: 12,
	}

	text := FormatReport(stats)

	if !strings.Contains(text, "*Daily Report for 2024-04-01*") {
		t.Errorf("missing daily heading:\n%s", text)
	}
	if strings.Contains(text, "Daily Average") {
		t.Error("daily report must not carry the weekly average")
	}
	if strings.Contains(text, "Top Active Users") || strings.Contains(text, "Trending Keywords") {
		t.Error("empty sections must be omitted")
	}
}

func TestPermalink(t *testing.T) {
	m := models.Message{ChannelID: "C024BE91L", TS: "1712345678.000200"}
	want := "https://slack.com/archives/C024BE91L/p1712345678000200"
	if got := Permalink(m); got != want {
		t.Errorf("Permalink = %q, want %q", got, want)
	}
}

type mockPoster struct {
	postErr   error
	uploadErr error

	posts   []string
	uploads []string
}

func (m *mockPoster) PostReport(ctx context.Context, channelID, text string) (string, error) {
	m.posts = append(m.posts, text)
	if m.postErr != nil {
		return "", m.postErr
	}
	return "1712345678.000100", nil
}

func (m *mockPoster) UploadImage(ctx context.Context, channelID, path, title string) error {
	m.uploads = append(m.uploads, path)
	return m.uploadErr
}

func TestDispatchPostsTextThenArtifacts(t *testing.T) {
	poster := &mockPoster{}
	artifacts := []Artifact{{Path: "a.png"}, {Path: "b.png"}}

	err := NewDispatcher(poster, false).Dispatch(context.Background(), "C1", "report", artifacts)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(poster.posts) != 1 || poster.posts[0] != "report" {
		t.Errorf("posts = %v", poster.posts)
	}
	if len(poster.uploads) != 2 {
		t.Errorf("uploads = %v, want both artifacts", poster.uploads)
	}
}

func TestDispatchDryRunMakesNoAPICalls(t *testing.T) {
	poster := &mockPoster{postErr: errors.New("must not be called")}

	err := NewDispatcher(poster, true).Dispatch(context.Background(), "C1", "report", []Artifact{{Path: "a.png"}})
	if err != nil {
		t.Fatalf("dry run must succeed: %v", err)
	}
	if len(poster.posts) != 0 || len(poster.uploads) != 0 {
		t.Errorf("dry run made API calls: posts=%v uploads=%v", poster.posts, poster.uploads)
	}
}

func TestDispatchPostFailureIsFatal(t *testing.T) {
	poster := &mockPoster{postErr: errors.New("channel_not_found")}

	err := NewDispatcher(poster, false).Dispatch(context.Background(), "C1", "report", []Artifact{{Path: "a.png"}})
	if err == nil {
		t.Fatal("expected error when the post fails")
	}
	if len(poster.uploads) != 0 {
		t.Error("no uploads should be attempted after a failed post")
	}
}

func TestDispatchUploadFailureIsNotFatal(t *testing.T) {
	poster := &mockPoster{uploadErr: errors.New("upload quota")}

	err := NewDispatcher(poster, false).Dispatch(context.Background(), "C1", "report", []Artifact{{Path: "a.png"}})
	if err != nil {
		t.Errorf("a failed image upload must not fail the dispatched report: %v", err)
	}
}

type stubCapturer struct {
	err   error
	calls int
}

func (s *stubCapturer) Capture(ctx context.Context, url, outPath string) error {
	s.calls++
	return s.err
}

func TestRenderDailyProducesHourlyChart(t *testing.T) {
	dir := t.TempDir()
	stats := models.Statistics{
		Period: models.DailyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
	}
	stats.HourlyHistogram[10] = 5

	artifacts, err := NewRenderer(dir, "", nil, 0).Render(context.Background(), stats)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts = %+v, want 1 hourly chart", artifacts)
	}
	if !strings.HasSuffix(artifacts[0].Path, dailyHourlyFile) {
		t.Errorf("artifact path = %q", artifacts[0].Path)
	}
}

func TestRenderWeeklyCaptureFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	capturer := &stubCapturer{err: errors.New("browser crashed")}

	period := models.WeeklyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	stats := models.Statistics{Period: period}
	stats.DailyActivity = []models.DayCount{
		{Date: period.Date, Count: 3},
		{Date: period.Date.AddDate(0, 0, 1), Count: 7},
	}

	artifacts, err := NewRenderer(dir, "http://kibana:5601/dash", capturer, time.Second).Render(context.Background(), stats)
	if err != nil {
		t.Fatalf("capture failure must degrade, not fail: %v", err)
	}
	if capturer.calls != 1 {
		t.Errorf("capturer called %d times, want 1", capturer.calls)
	}
	if len(artifacts) != 2 {
		t.Errorf("artifacts = %+v, want the two charts without the dashboard", artifacts)
	}
}

func TestRenderWeeklyIncludesDashboardOnSuccess(t *testing.T) {
	dir := t.TempDir()
	capturer := &stubCapturer{}

	period := models.WeeklyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	stats := models.Statistics{Period: period}
	stats.DailyActivity = []models.DayCount{{Date: period.Date, Count: 1}}

	artifacts, err := NewRenderer(dir, "http://kibana:5601/dash", capturer, time.Second).Render(context.Background(), stats)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("artifacts = %+v, want charts plus dashboard", artifacts)
	}
	if !strings.HasSuffix(artifacts[2].Path, dashboardFile) {
		t.Errorf("last artifact = %q, want dashboard capture", artifacts[2].Path)
	}
}
