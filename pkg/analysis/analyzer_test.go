package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"slack-insights/pkg/models"
)

type fakeReader struct {
	msgs []models.Message
	err  error

	gotFrom time.Time
	gotTo   time.Time
}

func (f *fakeReader) QueryRange(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.Message, error) {
	f.gotFrom, f.gotTo = from, to
	return f.msgs, f.err
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func message(loc *time.Location, day, hour int, user, text string, reactions int) models.Message {
	m := models.Message{
		ChannelID: "C1",
		UserID:    user,
		Username:  user,
		Text:      text,
		Timestamp: time.Date(2024, 4, day, hour, 0, 0, 0, loc),
	}
	if reactions > 0 {
		m.Reactions = []models.Reaction{{Name: "thumbsup", Count: reactions}}
	}
	m.DeriveTimeFields(loc)
	return m
}

func TestStatsAggregation(t *testing.T) {
	loc := tokyo(t)

	// 2024-04-01 is a Monday.
	msgs := []models.Message{
		message(loc, 1, 9, "U1", "", 5),
		message(loc, 1, 9, "U1", "", 0),
		message(loc, 1, 9, "U2", "", 2),
		message(loc, 2, 14, "U2", "", 2),
		message(loc, 3, 14, "U3", "", 0),
		message(loc, 3, 23, "U1", "", 1),
	}

	reader := &fakeReader{msgs: msgs}
	period := models.WeeklyPeriod(time.Date(2024, 4, 3, 12, 0, 0, 0, loc))

	stats, err := New(reader, nil).Stats(context.Background(), models.Channel{ID: "C1"}, period)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	wantFrom := time.Date(2024, 4, 1, 0, 0, 0, 0, loc)
	if !reader.gotFrom.Equal(wantFrom) || !reader.gotTo.Equal(wantFrom.AddDate(0, 0, 7)) {
		t.Errorf("queried [%v, %v), want week from %v", reader.gotFrom, reader.gotTo, wantFrom)
	}

	if stats.MessageCount != 6 {
		t.Errorf("MessageCount = %d, want 6", stats.MessageCount)
	}
	if stats.ReactionCount != 10 {
		t.Errorf("ReactionCount = %d, want 10", stats.ReactionCount)
	}
	if stats.HourlyHistogram[9] != 3 || stats.HourlyHistogram[14] != 2 || stats.HourlyHistogram[23] != 1 {
		t.Errorf("HourlyHistogram = %v", stats.HourlyHistogram)
	}

	if len(stats.TopUsers) != 3 {
		t.Fatalf("TopUsers = %+v, want 3 entries", stats.TopUsers)
	}
	if stats.TopUsers[0].UserID != "U1" || stats.TopUsers[0].Count != 3 {
		t.Errorf("TopUsers[0] = %+v, want U1 with 3", stats.TopUsers[0])
	}
	if stats.TopUsers[1].UserID != "U2" || stats.TopUsers[2].UserID != "U3" {
		t.Errorf("TopUsers order = %+v", stats.TopUsers)
	}

	if len(stats.DailyActivity) != 7 {
		t.Fatalf("DailyActivity = %+v, want 7 days", stats.DailyActivity)
	}
	wantDaily := []int{3, 1, 2, 0, 0, 0, 0}
	for i, want := range wantDaily {
		if stats.DailyActivity[i].Count != want {
			t.Errorf("DailyActivity[%d] = %d, want %d", i, stats.DailyActivity[i].Count, want)
		}
	}
}

func TestStatsTopMessagesTieBreak(t *testing.T) {
	loc := tokyo(t)

	later := message(loc, 1, 15, "U1", "later", 4)
	earlier := message(loc, 1, 9, "U2", "earlier", 4)
	top := message(loc, 1, 12, "U3", "top", 9)
	unranked := message(loc, 1, 10, "U4", "no reactions", 0)

	reader := &fakeReader{msgs: []models.Message{later, earlier, top, unranked}}
	period := models.DailyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, loc))

	stats, err := New(reader, nil).Stats(context.Background(), models.Channel{ID: "C1"}, period)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if len(stats.TopMessages) != 3 {
		t.Fatalf("TopMessages has %d entries, want 3", len(stats.TopMessages))
	}
	if stats.TopMessages[0].Message.Text != "top" {
		t.Errorf("TopMessages[0] = %q, want the most-reacted message", stats.TopMessages[0].Message.Text)
	}
	// Equal reaction totals rank by earlier timestamp.
	if stats.TopMessages[1].Message.Text != "earlier" || stats.TopMessages[2].Message.Text != "later" {
		t.Errorf("tie-break order = %q, %q", stats.TopMessages[1].Message.Text, stats.TopMessages[2].Message.Text)
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	loc := tokyo(t)

	reader := &fakeReader{}
	period := models.DailyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, loc))

	stats, err := New(reader, nil).Stats(context.Background(), models.Channel{ID: "C1"}, period)
	if err != nil {
		t.Fatalf("an empty window is not an error: %v", err)
	}
	if stats.MessageCount != 0 || stats.ReactionCount != 0 {
		t.Errorf("expected zeroed statistics, got %+v", stats)
	}
	if len(stats.TopMessages) != 0 || len(stats.TopUsers) != 0 {
		t.Errorf("expected empty rankings, got %+v", stats)
	}
}

func TestStatsReadError(t *testing.T) {
	loc := tokyo(t)

	reader := &fakeReader{err: errors.New("storage unavailable")}
	period := models.DailyPeriod(time.Date(2024, 4, 1, 0, 0, 0, 0, loc))

	if _, err := New(reader, nil).Stats(context.Background(), models.Channel{ID: "C1"}, period); err == nil {
		t.Error("expected read errors to propagate")
	}
}
