// Package analysis aggregates stored messages over a report period into
// the statistics the report renderer consumes.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"slack-insights/pkg/models"
)

const (
	defaultTopMessages = 3
	defaultTopUsers    = 5
	defaultKeywords    = 10
)

// MessageReader is the read surface of the storage adapter.
type MessageReader interface {
	QueryRange(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.Message, error)
}

// Analyzer computes period statistics from stored messages.
type Analyzer struct {
	reader   MessageReader
	keywords *KeywordExtractor

	topMessages int
	topUsers    int
	topKeywords int
}

// New creates an analyzer. The keyword extractor may be nil, in which case
// keyword extraction is skipped.
func New(reader MessageReader, keywords *KeywordExtractor) *Analyzer {
	return &Analyzer{
		reader:      reader,
		keywords:    keywords,
		topMessages: defaultTopMessages,
		topUsers:    defaultTopUsers,
		topKeywords: defaultKeywords,
	}
}

// Stats aggregates the channel's messages over the period. An empty window
// is not an error: it yields zeroed statistics.
func (a *Analyzer) Stats(ctx context.Context, ch models.Channel, period models.ReportPeriod) (models.Statistics, error) {
	from, to := period.Window()

	msgs, err := a.reader.QueryRange(ctx, ch, from, to)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("read period %s: %w", period.Label(), err)
	}

	stats := models.Statistics{
		Period:       period,
		MessageCount: len(msgs),
	}

	userCounts := make(map[string]*models.UserCount)
	var texts []string

	for _, m := range msgs {
		stats.ReactionCount += m.ReactionTotal()
		if m.HourOfDay >= 0 && m.HourOfDay < 24 {
			stats.HourlyHistogram[m.HourOfDay]++
		}
		if m.UserID != "" {
			uc, ok := userCounts[m.UserID]
			if !ok {
				uc = &models.UserCount{UserID: m.UserID, Username: m.Username}
				userCounts[m.UserID] = uc
			}
			uc.Count++
		}
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}

	stats.TopMessages = topByReactions(msgs, a.topMessages)
	stats.TopUsers = topUsers(userCounts, a.topUsers)
	if a.keywords != nil {
		stats.Keywords = a.keywords.Extract(texts, a.topKeywords)
	}
	if period.Type == models.PeriodWeekly {
		stats.DailyActivity = dailyActivity(msgs, period)
	}

	logrus.WithFields(logrus.Fields{
		"channel":   ch.ID,
		"period":    string(period.Type),
		"label":     period.Label(),
		"messages":  stats.MessageCount,
		"reactions": stats.ReactionCount,
	}).Info("Computed statistics")

	return stats, nil
}

// topByReactions ranks messages by reaction total, ties broken by earlier
// timestamp so reports are reproducible.
func topByReactions(msgs []models.Message, limit int) []models.MessageRank {
	var ranked []models.MessageRank
	for _, m := range msgs {
		if total := m.ReactionTotal(); total > 0 {
			ranked = append(ranked, models.MessageRank{Message: m, ReactionTotal: total})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ReactionTotal != ranked[j].ReactionTotal {
			return ranked[i].ReactionTotal > ranked[j].ReactionTotal
		}
		return ranked[i].Message.Timestamp.Before(ranked[j].Message.Timestamp)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func topUsers(counts map[string]*models.UserCount, limit int) []models.UserCount {
	users := make([]models.UserCount, 0, len(counts))
	for _, uc := range counts {
		users = append(users, *uc)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Count != users[j].Count {
			return users[i].Count > users[j].Count
		}
		return users[i].UserID < users[j].UserID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users
}

// dailyActivity buckets messages per calendar day of the weekly period, in
// the period's timezone.
func dailyActivity(msgs []models.Message, period models.ReportPeriod) []models.DayCount {
	loc := period.Date.Location()

	days := make([]models.DayCount, 7)
	for i := range days {
		days[i].Date = period.Date.AddDate(0, 0, i)
	}

	for _, m := range msgs {
		local := m.Timestamp.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		for i := range days {
			if days[i].Date.Equal(day) {
				days[i].Count++
				break
			}
		}
	}
	return days
}
