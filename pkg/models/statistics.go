package models

import "time"

// MessageRank is a message with its reaction total, used for the
// top-by-reactions leaderboard.
type MessageRank struct {
	Message       Message
	ReactionTotal int
}

// KeywordCount is one extracted keyword and its frequency.
type KeywordCount struct {
	Word  string
	Count int
}

// UserCount is one author and their message count in the window.
type UserCount struct {
	UserID   string
	Username string
	Count    int
}

// DayCount is the message count for one calendar day, used by weekly
// activity charts.
type DayCount struct {
	Date  time.Time
	Count int
}

// Statistics is derived from the stored message set for one period. It is
// never persisted and is recomputable at any time.
type Statistics struct {
	Period        ReportPeriod
	MessageCount  int
	ReactionCount int

	// HourlyHistogram buckets messages by hour of day in the channel
	// timezone.
	HourlyHistogram [24]int

	TopMessages []MessageRank
	TopUsers    []UserCount
	Keywords    []KeywordCount

	// DailyActivity holds per-day counts for weekly periods; nil for daily.
	DailyActivity []DayCount
}
