package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// docNamespace is the UUIDv5 namespace for message document ids. It must
// never change: document identity is what makes re-ingestion idempotent.
var docNamespace = uuid.MustParse("7f3a1d9e-4b5c-4e8a-9c2d-6f0b8a1e3c57")

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)>`)

// Channel identifies one Slack conversation stream. Each channel maps to
// exactly one storage index.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reaction is an emoji reaction nested under a message.
type Reaction struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

// Attachment is a file shared with a message.
type Attachment struct {
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

// Message is a normalized Slack message. Identity is (ChannelID, TS);
// a later fetch of the same message overwrites the stored document.
type Message struct {
	ChannelID string    `json:"channel_id"`
	TS        string    `json:"ts"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	// ThreadTS references the thread parent; empty for root messages.
	ThreadTS   string `json:"thread_ts,omitempty"`
	ReplyCount int    `json:"reply_count"`

	Reactions   []Reaction   `json:"reactions,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Derived once at ingestion time in the channel timezone.
	IsWeekend bool `json:"is_weekend"`
	HourOfDay int  `json:"hour_of_day"`
	DayOfWeek int  `json:"day_of_week"` // 0=Monday .. 6=Sunday
}

// DocumentID returns the deterministic storage id for the message,
// a UUIDv5 of channel id and Slack timestamp.
func (m Message) DocumentID() string {
	return uuid.NewSHA1(docNamespace, []byte(m.ChannelID+":"+m.TS)).String()
}

// IsThreadReply reports whether the message is a reply inside a thread
// rather than a thread root.
func (m Message) IsThreadReply() bool {
	return m.ThreadTS != "" && m.ThreadTS != m.TS
}

// ReactionTotal returns the summed count of all reactions on the message.
func (m Message) ReactionTotal() int {
	total := 0
	for _, r := range m.Reactions {
		total += r.Count
	}
	return total
}

// DeriveTimeFields computes the ingestion-time derived fields from the
// message timestamp interpreted in the channel timezone.
func (m *Message) DeriveTimeFields(loc *time.Location) {
	local := m.Timestamp.In(loc)
	m.HourOfDay = local.Hour()
	m.DayOfWeek = (int(local.Weekday()) + 6) % 7
	m.IsWeekend = m.DayOfWeek >= 5
}

// ExtractMentions returns the user ids mentioned in the text (<@U...> form).
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	mentions := make([]string, 0, len(matches))
	for _, match := range matches {
		mentions = append(mentions, match[1])
	}
	return mentions
}
