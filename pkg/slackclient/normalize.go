package slackclient

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"slack-insights/pkg/models"
)

// Normalize converts a raw Slack API message into the canonical Message
// entity, computing mentions and the derived time fields in loc.
func Normalize(channelID string, raw slack.Message, loc *time.Location) (models.Message, error) {
	ts, err := ParseTS(raw.Timestamp)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: bad ts %q: %v", ErrMalformedMessage, raw.Timestamp, err)
	}

	username := raw.Username
	if username == "" {
		username = raw.User
	}

	msg := models.Message{
		ChannelID:  channelID,
		TS:         raw.Timestamp,
		UserID:     raw.User,
		Username:   username,
		Text:       raw.Text,
		Timestamp:  ts,
		ReplyCount: raw.ReplyCount,
		Mentions:   models.ExtractMentions(raw.Text),
	}

	// Slack sets thread_ts on the root message too; only keep the parent
	// reference for actual replies.
	if raw.ThreadTimestamp != "" && raw.ThreadTimestamp != raw.Timestamp {
		msg.ThreadTS = raw.ThreadTimestamp
	}

	for _, r := range raw.Reactions {
		msg.Reactions = append(msg.Reactions, models.Reaction{
			Name:  r.Name,
			Count: r.Count,
			Users: r.Users,
		})
	}

	for _, f := range raw.Files {
		kind := f.Filetype
		if kind == "" {
			kind = "unknown"
		}
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Type: kind,
			Size: int64(f.Size),
			URL:  f.URLPrivate,
		})
	}

	msg.DeriveTimeFields(loc)
	return msg, nil
}

// ParseTS parses a Slack timestamp ("1712345678.000200") into a time.Time.
func ParseTS(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	sec, frac := ts, ""
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		sec, frac = ts[:i], ts[i+1:]
	}
	seconds, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	var micros int64
	if frac != "" {
		micros, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		for i := len(frac); i < 6; i++ {
			micros *= 10
		}
	}
	return time.Unix(seconds, micros*1000).UTC(), nil
}

// FormatTS renders a time as a Slack API timestamp string.
func FormatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
