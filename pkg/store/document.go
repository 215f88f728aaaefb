package store

import (
	"encoding/json"
	"fmt"
	"time"

	"slack-insights/pkg/models"
)

// messageProperties converts a message into the stored document shape.
// Nested reactions and attachments are JSON-encoded into text fields;
// they have no independent lifecycle and are only read back whole.
func messageProperties(m models.Message) map[string]interface{} {
	props := map[string]interface{}{
		"channelId":     m.ChannelID,
		"ts":            m.TS,
		"userId":        m.UserID,
		"username":      m.Username,
		"text":          m.Text,
		"threadTs":      m.ThreadTS,
		"replyCount":    m.ReplyCount,
		"mentions":      m.Mentions,
		"timestamp":     m.Timestamp.UTC().Format(time.RFC3339Nano),
		"isWeekend":     m.IsWeekend,
		"hourOfDay":     m.HourOfDay,
		"dayOfWeek":     m.DayOfWeek,
		"reactionTotal": m.ReactionTotal(),
	}

	if encoded, err := json.Marshal(m.Reactions); err == nil && len(m.Reactions) > 0 {
		props["reactions"] = string(encoded)
	}
	if encoded, err := json.Marshal(m.Attachments); err == nil && len(m.Attachments) > 0 {
		props["attachments"] = string(encoded)
	}

	return props
}

// parseMessage rebuilds a message from a stored document. GraphQL reads
// return numbers as float64 and arrays as []interface{}.
func parseMessage(props map[string]interface{}) (models.Message, error) {
	m := models.Message{
		ChannelID: asString(props["channelId"]),
		TS:        asString(props["ts"]),
		UserID:    asString(props["userId"]),
		Username:  asString(props["username"]),
		Text:      asString(props["text"]),
		ThreadTS:  asString(props["threadTs"]),
	}

	tsRaw := asString(props["timestamp"])
	if tsRaw == "" {
		return models.Message{}, fmt.Errorf("document missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return models.Message{}, fmt.Errorf("parse document timestamp: %w", err)
	}
	m.Timestamp = ts

	m.ReplyCount = asInt(props["replyCount"])
	m.HourOfDay = asInt(props["hourOfDay"])
	m.DayOfWeek = asInt(props["dayOfWeek"])
	m.IsWeekend, _ = props["isWeekend"].(bool)

	if raw := asString(props["reactions"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Reactions); err != nil {
			return models.Message{}, fmt.Errorf("parse reactions: %w", err)
		}
	}
	if raw := asString(props["attachments"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m.Attachments); err != nil {
			return models.Message{}, fmt.Errorf("parse attachments: %w", err)
		}
	}

	if mentions, ok := props["mentions"].([]interface{}); ok {
		for _, v := range mentions {
			m.Mentions = append(m.Mentions, asString(v))
		}
	}

	return m, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
