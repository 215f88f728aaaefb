package store

import (
	"strings"
	"unicode"

	wmodels "github.com/weaviate/weaviate/entities/models"
)

// Weaviate tokenizer for the message body; the morphological analyzer that
// makes Japanese text searchable by word.
const tokenizationKagomeJa = "kagome_ja"

// IndexName returns the storage index name for a channel,
// "slack-{channel_name}" with non-alphanumerics collapsed to dashes.
func IndexName(channelName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(channelName) {
		if unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return "slack-" + b.String()
}

// ClassName maps a channel index to its Weaviate class. Class names must
// be GraphQL identifiers, so "slack-general" becomes "SlackGeneral".
func ClassName(channelName string) string {
	parts := strings.Split(IndexName(channelName), "-")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// channelClass builds the per-channel class definition. Field types mirror
// the message entity; creation is idempotent via an existence check.
func channelClass(channelName string, replicas int) *wmodels.Class {
	return &wmodels.Class{
		Class:       ClassName(channelName),
		Description: "Slack messages for channel " + channelName,
		Properties: []*wmodels.Property{
			textProp("channelId", wmodels.PropertyTokenizationField),
			textProp("ts", wmodels.PropertyTokenizationField),
			textProp("userId", wmodels.PropertyTokenizationField),
			textProp("username", wmodels.PropertyTokenizationField),
			{
				Name:         "text",
				DataType:     []string{"text"},
				Tokenization: tokenizationKagomeJa,
				Description:  "Message body, tokenized for Japanese search",
			},
			textProp("threadTs", wmodels.PropertyTokenizationField),
			intProp("replyCount"),
			textProp("reactions", wmodels.PropertyTokenizationField),
			{
				Name:         "mentions",
				DataType:     []string{"text[]"},
				Tokenization: wmodels.PropertyTokenizationField,
			},
			textProp("attachments", wmodels.PropertyTokenizationField),
			{
				Name:     "timestamp",
				DataType: []string{"date"},
			},
			{
				Name:     "isWeekend",
				DataType: []string{"boolean"},
			},
			intProp("hourOfDay"),
			intProp("dayOfWeek"),
			intProp("reactionTotal"),
		},
		ReplicationConfig: &wmodels.ReplicationConfig{
			Factor: int64(replicas),
		},
	}
}

func textProp(name, tokenization string) *wmodels.Property {
	return &wmodels.Property{
		Name:         name,
		DataType:     []string{"text"},
		Tokenization: tokenization,
	}
}

func intProp(name string) *wmodels.Property {
	return &wmodels.Property{
		Name:     name,
		DataType: []string{"int"},
	}
}
