package report

import (
	"fmt"
	"strings"

	"slack-insights/pkg/models"
)

// FormatReport renders the statistics as a Slack-markdown message.
func FormatReport(stats models.Statistics) string {
	var b strings.Builder

	if stats.Period.Type == models.PeriodWeekly {
		fmt.Fprintf(&b, "*Weekly Report (%s)*\n\n", stats.Period.Label())
	} else {
		fmt.Fprintf(&b, "*Daily Report for %s*\n\n", stats.Period.Label())
	}

	fmt.Fprintf(&b, "• Total Messages: *%d*\n", stats.MessageCount)
	fmt.Fprintf(&b, "• Total Reactions: *%d*\n", stats.ReactionCount)
	if stats.Period.Type == models.PeriodWeekly {
		fmt.Fprintf(&b, "• Daily Average: *%.1f* messages\n", float64(stats.MessageCount)/7)
	}
	b.WriteString("\n")

	if len(stats.TopUsers) > 0 {
		b.WriteString("*Top Active Users:*\n")
		for _, u := range stats.TopUsers {
			name := u.Username
			if name == "" {
				name = u.UserID
			}
			fmt.Fprintf(&b, "• %s: %d messages\n", name, u.Count)
		}
		b.WriteString("\n")
	}

	if len(stats.TopMessages) > 0 {
		b.WriteString("*Top Messages by Reactions:*\n")
		for _, r := range stats.TopMessages {
			fmt.Fprintf(&b, "• %s (%d reactions) <%s|link>\n",
				firstLine(r.Message.Text), r.ReactionTotal, Permalink(r.Message))
		}
		b.WriteString("\n")
	}

	if len(stats.Keywords) > 0 {
		b.WriteString("*Trending Keywords:*\n")
		words := make([]string, 0, len(stats.Keywords))
		for _, k := range stats.Keywords {
			words = append(words, fmt.Sprintf("%s (%d)", k.Word, k.Count))
		}
		b.WriteString("• " + strings.Join(words, ", ") + "\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Permalink builds the archive link for a message. Slack permalinks drop
// the dot from the timestamp.
func Permalink(m models.Message) string {
	ts := strings.Replace(m.TS, ".", "", 1)
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", m.ChannelID, ts)
}

// firstLine truncates multi-line message bodies for the leaderboard.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + "..."
	}
	return text
}
