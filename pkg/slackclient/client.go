// Package slackclient fetches channel history and thread replies from the
// Slack API and posts reports back, with pagination and rate-limit-aware
// retries on every call.
package slackclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"slack-insights/pkg/models"
	"slack-insights/pkg/retry"
)

const (
	channelInfoAttempts = 3
	historyAttempts     = 5
	postAttempts        = 3

	// pageLimit is the page size for history and reply pagination.
	pageLimit = 200
)

// API is the subset of the Slack client the pipeline depends on.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// Client wraps the Slack API with normalization and retries.
type Client struct {
	api   API
	loc   *time.Location
	sleep func(time.Duration)
}

// New creates a client authenticated with the given bot token.
func New(token string, loc *time.Location) *Client {
	return NewWithAPI(slack.New(token), loc)
}

// NewWithAPI creates a client over an existing API implementation.
func NewWithAPI(api API, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{api: api, loc: loc, sleep: time.Sleep}
}

func (c *Client) policy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		Retryable:      IsRetryable,
		Sleep:          c.sleep,
	}
}

// honorRetryAfter waits out the server-requested delay on a rate-limit
// response before the retry policy's own backoff kicks in.
func (c *Client) honorRetryAfter(err error) {
	if wait, ok := retryAfter(err); ok && wait > 0 {
		logrus.WithField("wait", wait.String()).Warn("Rate limited, honoring Retry-After")
		c.sleep(wait)
	}
}

// ValidateAuth verifies the bot token before a run starts.
func (c *Client) ValidateAuth(ctx context.Context) error {
	if _, err := c.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	return nil
}

// ChannelInfo resolves channel metadata, including its creation time used
// as the lower bound for full-history fetches.
func (c *Client) ChannelInfo(ctx context.Context, channelID string) (models.Channel, time.Time, error) {
	var info *slack.Channel
	err := retry.Do(c.policy(channelInfoAttempts), "conversations.info", func() error {
		var err error
		info, err = c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
			ChannelID: channelID,
		})
		if err != nil {
			c.honorRetryAfter(err)
		}
		return err
	})
	if err != nil {
		return models.Channel{}, time.Time{}, fmt.Errorf("get channel info: %w", err)
	}
	return models.Channel{ID: info.ID, Name: info.Name}, info.Created.Time().In(c.loc), nil
}

// FetchStats summarizes one fetch pass over a window.
type FetchStats struct {
	Messages      int
	ThreadReplies int
	Skipped       int
	FailedThreads int
}

// FetchWindow pages through the channel history bounded by the window and
// emits each normalized message. Thread replies are hydrated when the
// window requests them; a failure hydrating one thread is logged and
// skipped without aborting sibling threads. Malformed records are skipped
// and counted. Auth errors abort the whole fetch.
func (c *Client) FetchWindow(ctx context.Context, w models.FetchWindow, emit func(models.Message) error) (FetchStats, error) {
	var stats FetchStats

	// Inclusive bounds keep messages timestamped exactly at a chunk edge
	// from falling between two chunks; the deterministic document id
	// dedupes the edge message when both chunks fetch it.
	params := &slack.GetConversationHistoryParameters{
		ChannelID: w.Channel.ID,
		Oldest:    FormatTS(w.Oldest),
		Latest:    FormatTS(w.Latest),
		Limit:     pageLimit,
		Inclusive: true,
	}

	log := logrus.WithFields(logrus.Fields{
		"channel": w.Channel.ID,
		"oldest":  w.Oldest.Format(time.RFC3339),
		"latest":  w.Latest.Format(time.RFC3339),
	})
	log.Info("Fetching channel history")

	for {
		var resp *slack.GetConversationHistoryResponse
		err := retry.Do(c.policy(historyAttempts), "conversations.history", func() error {
			var err error
			resp, err = c.api.GetConversationHistoryContext(ctx, params)
			if err != nil {
				c.honorRetryAfter(err)
			}
			return err
		})
		if err != nil {
			return stats, fmt.Errorf("fetch history: %w", err)
		}

		for _, raw := range resp.Messages {
			msg, err := Normalize(w.Channel.ID, raw, c.loc)
			if err != nil {
				stats.Skipped++
				log.WithError(err).Warn("Skipping malformed message record")
				continue
			}
			if err := emit(msg); err != nil {
				return stats, err
			}
			stats.Messages++

			if w.IncludeThreads && !msg.IsThreadReply() && msg.ReplyCount > 0 {
				replies, err := c.fetchThread(ctx, w.Channel.ID, msg.TS)
				if err != nil {
					if IsAuthError(err) {
						return stats, fmt.Errorf("fetch thread %s: %w", msg.TS, err)
					}
					// Data-integrity gap, not fatal: siblings still fetched.
					stats.FailedThreads++
					log.WithError(err).WithField("thread_ts", msg.TS).Warn("Skipping thread replies after retries")
					continue
				}
				for _, reply := range replies {
					rmsg, err := Normalize(w.Channel.ID, reply, c.loc)
					if err != nil {
						stats.Skipped++
						log.WithError(err).Warn("Skipping malformed thread reply")
						continue
					}
					if err := emit(rmsg); err != nil {
						return stats, err
					}
					stats.ThreadReplies++
				}
			}
		}

		cursor := resp.ResponseMetaData.NextCursor
		if !resp.HasMore || cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	log.WithFields(logrus.Fields{
		"messages":       stats.Messages,
		"thread_replies": stats.ThreadReplies,
		"skipped":        stats.Skipped,
		"failed_threads": stats.FailedThreads,
	}).Info("Fetched window")

	return stats, nil
}

// fetchThread retrieves the full reply list for one thread root. The parent
// message is echoed as the first reply and dropped.
func (c *Client) fetchThread(ctx context.Context, channelID, threadTS string) ([]slack.Message, error) {
	var all []slack.Message

	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     pageLimit,
	}

	for {
		var (
			msgs    []slack.Message
			hasMore bool
			cursor  string
		)
		err := retry.Do(c.policy(historyAttempts), "conversations.replies", func() error {
			var err error
			msgs, hasMore, cursor, err = c.api.GetConversationRepliesContext(ctx, params)
			if err != nil {
				c.honorRetryAfter(err)
			}
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, m := range msgs {
			if m.Timestamp == threadTS {
				continue
			}
			all = append(all, m)
		}

		if !hasMore || cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	return all, nil
}

// PostReport posts the report text to the channel and returns its timestamp.
func (c *Client) PostReport(ctx context.Context, channelID, text string) (string, error) {
	var ts string
	err := retry.Do(c.policy(postAttempts), "chat.postMessage", func() error {
		var err error
		_, ts, err = c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		if err != nil {
			c.honorRetryAfter(err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return ts, nil
}

// UploadImage uploads one rendered image artifact to the channel.
func (c *Client) UploadImage(ctx context.Context, channelID, path, title string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}

	err = retry.Do(c.policy(postAttempts), "files.uploadV2", func() error {
		_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Channel:  channelID,
			File:     path,
			FileSize: int(info.Size()),
			Filename: filepath.Base(path),
			Title:    title,
		})
		if err != nil {
			c.honorRetryAfter(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("upload image %s: %w", path, err)
	}
	return nil
}
