package slackclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"slack-insights/pkg/models"
)

// mockAPI implements the API interface for testing
type mockAPI struct {
	historyFunc func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	repliesFunc func(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	postFunc    func(channelID string) (string, string, error)
	uploadFunc  func(params slack.UploadFileV2Parameters) (*slack.FileSummary, error)

	historyCalls int
	repliesCalls int
	postCalls    int
	uploadCalls  int
}

func (m *mockAPI) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{}, nil
}

func (m *mockAPI) GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	ch := &slack.Channel{}
	ch.ID = input.ChannelID
	ch.Name = "general"
	return ch, nil
}

func (m *mockAPI) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	m.historyCalls++
	if m.historyFunc != nil {
		return m.historyFunc(params)
	}
	return &slack.GetConversationHistoryResponse{}, nil
}

func (m *mockAPI) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	m.repliesCalls++
	if m.repliesFunc != nil {
		return m.repliesFunc(params)
	}
	return nil, false, "", nil
}

func (m *mockAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	m.postCalls++
	if m.postFunc != nil {
		return m.postFunc(channelID)
	}
	return channelID, "1712345678.000100", nil
}

func (m *mockAPI) UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error) {
	m.uploadCalls++
	if m.uploadFunc != nil {
		return m.uploadFunc(params)
	}
	return &slack.FileSummary{}, nil
}

func newTestClient(api API) *Client {
	c := NewWithAPI(api, time.UTC)
	c.sleep = func(time.Duration) {}
	return c
}

func rawMessage(ts, user, text string) slack.Message {
	var m slack.Message
	m.Timestamp = ts
	m.User = user
	m.Text = text
	return m
}

func testWindow(includeThreads bool) models.FetchWindow {
	return models.FetchWindow{
		Channel:        models.Channel{ID: "C1", Name: "general"},
		Oldest:         time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Latest:         time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		IncludeThreads: includeThreads,
	}
}

func TestFetchWindowPagination(t *testing.T) {
	pages := map[string][]slack.Message{
		"": {
			rawMessage("1711966000.000100", "U1", "first page one"),
			rawMessage("1711966100.000100", "U2", "first page two"),
		},
		"cursor-2": {
			rawMessage("1711966200.000100", "U1", "second page"),
		},
	}

	api := &mockAPI{
		historyFunc: func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
			resp := &slack.GetConversationHistoryResponse{
				Messages: pages[params.Cursor],
				HasMore:  params.Cursor == "",
			}
			if params.Cursor == "" {
				resp.ResponseMetaData.NextCursor = "cursor-2"
			}
			return resp, nil
		},
	}

	var emitted []models.Message
	stats, err := newTestClient(api).FetchWindow(context.Background(), testWindow(false), func(m models.Message) error {
		emitted = append(emitted, m)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchWindow returned error: %v", err)
	}

	if stats.Messages != 3 {
		t.Errorf("Messages = %d, want 3", stats.Messages)
	}
	if len(emitted) != 3 {
		t.Errorf("emitted %d messages, want 3", len(emitted))
	}
	if api.historyCalls != 2 {
		t.Errorf("history calls = %d, want 2", api.historyCalls)
	}
}

func TestFetchWindowInclusiveBounds(t *testing.T) {
	w := testWindow(false)
	boundary := rawMessage(FormatTS(w.Oldest), "U1", "posted exactly at midnight")

	var got slack.GetConversationHistoryParameters
	api := &mockAPI{
		historyFunc: func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
			got = *params
			return &slack.GetConversationHistoryResponse{Messages: []slack.Message{boundary}}, nil
		},
	}

	stats, err := newTestClient(api).FetchWindow(context.Background(), w, func(models.Message) error { return nil })
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}

	// A message timestamped exactly on a chunk edge must not fall between
	// two adjacent chunks; the idempotent document id absorbs the overlap.
	if !got.Inclusive {
		t.Error("history request must use inclusive bounds")
	}
	if got.Oldest != FormatTS(w.Oldest) || got.Latest != FormatTS(w.Latest) {
		t.Errorf("window bounds = [%s, %s], want [%s, %s]", got.Oldest, got.Latest, FormatTS(w.Oldest), FormatTS(w.Latest))
	}
	if stats.Messages != 1 {
		t.Errorf("Messages = %d, want the boundary message counted", stats.Messages)
	}
}

func TestChannelInfoResolvesName(t *testing.T) {
	ch, _, err := newTestClient(&mockAPI{}).ChannelInfo(context.Background(), "C0123456")
	if err != nil {
		t.Fatalf("ChannelInfo: %v", err)
	}
	if ch.ID != "C0123456" {
		t.Errorf("ID = %q", ch.ID)
	}
	// Every binary keys the storage index on this resolved name, so it must
	// come from the API, not from optional configuration.
	if ch.Name != "general" {
		t.Errorf("Name = %q, want the API-resolved channel name", ch.Name)
	}
}

func TestFetchWindowThreadIsolation(t *testing.T) {
	rootA := rawMessage("1711966000.000100", "U1", "thread A root")
	rootA.ReplyCount = 1
	rootA.ThreadTimestamp = rootA.Timestamp
	rootB := rawMessage("1711966100.000100", "U2", "thread B root")
	rootB.ReplyCount = 1
	rootB.ThreadTimestamp = rootB.Timestamp

	replyB := rawMessage("1711966150.000100", "U3", "reply in B")
	replyB.ThreadTimestamp = rootB.Timestamp

	api := &mockAPI{
		historyFunc: func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
			return &slack.GetConversationHistoryResponse{Messages: []slack.Message{rootA, rootB}}, nil
		},
		repliesFunc: func(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
			if params.Timestamp == rootA.Timestamp {
				return nil, false, "", errors.New("internal_error")
			}
			parent := rootB
			return []slack.Message{parent, replyB}, false, "", nil
		},
	}

	var emitted []models.Message
	stats, err := newTestClient(api).FetchWindow(context.Background(), testWindow(true), func(m models.Message) error {
		emitted = append(emitted, m)
		return nil
	})
	if err != nil {
		t.Fatalf("a failed thread must not abort the fetch: %v", err)
	}

	if stats.FailedThreads != 1 {
		t.Errorf("FailedThreads = %d, want 1", stats.FailedThreads)
	}
	if stats.Messages != 2 {
		t.Errorf("Messages = %d, want 2 roots", stats.Messages)
	}
	if stats.ThreadReplies != 1 {
		t.Errorf("ThreadReplies = %d, want 1 (sibling thread still hydrated)", stats.ThreadReplies)
	}

	// The parent echoed by conversations.replies must not be emitted twice.
	seen := make(map[string]int)
	for _, m := range emitted {
		seen[m.TS]++
	}
	for ts, n := range seen {
		if n > 1 {
			t.Errorf("message %s emitted %d times", ts, n)
		}
	}
}

func TestFetchWindowAuthErrorIsFatal(t *testing.T) {
	api := &mockAPI{
		historyFunc: func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
			return nil, errors.New("invalid_auth")
		},
	}

	_, err := newTestClient(api).FetchWindow(context.Background(), testWindow(false), func(models.Message) error {
		t.Error("no message should be emitted on auth failure")
		return nil
	})

	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
	if api.historyCalls != 1 {
		t.Errorf("auth errors must not be retried, got %d calls", api.historyCalls)
	}
}

func TestFetchWindowSkipsMalformedRecords(t *testing.T) {
	api := &mockAPI{
		historyFunc: func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
			return &slack.GetConversationHistoryResponse{Messages: []slack.Message{
				rawMessage("not-a-timestamp", "U1", "broken"),
				rawMessage("1711966000.000100", "U2", "fine"),
			}}, nil
		},
	}

	var emitted []models.Message
	stats, err := newTestClient(api).FetchWindow(context.Background(), testWindow(false), func(m models.Message) error {
		emitted = append(emitted, m)
		return nil
	})
	if err != nil {
		t.Fatalf("malformed records must not fail the run: %v", err)
	}

	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if len(emitted) != 1 || emitted[0].UserID != "U2" {
		t.Errorf("expected only the valid message, got %v", emitted)
	}
}

func TestFetchWindowRetriesTransientErrors(t *testing.T) {
	attempts := 0
	api := &mockAPI{
		historyFunc: func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("connection reset")
			}
			return &slack.GetConversationHistoryResponse{Messages: []slack.Message{
				rawMessage("1711966000.000100", "U1", "finally"),
			}}, nil
		},
	}

	stats, err := newTestClient(api).FetchWindow(context.Background(), testWindow(false), func(models.Message) error { return nil })
	if err != nil {
		t.Fatalf("transient errors within budget must recover: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if stats.Messages != 1 {
		t.Errorf("Messages = %d, want 1", stats.Messages)
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid auth", errors.New("invalid_auth"), true},
		{"token revoked wrapped", errors.New("token_revoked"), true},
		{"rate limit", &slack.RateLimitedError{RetryAfter: time.Second}, false},
		{"network", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
