// Package store persists normalized messages into a per-channel Weaviate
// index with idempotent bulk upserts, and serves the range reads and counts
// the analysis engine runs on.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"

	"slack-insights/pkg/models"
	"slack-insights/pkg/retry"
)

const (
	// batchSize is the fixed bulk-upsert batch size.
	batchSize = 500

	// pageSize is the read page size for range queries.
	pageSize = 500

	writeAttempts = 5
)

// BulkResult summarizes one bulk persistence call.
type BulkResult struct {
	Stored int
	Failed int
}

// Client is the storage adapter over Weaviate.
type Client struct {
	conn     *weaviate.Client
	replicas int
	sleep    func(time.Duration)
}

// New creates a storage client for the given Weaviate endpoint.
func New(scheme, host, apiKey string, replicas int) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("weaviate host cannot be empty")
	}
	if replicas < 1 {
		replicas = 1
	}

	cfg := weaviate.Config{
		Scheme: scheme,
		Host:   host,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}

	conn, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &Client{conn: conn, replicas: replicas, sleep: time.Sleep}, nil
}

func (c *Client) policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = writeAttempts
	p.Sleep = c.sleep
	return p
}

// HealthCheck verifies the storage connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	ready, err := c.conn.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate health check failed: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// EnsureChannel creates the channel's index if it does not exist yet. It is
// a no-op when the index is already present, so every fetch run calls it.
func (c *Client) EnsureChannel(ctx context.Context, ch models.Channel) error {
	class := ClassName(channelKey(ch))

	exists, err := c.conn.Schema().ClassExistenceChecker().
		WithClassName(class).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	if exists {
		return nil
	}

	err = c.conn.Schema().ClassCreator().
		WithClass(channelClass(channelKey(ch), c.replicas)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", IndexName(channelKey(ch)), err)
	}

	logrus.WithFields(logrus.Fields{
		"index": IndexName(channelKey(ch)),
		"class": class,
	}).Info("Created channel index")
	return nil
}

// IndexMessages upserts messages in fixed-size batches. Document ids are
// deterministic, so re-running the same window reconciles instead of
// duplicating. Documents rejected within a batch are retried as a subset;
// an error is returned only if the subset still fails after exhaustion.
func (c *Client) IndexMessages(ctx context.Context, ch models.Channel, msgs []models.Message) (BulkResult, error) {
	var result BulkResult
	class := ClassName(channelKey(ch))

	for start := 0; start < len(msgs); start += batchSize {
		end := start + batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := msgs[start:end]

		failed, err := c.upsertBatch(ctx, class, batch)
		if err != nil {
			// Transport-level failure: nothing in the batch is confirmed.
			failed = batch
		}

		if len(failed) > 0 {
			rerr := retry.Do(c.policy(), "bulk upsert", func() error {
				next, uerr := c.upsertBatch(ctx, class, failed)
				if uerr != nil {
					// Transport failure confirms nothing; the same subset
					// must be re-sent on the next attempt.
					return uerr
				}
				failed = next
				if len(failed) > 0 {
					return fmt.Errorf("%d documents rejected", len(failed))
				}
				return nil
			})
			if rerr != nil {
				result.Stored += len(batch) - len(failed)
				result.Failed += len(failed)
				return result, fmt.Errorf("index batch into %s: %w", class, rerr)
			}
		}

		result.Stored += len(batch)
	}

	return result, nil
}

// upsertBatch writes one batch and returns the subset of messages whose
// documents were rejected.
func (c *Client) upsertBatch(ctx context.Context, class string, msgs []models.Message) ([]models.Message, error) {
	batcher := c.conn.Batch().ObjectsBatcher()
	for _, m := range msgs {
		batcher = batcher.WithObjects(&wmodels.Object{
			Class:      class,
			ID:         strfmt.UUID(m.DocumentID()),
			Properties: messageProperties(m),
		})
	}

	resps, err := batcher.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch upsert: %w", err)
	}

	var failed []models.Message
	for _, idx := range batchFailures(resps) {
		if idx < len(msgs) {
			failed = append(failed, msgs[idx])
		}
	}
	if len(failed) > 0 {
		logrus.WithFields(logrus.Fields{
			"class":    class,
			"rejected": len(failed),
			"batch":    len(msgs),
		}).Warn("Partial batch failure, will retry rejected documents")
	}
	return failed, nil
}

// batchFailures returns the indexes of rejected documents in a batch
// response. Responses come back in submission order.
func batchFailures(resps []wmodels.ObjectsGetResponse) []int {
	var failed []int
	for i, r := range resps {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			failed = append(failed, i)
		}
	}
	return failed
}

// QueryRange returns the channel's messages with timestamps in [from, to),
// ordered ascending.
func (c *Client) QueryRange(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.Message, error) {
	class := ClassName(channelKey(ch))
	where := rangeFilter(from, to)

	fields := []graphql.Field{
		{Name: "channelId"}, {Name: "ts"}, {Name: "userId"}, {Name: "username"},
		{Name: "text"}, {Name: "threadTs"}, {Name: "replyCount"},
		{Name: "reactions"}, {Name: "mentions"}, {Name: "attachments"},
		{Name: "timestamp"}, {Name: "isWeekend"}, {Name: "hourOfDay"},
		{Name: "dayOfWeek"}, {Name: "reactionTotal"},
	}
	sort := graphql.Sort{Path: []string{"timestamp"}, Order: graphql.Asc}

	var out []models.Message
	for offset := 0; ; offset += pageSize {
		res, err := c.conn.GraphQL().Get().
			WithClassName(class).
			WithFields(fields...).
			WithWhere(where).
			WithSort(sort).
			WithLimit(pageSize).
			WithOffset(offset).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("range query on %s: %w", class, err)
		}
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("range query on %s: %s", class, res.Errors[0].Message)
		}

		page, err := parseGetPage(res, class)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)

		if len(page) < pageSize {
			break
		}
	}

	return out, nil
}

// Count returns the number of stored messages in [from, to) using the
// store's aggregation surface.
func (c *Client) Count(ctx context.Context, ch models.Channel, from, to time.Time) (int, error) {
	class := ClassName(channelKey(ch))

	res, err := c.conn.GraphQL().Aggregate().
		WithClassName(class).
		WithWhere(rangeFilter(from, to)).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count query on %s: %w", class, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("count query on %s: %s", class, res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("count query on %s: malformed response", class)
	}
	rows, ok := agg[class].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func rangeFilter(from, to time.Time) *filters.WhereBuilder {
	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"timestamp"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueDate(from),
			filters.Where().
				WithPath([]string{"timestamp"}).
				WithOperator(filters.LessThan).
				WithValueDate(to),
		})
}

// parseGetPage extracts the documents of one GraphQL Get page.
func parseGetPage(res *wmodels.GraphQLResponse, class string) ([]models.Message, error) {
	get, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("get query on %s: malformed response", class)
	}
	rows, ok := get[class].([]interface{})
	if !ok {
		return nil, nil
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		m, err := parseMessage(props)
		if err != nil {
			logrus.WithError(err).Warn("Skipping unparsable stored document")
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// channelKey picks the naming key for a channel's index; display name when
// known, id otherwise.
func channelKey(ch models.Channel) string {
	if ch.Name != "" {
		return ch.Name
	}
	return ch.ID
}
