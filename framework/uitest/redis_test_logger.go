package uitest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acronymia/ui-test-harness/framework"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix is used for the list and channel names when none is configured.
	DefaultRedisKeyPrefix = "acronymia:ui-tests"
	redisWriteTimeout     = 5 * time.Second
)

// RedisWriter is the part of a Redis client that RedisTestLogger uses. *redis.Client implements it.
type RedisWriter interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisTestRecord is the JSON record written for each finished or skipped test, and, with
// Kind "summary", once for the whole run.
type RedisTestRecord struct {
	Kind       string     `json:"kind"`
	RunID      string     `json:"runId"`
	TestID     string     `json:"testId,omitempty"`
	Outcome    Outcome    `json:"outcome,omitempty"`
	DurationMS int64      `json:"durationMs,omitempty"`
	Errors     []string   `json:"errors,omitempty"`
	SkipReason string     `json:"skipReason,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
	Passed     int        `json:"passed,omitempty"`
	Failed     int        `json:"failed,omitempty"`
	TimedOut   int        `json:"timedOut,omitempty"`
	Skipped    int        `json:"skipped,omitempty"`
	Time       time.Time  `json:"time"`
}

// MarshalJSON writes only the properties that apply to the record's kind.
func (r RedisTestRecord) MarshalJSON() ([]byte, error) {
	return jwriter.MarshalJSONWithWriter(r)
}

func (r RedisTestRecord) WriteToJSONWriter(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("kind").String(r.Kind)
	obj.Name("runId").String(r.RunID)
	obj.Maybe("testId", r.TestID != "").String(r.TestID)
	obj.Maybe("outcome", r.Outcome != "").String(string(r.Outcome))
	obj.Maybe("durationMs", r.DurationMS != 0).Int(int(r.DurationMS))
	if len(r.Errors) != 0 {
		arr := obj.Name("errors").Array()
		for _, e := range r.Errors {
			arr.String(e)
		}
		arr.End()
	}
	obj.Maybe("skipReason", r.SkipReason != "").String(r.SkipReason)
	if len(r.Artifacts) != 0 {
		arr := obj.Name("artifacts").Array()
		for _, a := range r.Artifacts {
			item := arr.Object()
			item.Name("name").String(a.Name)
			item.Name("ref").String(a.Ref)
			item.End()
		}
		arr.End()
	}
	if r.Kind == "summary" {
		obj.Name("passed").Int(r.Passed)
		obj.Name("failed").Int(r.Failed)
		obj.Name("timedOut").Int(r.TimedOut)
		obj.Name("skipped").Int(r.Skipped)
	}
	obj.Name("time").String(r.Time.Format(time.RFC3339Nano))
	obj.End()
}

// RedisTestLogger reports results to a Redis-based collector: every record is appended to the
// list "<prefix>:<runID>" and published on the channel "<prefix>:events", so a dashboard can
// either read a whole run back or follow runs live.
//
// Reporting is best-effort: a Redis error is logged and remembered, but never fails a test.
// EndLog returns the first such error.
type RedisTestLogger struct {
	client   RedisWriter
	runID    string
	prefix   string
	logger   framework.Logger
	now      func() time.Time
	firstErr error
	lock     sync.Mutex
}

// NewRedisTestLogger creates a RedisTestLogger. An empty prefix means DefaultRedisKeyPrefix.
func NewRedisTestLogger(client RedisWriter, runID, prefix string, logger framework.Logger) *RedisTestLogger {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &RedisTestLogger{client: client, runID: runID, prefix: prefix, logger: logger, now: time.Now}
}

// NewRedisClient creates a client from a URL such as "redis://localhost:6379/0".
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return redis.NewClient(options), nil
}

// ListKey is the name of the Redis list that receives this run's records.
func (r *RedisTestLogger) ListKey() string { return r.prefix + ":" + r.runID }

// Channel is the name of the Redis channel that records are published on.
func (r *RedisTestLogger) Channel() string { return r.prefix + ":events" }

func (r *RedisTestLogger) TestStarted(TestID) {}

func (r *RedisTestLogger) TestError(TestID, error) {}

func (r *RedisTestLogger) TestFinished(id TestID, result TestResult, _ framework.CapturedOutput) {
	record := RedisTestRecord{
		Kind:       "test",
		TestID:     id.String(),
		Outcome:    result.Outcome,
		DurationMS: result.Duration.Milliseconds(),
		Artifacts:  result.Artifacts,
	}
	for _, err := range result.Errors {
		record.Errors = append(record.Errors, err.Error())
	}
	r.write(record)
}

func (r *RedisTestLogger) TestSkipped(id TestID, reason string) {
	r.write(RedisTestRecord{Kind: "test", TestID: id.String(), Outcome: OutcomeSkipped, SkipReason: reason})
}

func (r *RedisTestLogger) EndLog(results Results) error {
	r.write(RedisTestRecord{
		Kind:     "summary",
		Passed:   results.Count(OutcomePassed),
		Failed:   results.Count(OutcomeFailed),
		TimedOut: results.Count(OutcomeTimedOut),
		Skipped:  results.Count(OutcomeSkipped),
	})
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.firstErr != nil {
		return fmt.Errorf("failed to report results to Redis: %w", r.firstErr)
	}
	return nil
}

func (r *RedisTestLogger) write(record RedisTestRecord) {
	record.RunID = r.runID
	record.Time = r.now().UTC()
	data, err := record.MarshalJSON()
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), redisWriteTimeout)
		defer cancel()
		err = errors.Join(
			r.client.RPush(ctx, r.ListKey(), string(data)).Err(),
			r.client.Publish(ctx, r.Channel(), string(data)).Err(),
		)
	}
	if err != nil {
		r.logger.Printf("Could not report %q to Redis: %s", record.TestID, err)
		r.lock.Lock()
		if r.firstErr == nil {
			r.firstErr = err
		}
		r.lock.Unlock()
	}
}
