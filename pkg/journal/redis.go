package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "voicebot:turns"

// RedisConfig configures a Redis journal.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
	// MaxLen caps the stream length approximately. Zero keeps everything.
	MaxLen int64 `yaml:"max_len"`
}

// Redis appends entries to a Redis stream.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
	owned  bool
}

// NewRedis wraps an existing client. Close does not close it.
func NewRedis(client *redis.Client, stream string, maxLen int64) *Redis {
	if stream == "" {
		stream = DefaultStream
	}
	return &Redis{client: client, stream: stream, maxLen: maxLen}
}

// OpenRedis connects using cfg.URL and checks the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("journal: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("journal: connect redis: %w", err)
	}
	r := NewRedis(client, cfg.Stream, cfg.MaxLen)
	r.owned = true
	return r, nil
}

// Stream returns the stream key.
func (r *Redis) Stream() string { return r.stream }

// Record adds e to the stream.
func (r *Redis) Record(ctx context.Context, e Entry) error {
	turn, err := json.Marshal(e.Turn)
	if err != nil {
		return fmt.Errorf("journal: encode turn: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"id":   e.ID,
			"time": e.Time.Format(time.RFC3339Nano),
			"turn": string(turn),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("journal: xadd %s: %w", r.stream, err)
	}
	return nil
}

// Recent reads up to n entries, newest first.
func (r *Redis) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 100
	}
	msgs, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("journal: xrevrange %s: %w", r.stream, err)
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e, err := decodeMessage(m.Values)
		if err != nil {
			return nil, fmt.Errorf("journal: message %s: %w", m.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the client if OpenRedis created it.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func decodeMessage(values map[string]interface{}) (Entry, error) {
	var e Entry
	e.ID, _ = values["id"].(string)
	if ts, ok := values["time"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Entry{}, err
		}
		e.Time = t
	}
	raw, ok := values["turn"].(string)
	if !ok {
		return Entry{}, fmt.Errorf("missing turn field")
	}
	if err := json.Unmarshal([]byte(raw), &e.Turn); err != nil {
		return Entry{}, err
	}
	return e, nil
}

var (
	_ Journal = (*Redis)(nil)
	_ Reader  = (*Redis)(nil)
)
