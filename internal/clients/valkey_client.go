package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const VALKEY_PROCESSED_KEY = "forumpulse:processed_posts"

type ValkeyConfig struct {
	Addr     string
	Password string
	TLS      bool
}

// ValkeyClient remembers which post ids the ingester has already handled so
// repeat fetches skip the store lookup.
type ValkeyClient struct {
	Client valkey.Client
	key    string
	ttl    time.Duration
}

func NewValkeyClient(ctx context.Context, cfg ValkeyConfig) (*ValkeyClient, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey", slog.String("addr", cfg.Addr))
	return &ValkeyClient{Client: client, key: VALKEY_PROCESSED_KEY, ttl: VALKEY_PROCESSED_TTL}, nil
}

func (vc *ValkeyClient) Close() {
	vc.Client.Close()
}

// IsProcessed reports whether id was marked. Cache errors read as "not processed";
// the store is the source of truth.
func (vc *ValkeyClient) IsProcessed(ctx context.Context, id string) bool {
	res := vc.DoWithRetry(ctx, vc.Client.B().Sismember().Key(vc.key).Member(id).Build().Pin(), 3)
	ok, err := res.AsBool()
	if err != nil {
		return false
	}
	return ok
}

func (vc *ValkeyClient) MarkProcessed(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	completed := []valkey.Completed{
		vc.Client.B().Sadd().Key(vc.key).Member(ids...).Build().Pin(),
		vc.Client.B().Expire().Key(vc.key).Seconds(int64(vc.ttl.Seconds())).Build().Pin(),
	}

	for _, res := range vc.DoMultiWithRetry(ctx, completed, 3) {
		if err := res.Error(); err != nil {
			return err
		}
	}

	slog.Debug("[ValkeyClient] Marked posts processed", slog.Int("count", len(ids)))
	return nil
}

func (vc *ValkeyClient) DoMultiWithRetry(ctx context.Context, completed []valkey.Completed, retries int) []valkey.ValkeyResult {
	var results []valkey.ValkeyResult

	for i := 0; i < retries; i++ {
		results = vc.Client.DoMulti(ctx, completed...)
		hasErr := false
		for _, r := range results {
			if r.Error() != nil {
				hasErr = true
				slog.Warn("[ValkeyClient] Do Multi failed",
					slog.Int("attempt", i+1),
					slog.String("error", r.Error().Error()))
				break
			}
		}
		if !hasErr || !isConnectionError(firstError(results)) {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	return results
}

func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, completed)
		if result.Error() == nil || !isConnectionError(result.Error()) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func firstError(results []valkey.ValkeyResult) error {
	for _, r := range results {
		if err := r.Error(); err != nil {
			return err
		}
	}
	return nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
