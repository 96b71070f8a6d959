package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

var (
	valkeyInstance *ValkeyClient
	valkeyOnce     sync.Once
)

type ValkeyClient struct {
	Client valkey.Client
	mu     sync.Mutex
}

const (
	VALKEY_SEEN_KEY_PREFIX   = "feedback:seen:"
	DEFAULT_SEEN_TTL_SECONDS = 7 * 24 * 60 * 60
)

func newValkeyClient() valkey.Client {
	valkeyAddr := os.Getenv("VALKEY_INIT_ADDRESS")
	valkeyPassword := os.Getenv("VALKEY_PASSWORD")
	useTLS := os.Getenv("VALKEY_TLS") == "true"

	opts := valkey.ClientOption{
		InitAddress: []string{
			valkeyAddr,
		},
		Password:         valkeyPassword,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if useTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		panic(fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if c := client.Do(ctx, client.B().Ping().Build()); c.Error() != nil {
		panic(fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", c.Error()))
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey")
	return client
}

func InitValkey() *ValkeyClient {
	valkeyOnce.Do(func() {
		valkeyInstance = &ValkeyClient{Client: newValkeyClient()}
	})
	return valkeyInstance
}

func (vc *ValkeyClient) recreateClient() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ValkeyClient] Recreate failed and was recovered from panic",
				slog.Any("panic", r))
		}
	}()

	vc.mu.Lock()
	defer vc.mu.Unlock()
	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	vc.Client.Close()
	vc.Client = newValkeyClient()
}

func CloseValkey() {
	if valkeyInstance != nil {
		valkeyInstance.Client.Close()
	}
}

func GetValkeyClient() *ValkeyClient {
	if valkeyInstance == nil {
		panic("[ValkeyClient] Error: Valkey client is not initialized")
	}
	return valkeyInstance
}

func seenKey(songID string) string {
	return VALKEY_SEEN_KEY_PREFIX + songID
}

func seenTTLSeconds() int64 {
	if v := os.Getenv("SEEN_TTL_SECONDS"); v != "" {
		if ttl, err := strconv.ParseInt(v, 10, 64); err == nil && ttl > 0 {
			return ttl
		}
	}
	return DEFAULT_SEEN_TTL_SECONDS
}

// MarkSeen records a feedback source id in the song's seen set and refreshes
// the set TTL.
func (vc *ValkeyClient) MarkSeen(ctx context.Context, songID string, sourceID string) error {
	key := seenKey(songID)
	completed := []valkey.Completed{
		vc.Client.B().Sadd().Key(key).Member(sourceID).Build(),
		vc.Client.B().Expire().Key(key).Seconds(seenTTLSeconds()).Build(),
	}

	responses := vc.DoMultiWithRetry(ctx, completed, 3)
	for _, res := range responses {
		if err := res.Error(); err != nil {
			return err
		}
	}

	slog.Debug("[ValkeyClient] Marked feedback as seen",
		slog.String("song_id", songID),
		slog.String("source_id", sourceID))
	return nil
}

// IsSeen reports whether a feedback source id was already collected for the
// song. Errors read as "not seen" so a Valkey outage degrades to re-analysis
// of duplicates instead of data loss.
func (vc *ValkeyClient) IsSeen(ctx context.Context, songID string, sourceID string) bool {
	res := vc.DoWithRetry(ctx, vc.Client.B().Sismember().Key(seenKey(songID)).Member(sourceID).Build(), 3)

	if err := res.Error(); isConnectionError(err) {
		vc.recreateClient()
	}

	ok, err := res.AsBool()
	if err != nil {
		return false
	}

	return ok
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
				if isConnectionError(r.Error()) {
					vc.recreateClient()
				}
				break
			}
		}
		if !hasErr {
			break
		}
		time.Sleep(time.Millisecond * 250)
	}

	return results
}

func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, completed)
		if result.Error() == nil {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		time.Sleep(250 * time.Millisecond)
	}

	return result
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
