package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"domaincheck/internal/model"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/redis/go-redis/v9"
)

const historyLimit = 100

type Storage struct {
	Client *redis.Client
}

func NewStorage(host, port string) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port,
		DB:   0,
	})
	return &Storage{Client: rdb}
}

func cacheKey(domain string) string   { return "check:" + domain }
func historyKey(domain string) string { return "check_history:" + domain }

// GetCachedCheck returns the cached check data for domain. ok is false on a
// cache miss.
func (s *Storage) GetCachedCheck(ctx context.Context, domain string) (data map[string]interface{}, ok bool, err error) {
	raw, err := s.Client.Get(ctx, cacheKey(domain)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false, fmt.Errorf("decode cached check for %s: %w", domain, err)
	}
	return data, true, nil
}

func (s *Storage) SetCachedCheck(ctx context.Context, domain string, data map[string]interface{}, ttl time.Duration) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, cacheKey(domain), b, ttl).Err()
}

func (s *Storage) GetCheckHistory(ctx context.Context, domain string) ([]model.HistoryEntry, error) {
	val, err := s.Client.LRange(ctx, historyKey(domain), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var entries []model.HistoryEntry
	for _, v := range val {
		var entry model.HistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// AddCheckHistory records result unless it equals the newest entry. The list
// keeps the latest historyLimit entries, newest first.
func (s *Storage) AddCheckHistory(ctx context.Context, domain string, result interface{}) error {
	resBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}
	resStr := string(resBytes)

	lastEntryJSON, err := s.Client.LIndex(ctx, historyKey(domain), 0).Result()
	if err == nil {
		var lastEntry model.HistoryEntry
		if json.Unmarshal([]byte(lastEntryJSON), &lastEntry) == nil && lastEntry.Result == resStr {
			return nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return err
	}

	entry := model.HistoryEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Result:    resStr,
	}
	entryBytes, _ := json.Marshal(entry)

	pipe := s.Client.Pipeline()
	pipe.LPush(ctx, historyKey(domain), string(entryBytes))
	pipe.LTrim(ctx, historyKey(domain), 0, historyLimit-1)
	_, err = pipe.Exec(ctx)
	return err
}

// GetHistoryWithDiffs returns the history newest first; diffs[i] is the
// unified diff from entries[i+1] to entries[i].
func (s *Storage) GetHistoryWithDiffs(ctx context.Context, domain string) ([]model.HistoryEntry, []string, error) {
	entries, err := s.GetCheckHistory(ctx, domain)
	if err != nil {
		return nil, nil, err
	}

	diffs := make([]string, 0, len(entries))
	for i := 0; i+1 < len(entries); i++ {
		older := pretty(entries[i+1].Result)
		newer := pretty(entries[i].Result)
		edits := myers.ComputeEdits(span.URIFromPath(domain), older, newer)
		diffs = append(diffs, fmt.Sprint(gotextdiff.ToUnified(entries[i+1].Timestamp, entries[i].Timestamp, older, edits)))
	}
	return entries, diffs, nil
}

func pretty(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw + "\n"
	}
	buf.WriteByte('\n')
	return buf.String()
}
