// Package remote keeps a per-user copy of open tabs in Redis so a session can
// continue on another device.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrMirrorEmpty = errors.New("no mirrored tabs")

type record struct {
	Tab         domain.SaleTab `json:"tab"`
	LastUpdated time.Time      `json:"last_updated"`
}

type RedisMirror struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		client:  client,
		baseTTL: 7 * 24 * time.Hour,
	}
}

// Save overwrites the tab's record; the last writer wins.
func (r *RedisMirror) Save(ctx context.Context, userID string, tab domain.SaleTab, lastUpdated time.Time) error {
	data, err := json.Marshal(record{Tab: tab, LastUpdated: lastUpdated.UTC()})
	if err != nil {
		return fmt.Errorf("marshal tab failed: %w", err)
	}

	key := mirrorKey(userID)
	jitter := time.Duration(rand.Intn(12)) * time.Hour
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, tab.ID, data)
		pipe.Expire(ctx, key, r.baseTTL+jitter)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save failed: %w", err)
	}
	return nil
}

func (r *RedisMirror) Delete(ctx context.Context, userID, tabID string) error {
	if err := r.client.HDel(ctx, mirrorKey(userID), tabID).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Load returns mirrored tabs oldest first.
func (r *RedisMirror) Load(ctx context.Context, userID string) ([]domain.SaleTab, error) {
	fields, err := r.client.HGetAll(ctx, mirrorKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrMirrorEmpty
	}

	records := make([]record, 0, len(fields))
	for tabID, raw := range fields {
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal tab %s failed: %w", tabID, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastUpdated.Before(records[j].LastUpdated)
	})

	tabs := make([]domain.SaleTab, len(records))
	for i, rec := range records {
		tabs[i] = rec.Tab
	}
	return tabs, nil
}

func mirrorKey(userID string) string {
	return fmt.Sprintf("pos:%s:active_tabs", userID)
}
