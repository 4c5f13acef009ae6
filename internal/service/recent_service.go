package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bili-danmu/internal/model"
)

// RecentWriter 定义最近事件缓存写入接口。
type RecentWriter interface {
	Append(ctx context.Context, rec model.EventRecord) error
}

// RedisRecentWriter 使用 Redis Sorted Set 保存每个房间最近的事件，score 为 seq。
type RedisRecentWriter struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	limit     int64
}

func NewRedisRecentWriter(client *redis.Client, prefix string, ttl time.Duration, limit int) *RedisRecentWriter {
	if limit <= 0 {
		limit = 200
	}
	return &RedisRecentWriter{
		client:    client,
		keyPrefix: prefix,
		ttl:       ttl,
		limit:     int64(limit),
	}
}

func (w *RedisRecentWriter) key(roomID uint64) string {
	return w.keyPrefix + strconv.FormatUint(roomID, 10)
}

// Append 写入事件并裁剪到 limit 条。
func (w *RedisRecentWriter) Append(ctx context.Context, rec model.EventRecord) error {
	if w.client == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := w.key(rec.RoomID)
	pipe := w.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(rec.Seq),
		Member: data,
	})
	pipe.ZRemRangeByRank(ctx, key, 0, -(w.limit + 1))
	if w.ttl > 0 {
		pipe.Expire(ctx, key, w.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent 按 seq 倒序返回最近 n 条事件。
func (w *RedisRecentWriter) Recent(ctx context.Context, roomID uint64, n int) ([]model.EventRecord, error) {
	if w.client == nil {
		return nil, nil
	}
	if n <= 0 || int64(n) > w.limit {
		n = int(w.limit)
	}
	members, err := w.client.ZRevRange(ctx, w.key(roomID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.EventRecord, 0, len(members))
	for _, m := range members {
		var rec model.EventRecord
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
