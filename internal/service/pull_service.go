package service

import (
	"context"

	"bili-danmu/internal/model"
)

const (
	defaultPullLimit = 50
	maxPullLimit     = 500
)

// PullResult 封装拉取结果。
type PullResult struct {
	Events        []model.EventRecord
	NextCursorSeq int64
	HasMore       bool
}

// PullStorage 抽象仓储接口，便于测试替换。
type PullStorage interface {
	ListEvents(ctx context.Context, roomID uint64, afterSeq int64, limit int) ([]model.EventRecord, error)
	UpsertCursor(ctx context.Context, subscriberID string, roomID uint64, ackSeq int64) error
}

type PullService struct {
	store PullStorage
}

func NewPullService(store PullStorage) *PullService {
	return &PullService{store: store}
}

// PullEvents 按房间内 seq 拉取事件，返回游标信息。
func (s *PullService) PullEvents(ctx context.Context, roomID uint64, cursorSeq int64, limit int) (PullResult, error) {
	if limit <= 0 {
		limit = defaultPullLimit
	}
	if limit > maxPullLimit {
		limit = maxPullLimit
	}
	// 多查一条用于判断是否还有更多
	events, err := s.store.ListEvents(ctx, roomID, cursorSeq, limit+1)
	if err != nil {
		return PullResult{}, err
	}
	if len(events) == 0 {
		return PullResult{NextCursorSeq: cursorSeq, Events: events}, nil
	}
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return PullResult{
		Events:        events,
		NextCursorSeq: int64(events[len(events)-1].Seq),
		HasMore:       hasMore,
	}, nil
}

// AckCursor 更新订阅者在房间的 last_ack_seq，回退的 ackSeq 由仓储层忽略。
func (s *PullService) AckCursor(ctx context.Context, subscriberID string, roomID uint64, ackSeq int64) error {
	return s.store.UpsertCursor(ctx, subscriberID, roomID, ackSeq)
}
