package repository

import (
	"context"
	"errors"

	"bili-danmu/internal/model"

	"gorm.io/gorm"
)

// PullRepository 提供历史拉取和游标确认所需的数据访问。
type PullRepository struct {
	db *gorm.DB
}

func NewPullRepository(db *gorm.DB) *PullRepository {
	return &PullRepository{db: db}
}

// DB 暴露底层 *gorm.DB，便于测试/复用。
func (r *PullRepository) DB() *gorm.DB {
	return r.db
}

// ListEvents 按房间内 seq 拉取事件，返回升序列表。
func (r *PullRepository) ListEvents(ctx context.Context, roomID uint64, afterSeq int64, limit int) ([]model.EventRecord, error) {
	if roomID == 0 {
		return nil, errors.New("roomID cannot be empty")
	}
	var events []model.EventRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND seq > ?", roomID, afterSeq).
		Order("seq ASC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// UpsertCursor 插入或更新订阅者在房间的 last_ack_seq，ackSeq 只有在更大时才更新。
func (r *PullRepository) UpsertCursor(ctx context.Context, subscriberID string, roomID uint64, ackSeq int64) error {
	if subscriberID == "" || roomID == 0 {
		return errors.New("subscriberId and roomId required")
	}
	return r.db.WithContext(ctx).Exec(`
	INSERT INTO subscriber_cursor (subscriber_id, room_id, last_ack_seq)
	VALUES (?, ?, ?)
	ON DUPLICATE KEY UPDATE last_ack_seq = GREATEST(last_ack_seq, VALUES(last_ack_seq))
	`, subscriberID, roomID, ackSeq).Error
}

// GetCursor 返回订阅者已确认的 seq，没有记录时为 0。
func (r *PullRepository) GetCursor(ctx context.Context, subscriberID string, roomID uint64) (int64, error) {
	var cur model.SubscriberCursor
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND room_id = ?", subscriberID, roomID).
		First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cur.LastAckSeq, nil
}
