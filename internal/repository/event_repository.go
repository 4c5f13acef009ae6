package repository

import (
	"context"
	"errors"

	"bili-danmu/internal/model"

	"github.com/go-sql-driver/mysql"

	"gorm.io/gorm"
)

// EventRepository 负责房间事件的持久化。
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// DB 暴露底层 *gorm.DB，便于测试/复用。
func (r *EventRepository) DB() *gorm.DB {
	return r.db
}

// SaveEvent 写入事件；rec.Seq 为 0 时在事务内生成房间内 seq。
func (r *EventRepository) SaveEvent(ctx context.Context, rec *model.EventRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.Seq == 0 {
			var maxSeq uint64
			// 锁住房间内最大 seq，防止并发写入拿到相同值
			if err := tx.Raw(
				"SELECT COALESCE(MAX(seq), 0) FROM room_event WHERE room_id = ? FOR UPDATE",
				rec.RoomID,
			).Scan(&maxSeq).Error; err != nil {
				return err
			}
			rec.Seq = maxSeq + 1
		}

		if err := tx.Create(rec).Error; err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
				return ErrDuplicateEventID
			}
			return err
		}
		return nil
	})
}

// FindByEventID 根据 event_id 查询单条事件，用于幂等返回 seq。
func (r *EventRepository) FindByEventID(ctx context.Context, eventID string) (*model.EventRecord, error) {
	var rec model.EventRecord
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ErrDuplicateEventID 用于幂等冲突识别。
var ErrDuplicateEventID = errors.New("duplicate event_id")
