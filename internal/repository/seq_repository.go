package repository

import (
	"context"
	"errors"

	"bili-danmu/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeqRepository 使用 MySQL 生成房间内 seq，Redis 不可用时作为回退方案。
type SeqRepository struct {
	db *gorm.DB
}

func NewSeqRepository(db *gorm.DB) *SeqRepository {
	return &SeqRepository{db: db}
}

// NextSeq 在事务中获取房间内最大 seq+1。
func (r *SeqRepository) NextSeq(ctx context.Context, roomID uint64) (uint64, error) {
	if roomID == 0 {
		return 0, errors.New("roomID required")
	}
	var seq uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq uint64
		if err := tx.Model(&model.EventRecord{}).
			Select("COALESCE(MAX(seq),0)").
			Where("room_id = ?", roomID).
			// 锁定行，防止并发竞争；若无匹配行，InnoDB 会锁间隙
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		seq = maxSeq + 1
		return nil
	})
	return seq, err
}
