package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"bili-danmu/internal/infra"
	"bili-danmu/internal/model"
	"bili-danmu/internal/repository"
)

func TestHandleWithRedisSeqAndRecentIntegration(t *testing.T) {
	// 初始化 MySQL
	db, err := repository.NewDB()
	if err != nil {
		t.Skipf("skip: MySQL not available: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate tables: %v", err)
	}
	eventRepo := repository.NewEventRepository(db)

	// 初始化 Redis
	rdb := infra.NewRedisClient()
	if rdb == nil {
		t.Skip("skip: Redis not configured")
	}
	if err := infra.PingRedis(context.Background(), rdb); err != nil {
		t.Skipf("skip: Redis not reachable: %v", err)
	}

	ctx := context.Background()
	roomID := uint64(time.Now().UnixNano() % 1_000_000_000)
	seqPrefix := "test:danmu:seq:"
	recentPrefix := "test:danmu:recent:"
	_ = rdb.Del(ctx, seqPrefix+strconv.FormatUint(roomID, 10), recentPrefix+strconv.FormatUint(roomID, 10)).Err()

	seqGen := NewRedisSeqGenerator(rdb, seqPrefix)
	recent := NewRedisRecentWriter(rdb, recentPrefix, time.Hour, 10)
	svc := NewEventServiceWithSeq(eventRepo, seqGen).WithRecent(recent)

	evt, err := NewRoomEvent(roomID, model.Danmu{Text: "hello int", User: model.UserInfo{Name: "u1", ID: 1}}, time.Now())
	if err != nil {
		t.Fatalf("NewRoomEvent: %v", err)
	}
	rec, err := svc.Handle(ctx, evt)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if rec.Seq != 1 {
		t.Fatalf("expected seq=1 for a fresh room, got %d", rec.Seq)
	}

	// 验证落库
	var saved model.EventRecord
	if err := db.WithContext(ctx).First(&saved, "event_id = ?", evt.EventID).Error; err != nil {
		t.Fatalf("query saved event: %v", err)
	}
	if saved.Seq != rec.Seq || saved.RoomID != roomID || saved.Content != "hello int" {
		t.Fatalf("saved event mismatch: %+v", saved)
	}

	// 幂等
	again, err := svc.Handle(ctx, evt)
	if err != nil {
		t.Fatalf("Handle duplicate error: %v", err)
	}
	if again.Seq != rec.Seq {
		t.Fatalf("duplicate should return seq %d, got %d", rec.Seq, again.Seq)
	}

	// 验证最近缓存
	items, err := recent.Recent(ctx, roomID, 5)
	if err != nil {
		t.Fatalf("read recent: %v", err)
	}
	if len(items) != 1 || items[0].EventID != evt.EventID {
		t.Fatalf("unexpected recent items: %+v", items)
	}

	// 拉取
	pull := NewPullService(repository.NewPullRepository(db))
	page, err := pull.PullEvents(ctx, roomID, 0, 10)
	if err != nil {
		t.Fatalf("PullEvents: %v", err)
	}
	if len(page.Events) != 1 || page.NextCursorSeq != 1 || page.HasMore {
		t.Fatalf("unexpected pull page: %+v", page)
	}
}
