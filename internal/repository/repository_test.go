package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bili-danmu/internal/model"
)

func newTestDB(t *testing.T) (*EventRepository, *PullRepository, *SeqRepository) {
	t.Helper()
	db, err := NewDB()
	if err != nil {
		t.Skipf("skip: MySQL not available: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewEventRepository(db), NewPullRepository(db), NewSeqRepository(db)
}

func testRoom() uint64 {
	return uint64(time.Now().UnixNano()%1_000_000_000) + 2_000_000_000
}

func TestSaveEventAssignsSeqAndDetectsDuplicate(t *testing.T) {
	events, pull, seqs := newTestDB(t)
	ctx := context.Background()
	room := testRoom()

	for i := 1; i <= 3; i++ {
		rec := &model.EventRecord{EventID: fmt.Sprintf("repo-%d-%d", room, i), RoomID: room, Kind: model.KindDanmu, Payload: "{}"}
		if err := events.SaveEvent(ctx, rec); err != nil {
			t.Fatalf("SaveEvent #%d: %v", i, err)
		}
		if rec.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, rec.Seq)
		}
	}

	dup := &model.EventRecord{EventID: fmt.Sprintf("repo-%d-1", room), RoomID: room, Payload: "{}"}
	if err := events.SaveEvent(ctx, dup); !errors.Is(err, ErrDuplicateEventID) {
		t.Fatalf("expected ErrDuplicateEventID, got %v", err)
	}

	next, err := seqs.NextSeq(ctx, room)
	if err != nil || next != 4 {
		t.Fatalf("NextSeq = %d, %v", next, err)
	}

	list, err := pull.ListEvents(ctx, room, 1, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(list) != 2 || list[0].Seq != 2 || list[1].Seq != 3 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestUpsertCursorIsMonotonic(t *testing.T) {
	_, pull, _ := newTestDB(t)
	ctx := context.Background()
	room := testRoom()
	sub := fmt.Sprintf("sub-%d", room)

	if got, err := pull.GetCursor(ctx, sub, room); err != nil || got != 0 {
		t.Fatalf("initial cursor = %d, %v", got, err)
	}
	for _, seq := range []int64{5, 3, 8} {
		if err := pull.UpsertCursor(ctx, sub, room, seq); err != nil {
			t.Fatalf("UpsertCursor(%d): %v", seq, err)
		}
	}
	if got, err := pull.GetCursor(ctx, sub, room); err != nil || got != 8 {
		t.Fatalf("cursor = %d, %v", got, err)
	}
	if err := pull.UpsertCursor(ctx, "", room, 1); err == nil {
		t.Fatalf("expected error for empty subscriber")
	}
}
