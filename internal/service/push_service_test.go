package service

import (
	"context"
	"errors"
	"testing"

	"bili-danmu/internal/model"
)

type recordingConn struct {
	packets []interface{}
	err     error
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.packets = append(c.packets, v)
	return nil
}

type stubRooms map[uint64][]ConnWriter

func (s stubRooms) Subscribers(roomID uint64) []ConnWriter {
	return s[roomID]
}

func TestBroadcastBestEffort(t *testing.T) {
	ok1 := &recordingConn{}
	bad := &recordingConn{err: errors.New("broken pipe")}
	ok2 := &recordingConn{}
	var typedNil *recordingConn
	rooms := stubRooms{1: {ok1, bad, typedNil, nil, ok2}, 2: {&recordingConn{}}}

	err := NewPushService(rooms).Broadcast(context.Background(), 1, model.OutputPacket{Cmd: model.CmdEvent, Seq: 3})
	if err == nil || err.Error() != "broken pipe" {
		t.Fatalf("expected first write error, got %v", err)
	}
	if len(ok1.packets) != 1 || len(ok2.packets) != 1 {
		t.Fatalf("healthy subscribers should still receive the packet")
	}
	if got := rooms[2][0].(*recordingConn); len(got.packets) != 0 {
		t.Fatalf("other rooms must not receive the packet")
	}
}

func TestBroadcastEmptyRoom(t *testing.T) {
	if err := NewPushService(stubRooms{}).Broadcast(context.Background(), 9, model.OutputPacket{}); err != nil {
		t.Fatalf("empty room should not fail: %v", err)
	}
}
