package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bili-danmu/internal/model"
	"bili-danmu/internal/protocol"
)

// RoomEvent 是解码后的事件在服务内部（含 MQ）流转的形式。
type RoomEvent struct {
	EventID     string          `json:"event_id"`
	RoomID      uint64          `json:"room_id"`
	Kind        model.EventKind `json:"kind"`
	Cmd         string          `json:"cmd"`
	UserID      uint64          `json:"user_id,omitempty"`
	UserName    string          `json:"user_name,omitempty"`
	Content     string          `json:"content,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	ReceiveTime int64           `json:"receive_time"`
}

// NewRoomEvent 为事件分配 event_id 并展开常用字段；Other 保留原始 JSON 作为 payload。
func NewRoomEvent(roomID uint64, ev model.Event, now time.Time) (RoomEvent, error) {
	re := RoomEvent{
		EventID:     uuid.NewString(),
		RoomID:      roomID,
		Kind:        ev.Kind(),
		ReceiveTime: now.UnixMilli(),
	}

	switch e := ev.(type) {
	case model.Danmu:
		re.Cmd = protocol.CmdDanmu
		re.UserID = e.User.ID
		re.UserName = e.User.Name
		re.Content = e.Text
	case model.Gift:
		re.Cmd = protocol.CmdGift
		re.UserName = e.SenderName
		re.Content = e.GiftName
	case model.Interact:
		re.Cmd = protocol.CmdInteract
	case model.Banner:
		re.Cmd = protocol.CmdBanner
	case model.Notice:
		re.Cmd = protocol.CmdNotice
	case model.Other:
		re.Cmd = e.Cmd
		re.Payload = append(json.RawMessage(nil), e.Raw...)
		return re, nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return RoomEvent{}, err
	}
	re.Payload = payload
	return re, nil
}

// Record 转换为归档记录，seq 由 EventService 填充。
func (e RoomEvent) Record() model.EventRecord {
	return model.EventRecord{
		EventID:     e.EventID,
		RoomID:      e.RoomID,
		Kind:        e.Kind,
		Cmd:         e.Cmd,
		UserID:      e.UserID,
		UserName:    e.UserName,
		Content:     e.Content,
		Payload:     string(e.Payload),
		ReceiveTime: e.ReceiveTime,
	}
}
