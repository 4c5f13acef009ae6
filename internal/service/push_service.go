package service

import (
	"context"
	"reflect"

	"bili-danmu/internal/model"
)

// ConnWriter 抽象 WebSocket 连接的 JSON 写入能力，便于测试替换。
type ConnWriter interface {
	WriteJSON(v interface{}) error
}

// RoomLookup 提供按房间获取订阅连接的能力。
type RoomLookup interface {
	Subscribers(roomID uint64) []ConnWriter
}

// PushService 负责将 OutputPacket 推送到房间内在线订阅者。
type PushService struct {
	conns RoomLookup
}

func NewPushService(conns RoomLookup) *PushService {
	return &PushService{conns: conns}
}

// Broadcast 将事件推送给房间内所有订阅者，最佳努力发送，返回首个错误。
func (s *PushService) Broadcast(ctx context.Context, roomID uint64, packet model.OutputPacket) error {
	var err error
	for _, conn := range s.conns.Subscribers(roomID) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if conn == nil {
			continue
		}
		// 处理“带类型的 nil”场景（接口非 nil，但底层指针为 nil）
		if rv := reflect.ValueOf(conn); rv.Kind() == reflect.Ptr && rv.IsNil() {
			continue
		}
		if curErr := conn.WriteJSON(packet); curErr != nil && err == nil {
			err = curErr
		}
	}
	return err
}
