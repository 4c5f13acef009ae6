package protocol

import (
	"encoding/json"
)

// DefaultClientVer 握手时上报的 web 客户端版本。
const DefaultClientVer = "2.4.11"

// heartbeatFrame 固定心跳帧：{31,16,1,2,1} + "[object Object]"。
var heartbeatFrame = []byte("\x00\x00\x00\x1f\x00\x10\x00\x01\x00\x00\x00\x02\x00\x00\x00\x01[object Object]")

// HeartbeatFrame 返回心跳帧的拷贝。
func HeartbeatFrame() []byte {
	return append([]byte(nil), heartbeatFrame...)
}

// ClientAuth 是 ClientAuth 帧的 JSON body；Key 为空时省略。
type ClientAuth struct {
	RoomID    uint64 `json:"roomid"`
	ProtoVer  uint8  `json:"protover"`
	Platform  string `json:"platform"`
	ClientVer string `json:"clientver"`
	Type      uint8  `json:"type"`
	Key       string `json:"key,omitempty"`
}

// NewClientAuth 构造认证 body，clientVer 为空时使用 DefaultClientVer。
func NewClientAuth(roomID uint64, key, clientVer string) ClientAuth {
	if clientVer == "" {
		clientVer = DefaultClientVer
	}
	return ClientAuth{
		RoomID:    roomID,
		ProtoVer:  2,
		Platform:  "web",
		ClientVer: clientVer,
		Type:      2,
		Key:       key,
	}
}

// AuthFrame 编码完整的认证帧（Plain + ClientAuth）。
func AuthFrame(auth ClientAuth) ([]byte, error) {
	body, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(TypeClientAuth, VersionPlain, body), nil
}
