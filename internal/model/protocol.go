package model

import "encoding/json"

// 下游订阅者与服务器之间的指令
type CmdType int

const (
	CmdHeartbeat CmdType = iota // 心跳
	CmdEvent                    // 服务端推送直播间事件
	CmdPull                     // 按游标拉取历史事件
	CmdAck                      // 确认已消费到的 seq
)

// InputPacket 订阅者发给服务器的包
type InputPacket struct {
	Cmd       CmdType         `json:"cmd"`
	RoomID    uint64          `json:"room_id,omitempty"`    // 为空时使用连接所属房间
	CursorSeq int64           `json:"cursor_seq,omitempty"` // ⭐ 游标：从该seq之后开始拉取
	Limit     int             `json:"limit,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// OutputPacket 服务端发给订阅者的包
type OutputPacket struct {
	Cmd           CmdType     `json:"cmd"`
	Code          int         `json:"code"` // 0:成功, 非0:失败
	RoomID        uint64      `json:"room_id,omitempty"`
	Seq           int64       `json:"seq,omitempty"`             // 房间内序列号
	NextCursorSeq int64       `json:"next_cursor_seq,omitempty"` // ⭐ 下次拉取的游标
	HasMore       bool        `json:"has_more,omitempty"`        // ⭐ 是否还有更多事件
	Payload       interface{} `json:"payload,omitempty"`
}
