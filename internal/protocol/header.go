package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderLen 固定头部长度。
	HeaderLen = 16
	// headerSequence 编码时固定写入的序列号，解码时忽略。
	headerSequence uint32 = 1
)

// Version 描述 body 的编码方式。
type Version uint16

const (
	VersionPlain      Version = 0
	VersionHeartbeat  Version = 1
	VersionCompressed Version = 2
)

func (v Version) valid() bool {
	return v <= VersionCompressed
}

func (v Version) String() string {
	switch v {
	case VersionPlain:
		return "plain"
	case VersionHeartbeat:
		return "heartbeat"
	case VersionCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("version(%d)", uint16(v))
	}
}

// MessageType 描述帧的用途。
type MessageType uint32

const (
	TypeHeartbeat         MessageType = 2
	TypeHeartbeatResponse MessageType = 3
	TypeNotification      MessageType = 5
	TypeClientAuth        MessageType = 7
	TypeServerAuth        MessageType = 8
)

func (t MessageType) valid() bool {
	switch t {
	case TypeHeartbeat, TypeHeartbeatResponse, TypeNotification, TypeClientAuth, TypeServerAuth:
		return true
	}
	return false
}

func (t MessageType) String() string {
	switch t {
	case TypeHeartbeat:
		return "heartbeat"
	case TypeHeartbeatResponse:
		return "heartbeat_response"
	case TypeNotification:
		return "notification"
	case TypeClientAuth:
		return "client_auth"
	case TypeServerAuth:
		return "server_auth"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Header 是 16 字节定长帧头（大端）：
// [u32 total_length][u16 header_length][u16 version][u32 message_type][u32 sequence]
type Header struct {
	TotalLen  uint32
	HeaderLen uint16
	Version   Version
	Type      MessageType
}

// NewHeader 按 body 长度构造帧头。
func NewHeader(bodyLen int, typ MessageType, ver Version) Header {
	return Header{
		TotalLen:  uint32(bodyLen + HeaderLen),
		HeaderLen: HeaderLen,
		Version:   ver,
		Type:      typ,
	}
}

// BodyLen 返回 total_length - 16。
func (h Header) BodyLen() int {
	return int(h.TotalLen) - HeaderLen
}

// Encode 写出 16 字节帧头。
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.TotalLen)
	binary.BigEndian.PutUint16(buf[4:6], h.HeaderLen)
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Version))
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.Type))
	binary.BigEndian.PutUint32(buf[12:16], headerSequence)
	return buf
}

// EncodeHeader 等价于 NewHeader(bodyLen, typ, ver).Encode()。
func EncodeHeader(bodyLen int, typ MessageType, ver Version) []byte {
	return NewHeader(bodyLen, typ, ver).Encode()
}

// EncodeFrame 拼接帧头与 body。
func EncodeFrame(typ MessageType, ver Version, body []byte) []byte {
	out := make([]byte, 0, HeaderLen+len(body))
	out = append(out, EncodeHeader(len(body), typ, ver)...)
	return append(out, body...)
}

// DecodeHeader 解析 buf 开头的帧头，返回其后剩余的字节。
// 截断或非法输入只返回 ErrMalformedFrame，不会越界读取。
func DecodeHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderLen {
		return Header{}, nil, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedFrame, len(buf))
	}
	h := Header{
		TotalLen:  binary.BigEndian.Uint32(buf[0:4]),
		HeaderLen: binary.BigEndian.Uint16(buf[4:6]),
		Version:   Version(binary.BigEndian.Uint16(buf[6:8])),
		Type:      MessageType(binary.BigEndian.Uint32(buf[8:12])),
	}
	if h.HeaderLen != HeaderLen {
		return Header{}, nil, fmt.Errorf("%w: header_length %d", ErrMalformedFrame, h.HeaderLen)
	}
	if !h.Version.valid() {
		return Header{}, nil, fmt.Errorf("%w: unknown version %d", ErrMalformedFrame, uint16(h.Version))
	}
	if !h.Type.valid() {
		return Header{}, nil, fmt.Errorf("%w: unknown message type %d", ErrMalformedFrame, uint32(h.Type))
	}
	if h.TotalLen < HeaderLen {
		return Header{}, nil, fmt.Errorf("%w: total_length %d", ErrMalformedFrame, h.TotalLen)
	}
	return h, buf[HeaderLen:], nil
}

// peekTotalLen 只读取 total_length 字段，子帧头部损坏时用于跳过。
func peekTotalLen(buf []byte) (uint32, bool) {
	if len(buf) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[0:4]), true
}
