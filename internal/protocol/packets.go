package protocol

import (
	"encoding/binary"
	"fmt"
	"iter"

	"bili-danmu/internal/model"
)

// Packets 是一条传输层消息解码出的惰性序列，只能消费一次。
// 普通帧最多产生一步；压缩的 Notification 容器帧按子帧逐步解码。
//
//	p := protocol.Parse(msg)
//	for p.Next() {
//		if err := p.Err(); err != nil { ... }
//		if ev := p.Event(); ev != nil { ... }
//	}
//
// 每一步要么带一个事件，要么带一条诊断错误，要么两者皆空（控制帧、无 cmd 的消息）。
type Packets struct {
	header Header

	// 单帧模式
	pending bool
	single  model.Event
	initErr error

	// 容器模式
	multi bool
	buf   []byte
	pos   int

	done bool
	ev   model.Event
	err  error
	body []byte
}

// Parse 解码一条完整的传输层二进制消息。帧级错误（ErrMalformedFrame、
// ErrDecompressionFailed）作为序列的唯一一步返回，不会中断会话。
func Parse(msg []byte) *Packets {
	h, rest, err := DecodeHeader(msg)
	if err != nil {
		return &Packets{pending: true, initErr: err}
	}
	body, err := ExpandBody(h, rest)
	if err != nil {
		return &Packets{header: h, pending: true, initErr: err}
	}

	p := &Packets{header: h, body: body}
	if h.Type != TypeNotification {
		return p
	}
	if h.Version == VersionCompressed {
		p.multi = true
		p.buf = body
		return p
	}
	p.pending = true
	p.single, p.initErr = DecodeMessage(body)
	return p
}

// Header 返回外层帧头；帧头本身解析失败时为零值。
func (p *Packets) Header() Header {
	return p.header
}

// Popularity 返回心跳回复帧携带的人气值。
func (p *Packets) Popularity() (uint32, bool) {
	if p.header.Type != TypeHeartbeatResponse || len(p.body) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(p.body[:4]), true
}

// Event 返回当前步的事件，可能为 nil。
func (p *Packets) Event() model.Event {
	return p.ev
}

// Err 返回当前步的诊断错误。
func (p *Packets) Err() error {
	return p.err
}

// Next 前进一步，序列耗尽后恒返回 false。
func (p *Packets) Next() bool {
	p.ev, p.err = nil, nil
	if p.done {
		return false
	}
	if !p.multi {
		if !p.pending {
			p.done = true
			return false
		}
		p.pending = false
		p.ev, p.err = p.single, p.initErr
		p.single, p.initErr = nil, nil
		return true
	}
	if p.pos == len(p.buf) {
		p.done = true
		p.buf = nil
		return false
	}
	p.ev, p.err = p.nextSubFrame()
	return true
}

// nextSubFrame 解码游标处的子帧。子帧头损坏但长度可读时跳过该子帧；
// 长度不可读、小于帧头或越过缓冲区末尾时无法重新同步，序列终止。
func (p *Packets) nextSubFrame() (model.Event, error) {
	offset := p.pos
	rest := p.buf[offset:]
	total, ok := peekTotalLen(rest)
	if !ok {
		p.done = true
		return nil, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrMalformedFrame, len(rest), offset)
	}
	if total < HeaderLen || uint64(total) > uint64(len(rest)) {
		p.done = true
		return nil, fmt.Errorf("%w: sub-frame length %d at offset %d, %d bytes left", ErrMalformedFrame, total, offset, len(rest))
	}
	p.pos += int(total)

	h, after, err := DecodeHeader(rest)
	if err != nil {
		return nil, fmt.Errorf("sub-frame at offset %d: %w", offset, err)
	}
	body, err := ExpandBody(h, after)
	if err != nil {
		return nil, fmt.Errorf("sub-frame at offset %d: %w", offset, err)
	}
	if h.Type != TypeNotification {
		return nil, nil
	}
	ev, err := DecodeMessage(body)
	if err != nil {
		return nil, fmt.Errorf("sub-frame at offset %d: %w", offset, err)
	}
	return ev, nil
}

// All 以 range-over-func 形式遍历剩余各步。
func (p *Packets) All() iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		for p.Next() {
			if !yield(p.ev, p.err) {
				return
			}
		}
	}
}
