package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"bili-danmu/internal/protocol"
)

var (
	// ErrTransport 传输层读写失败，会话随之关闭。
	ErrTransport = errors.New("session: transport error")
	// ErrClosed 会话已关闭。
	ErrClosed = errors.New("session: closed")
)

// State 会话状态：Connecting → Authenticating → Streaming → Closed。
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session 持有一条直播间弹幕连接。
// 认证帧发送后只有保活 goroutine 写连接；Next 只能由单个消费者调用。
type Session struct {
	roomID uint64
	conn   Conn
	cfg    Config

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Open 连接 host、发送认证帧并启动保活；token 为空时认证 body 不带 key。
// 协议不要求等待服务器确认，认证帧写出后即进入 Streaming。
func Open(ctx context.Context, host string, roomID uint64, token string, opts ...Option) (*Session, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer(nil, cfg.ReadLimit)
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}

	s := &Session{roomID: roomID, cfg: cfg, stop: make(chan struct{})}
	s.state.Store(int32(StateConnecting))

	url := fmt.Sprintf("%s://%s%s", cfg.Scheme, host, cfg.Path)
	conn, err := cfg.Dialer(ctx, url)
	if err != nil {
		s.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, url, err)
	}
	s.conn = conn

	s.state.Store(int32(StateAuthenticating))
	frame, err := protocol.AuthFrame(protocol.NewClientAuth(roomID, token, cfg.ClientVer))
	if err != nil {
		s.abort()
		return nil, err
	}
	if err := s.write(frame); err != nil {
		s.abort()
		return nil, fmt.Errorf("%w: send auth: %v", ErrTransport, err)
	}

	s.state.Store(int32(StateStreaming))
	s.wg.Add(1)
	go s.keepAlive()

	log.Info().Uint64("room_id", roomID).Str("url", url).Msg("弹幕会话已建立")
	return s, nil
}

// RoomID 返回会话所属房间。
func (s *Session) RoomID() uint64 {
	return s.roomID
}

// State 返回当前状态。
func (s *Session) State() State {
	return State(s.state.Load())
}

// Next 阻塞读取下一条二进制消息并返回其解码序列；文本、ping/pong 等非二进制消息被忽略。
// 传输结束返回 io.EOF，传输失败返回 ErrTransport，ctx 取消返回 ctx.Err()；三者都会关闭会话。
func (s *Session) Next(ctx context.Context) (*protocol.Packets, error) {
	if s.State() == StateClosed {
		return nil, ErrClosed
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			closedByUs := s.State() == StateClosed
			_ = s.Close()
			switch {
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case closedByUs:
				return nil, ErrClosed
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway), errors.Is(err, io.EOF):
				return nil, io.EOF
			default:
				return nil, fmt.Errorf("%w: %v", ErrTransport, err)
			}
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return protocol.Parse(data), nil
	}
}

// Close 关闭连接并等待保活 goroutine 退出；返回后不会再写出心跳。可重复调用。
func (s *Session) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.stop)
		err = s.conn.Close()
		s.wg.Wait()
		log.Info().Uint64("room_id", s.roomID).Msg("弹幕会话已关闭")
	})
	return err
}

func (s *Session) abort() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.stop)
		_ = s.conn.Close()
	})
}

// keepAlive 立即发送一次心跳，之后每个周期发送一次，直到 stop 关闭或写失败。
func (s *Session) keepAlive() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	frame := protocol.HeartbeatFrame()

	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.write(frame); err != nil {
			select {
			case <-s.stop:
			default:
				log.Warn().Err(err).Uint64("room_id", s.roomID).Msg("心跳发送失败，保活退出")
			}
			return
		}
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// write 统一设置写超时，防止写阻塞。
func (s *Session) write(data []byte) error {
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}
