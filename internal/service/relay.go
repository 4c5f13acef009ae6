package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bili-danmu/internal/discovery"
	"bili-danmu/internal/model"
	"bili-danmu/internal/observability"
	"bili-danmu/internal/protocol"
	"bili-danmu/internal/session"
)

// ServerLocator 查询房间可用的弹幕服务器与 token。
type ServerLocator interface {
	GetServers(ctx context.Context, roomID uint64) ([]discovery.Server, string, error)
}

// EventSink 接收解码后的房间事件：EventService 直接归档，EventProducer 先入队。
type EventSink interface {
	Accept(ctx context.Context, evt RoomEvent) error
}

// EventSinkFunc 适配普通函数。
type EventSinkFunc func(ctx context.Context, evt RoomEvent) error

func (f EventSinkFunc) Accept(ctx context.Context, evt RoomEvent) error {
	return f(ctx, evt)
}

// Streamer 是 Relay 依赖的会话能力，*session.Session 实现该接口。
type Streamer interface {
	Next(ctx context.Context) (*protocol.Packets, error)
	Close() error
}

// OpenFunc 建立上游会话。
type OpenFunc func(ctx context.Context, host string, roomID uint64, token string) (Streamer, error)

// Relay 将一个直播间的上游弹幕流接入事件处理链路，会话结束即返回，不做重连。
type Relay struct {
	locator ServerLocator
	sink    EventSink
	open    OpenFunc
	tracer  trace.Tracer
	now     func() time.Time
}

func NewRelay(locator ServerLocator, sink EventSink, opts ...session.Option) *Relay {
	return &Relay{
		locator: locator,
		sink:    sink,
		open: func(ctx context.Context, host string, roomID uint64, token string) (Streamer, error) {
			return session.Open(ctx, host, roomID, token, opts...)
		},
		tracer: otel.Tracer("bili-danmu/relay"),
		now:    time.Now,
	}
}

// WithOpen 替换会话建立方式，便于测试。
func (r *Relay) WithOpen(open OpenFunc) *Relay {
	r.open = open
	return r
}

// Run 发现服务器、建立会话并持续转发事件；正常结束或 ctx 取消返回 nil。
func (r *Relay) Run(ctx context.Context, roomID uint64) error {
	servers, token, err := r.locator.GetServers(ctx, roomID)
	if err != nil {
		return fmt.Errorf("discover room %d: %w", roomID, err)
	}
	if len(servers) == 0 {
		return discovery.ErrNoServer
	}

	sess, err := r.open(ctx, servers[0].Addr(), roomID, token)
	if err != nil {
		return err
	}
	observability.SessionStarted()
	defer func() {
		_ = sess.Close()
		observability.SessionEnded()
	}()

	for {
		packets, err := sess.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Info().Uint64("room_id", roomID).Err(err).Msg("上游会话结束")
				return nil
			}
			return err
		}
		r.dispatch(ctx, roomID, packets)
	}
}

// dispatch 消费一条传输层消息的全部事件，解码诊断只记录不中断。
func (r *Relay) dispatch(ctx context.Context, roomID uint64, packets *protocol.Packets) {
	h := packets.Header()
	ctx, span := r.tracer.Start(ctx, "Relay.dispatch",
		trace.WithAttributes(
			attribute.Int64("room_id", int64(roomID)),
			attribute.String("type", h.Type.String()),
			attribute.String("version", h.Version.String()),
		))
	defer span.End()

	observability.RecordFrame(roomID, h.Type.String())
	if pop, ok := packets.Popularity(); ok {
		observability.SetPopularity(roomID, pop)
	}

	events := 0
	for ev, err := range packets.All() {
		if err != nil {
			observability.RecordDiagnostic(roomID, diagnosticReason(err))
			log.Debug().Err(err).Uint64("room_id", roomID).Msg("跳过无法解码的消息")
			continue
		}
		if ev == nil {
			continue
		}
		events++
		r.deliver(ctx, roomID, ev)
	}
	span.SetAttributes(attribute.Int("events", events))
}

func (r *Relay) deliver(ctx context.Context, roomID uint64, ev model.Event) {
	observability.RecordEvent(roomID, string(ev.Kind()))
	evt, err := NewRoomEvent(roomID, ev, r.now())
	if err != nil {
		observability.RecordDiagnostic(roomID, "envelope")
		log.Warn().Err(err).Uint64("room_id", roomID).Msg("构造事件失败")
		return
	}
	if err := r.sink.Accept(ctx, evt); err != nil {
		observability.RecordDiagnostic(roomID, "sink")
		log.Warn().Err(err).Uint64("room_id", roomID).Str("event_id", evt.EventID).Msg("事件处理失败")
	}
}

func diagnosticReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrDecompressionFailed):
		return "decompression_failed"
	case errors.Is(err, protocol.ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, protocol.ErrMessageDecode):
		return "message_decode"
	default:
		return "unknown"
	}
}
