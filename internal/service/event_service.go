package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bili-danmu/internal/model"
	"bili-danmu/internal/repository"
)

// EventService 封装事件归档逻辑：分配 seq、写库、写最近缓存、推送订阅者。
type EventService struct {
	saver   EventSaver
	seqGen  SeqGenerator // 可选的 seq 生成器（例如 Redis），为 nil 时走仓储默认逻辑
	recent  RecentWriter
	retryer RecentRetryer
	pusher  Pusher
	tracer  trace.Tracer
}

// EventSaver 描述事件持久化需要实现的接口，便于测试替换。
type EventSaver interface {
	SaveEvent(ctx context.Context, rec *model.EventRecord) error
	FindByEventID(ctx context.Context, eventID string) (*model.EventRecord, error)
}

// Pusher 将事件推送给房间内的订阅者。
type Pusher interface {
	Broadcast(ctx context.Context, roomID uint64, packet model.OutputPacket) error
}

func NewEventService(saver EventSaver) *EventService {
	return &EventService{saver: saver, tracer: otel.Tracer("bili-danmu/service")}
}

// NewEventServiceWithSeq 允许注入自定义的 seq 生成器（如 Redis）。
func NewEventServiceWithSeq(saver EventSaver, seqGen SeqGenerator) *EventService {
	s := NewEventService(saver)
	s.seqGen = seqGen
	return s
}

// WithRecent 注入最近事件缓存。
func (s *EventService) WithRecent(w RecentWriter) *EventService {
	s.recent = w
	return s
}

// WithRetryer 注入最近缓存写失败时的补偿重试器。
func (s *EventService) WithRetryer(r RecentRetryer) *EventService {
	s.retryer = r
	return s
}

// WithPusher 注入在线推送。
func (s *EventService) WithPusher(p Pusher) *EventService {
	s.pusher = p
	return s
}

// Handle 归档一条事件并返回写入后的记录；同一 event_id 重复写入返回已有记录。
func (s *EventService) Handle(ctx context.Context, evt RoomEvent) (model.EventRecord, error) {
	ctx, span := s.tracer.Start(ctx, "EventService.Handle",
		trace.WithAttributes(
			attribute.Int64("room_id", int64(evt.RoomID)),
			attribute.String("kind", string(evt.Kind)),
			attribute.String("event_id", evt.EventID),
		))
	defer span.End()

	rec, err := s.handle(ctx, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return rec, err
	}
	span.SetAttributes(attribute.Int64("seq", int64(rec.Seq)))
	return rec, nil
}

func (s *EventService) handle(ctx context.Context, evt RoomEvent) (model.EventRecord, error) {
	if evt.RoomID == 0 {
		return model.EventRecord{}, errors.New("room_id required")
	}
	rec := evt.Record()
	if rec.EventID == "" {
		return model.EventRecord{}, errors.New("event_id required")
	}

	// seq 生成失败直接返回，避免与仓储 MAX(seq)+1 混用导致冲突
	if s.seqGen != nil {
		seq, err := s.seqGen.NextSeq(ctx, rec.RoomID)
		if err != nil {
			return rec, fmt.Errorf("next seq: %w", err)
		}
		rec.Seq = seq
	}

	if err := s.saver.SaveEvent(ctx, &rec); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEventID) {
			return rec, err
		}
		log.Debug().Str("event_id", rec.EventID).Msg("重复事件，返回幂等结果")
		existing, findErr := s.saver.FindByEventID(ctx, rec.EventID)
		if findErr != nil {
			return rec, findErr
		}
		return *existing, nil
	}

	s.appendRecent(ctx, rec)
	s.push(ctx, rec)
	return rec, nil
}

// Accept 实现 EventSink / EventHandler。
func (s *EventService) Accept(ctx context.Context, evt RoomEvent) error {
	_, err := s.Handle(ctx, evt)
	return err
}

func (s *EventService) appendRecent(ctx context.Context, rec model.EventRecord) {
	if s.recent == nil {
		return
	}
	if err := s.recent.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Uint64("room_id", rec.RoomID).Uint64("seq", rec.Seq).Msg("写最近事件缓存失败")
		if s.retryer != nil {
			s.retryer.Enqueue(rec)
		}
	}
}

func (s *EventService) push(ctx context.Context, rec model.EventRecord) {
	if s.pusher == nil {
		return
	}
	packet := model.OutputPacket{
		Cmd:     model.CmdEvent,
		RoomID:  rec.RoomID,
		Seq:     int64(rec.Seq),
		Payload: rec,
	}
	if err := s.pusher.Broadcast(ctx, rec.RoomID, packet); err != nil {
		log.Debug().Err(err).Uint64("room_id", rec.RoomID).Msg("推送订阅者失败")
	}
}
