package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler 处理一条房间事件，EventService 实现该接口。
type EventHandler interface {
	Accept(ctx context.Context, evt RoomEvent) error
}

// EventConsumer 消费 MQ 中的事件并落库/写最近缓存/推送。
type EventConsumer struct {
	ch      *amqp.Channel
	queue   string
	handler EventHandler
}

func NewEventConsumer(ch *amqp.Channel, queue string, handler EventHandler) *EventConsumer {
	return &EventConsumer{
		ch:      ch,
		queue:   queue,
		handler: handler,
	}
}

// Start 启动消费循环（非阻塞），ctx 取消后退出。
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := c.ch.Qos(64, 0, false); err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(
		c.queue,
		"",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					return
				}
				c.handleDelivery(ctx, msg)
			}
		}
	}()
	return nil
}

// Acknowledger 是 amqp.Delivery 确认能力的子集，便于测试替换。
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *EventConsumer) handleDelivery(parentCtx context.Context, msg amqp.Delivery) {
	c.handleBody(parentCtx, msg.Body, msg)
}

func (c *EventConsumer) handleBody(parentCtx context.Context, body []byte, ack Acknowledger) {
	var evt RoomEvent
	if err := json.Unmarshal(body, &evt); err != nil || evt.EventID == "" || evt.RoomID == 0 {
		log.Warn().Err(err).Msg("解析 MQ 事件失败，丢弃")
		_ = ack.Nack(false, false) // 丢弃坏消息
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, 5*time.Second)
	defer cancel()

	if err := c.handler.Accept(ctx, evt); err != nil {
		log.Warn().Err(err).Str("event_id", evt.EventID).Msg("消费事件失败，重新入队")
		_ = ack.Nack(false, true) // 失败可重试
		return
	}

	_ = ack.Ack(false)
}
