package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventProducer 负责将解码后的房间事件发布到 RabbitMQ。
type EventProducer struct {
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

func NewEventProducer(ch *amqp.Channel, exchange, routingKey string) *EventProducer {
	return &EventProducer{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

// PublishEvent 将事件发布到 MQ，使用持久化消息。
func (p *EventProducer) PublishEvent(ctx context.Context, evt RoomEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.UnixMilli(evt.ReceiveTime),
			MessageId:    evt.EventID,
			Type:         string(evt.Kind),
		})
}

// Accept 实现 EventSink，走“先入队再处理”的路径。
func (p *EventProducer) Accept(ctx context.Context, evt RoomEvent) error {
	return p.PublishEvent(ctx, evt)
}
