package model

// EventRecord 是归档到 MySQL 的房间事件，(room_id, seq) 唯一。
type EventRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	EventID     string    `gorm:"column:event_id;type:varchar(64);uniqueIndex:uk_event_id" json:"event_id"`
	RoomID      uint64    `gorm:"column:room_id;uniqueIndex:uk_room_seq,priority:1" json:"room_id"`
	Seq         uint64    `gorm:"column:seq;uniqueIndex:uk_room_seq,priority:2" json:"seq"`
	Kind        EventKind `gorm:"column:kind;type:varchar(16)" json:"kind"`
	Cmd         string    `gorm:"column:cmd;type:varchar(64)" json:"cmd"`
	UserID      uint64    `gorm:"column:user_id" json:"user_id,omitempty"`
	UserName    string    `gorm:"column:user_name;type:varchar(64)" json:"user_name,omitempty"`
	Content     string    `gorm:"column:content;type:text" json:"content,omitempty"`
	Payload     string    `gorm:"column:payload;type:mediumtext" json:"payload"`
	ReceiveTime int64     `gorm:"column:receive_time" json:"receive_time"` // 毫秒
}

func (EventRecord) TableName() string {
	return "room_event"
}

// SubscriberCursor 记录订阅者在房间内已确认的 seq。
type SubscriberCursor struct {
	SubscriberID string `gorm:"column:subscriber_id;type:varchar(64);primaryKey"`
	RoomID       uint64 `gorm:"column:room_id;primaryKey"`
	LastAckSeq   int64  `gorm:"column:last_ack_seq"`
}

func (SubscriberCursor) TableName() string {
	return "subscriber_cursor"
}
