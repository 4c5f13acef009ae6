package model

import (
	"encoding/json"
	"fmt"
)

// EventKind 标识事件变体。
type EventKind string

const (
	KindDanmu    EventKind = "danmu"
	KindInteract EventKind = "interact"
	KindBanner   EventKind = "banner"
	KindNotice   EventKind = "notice"
	KindGift     EventKind = "gift"
	KindOther    EventKind = "other"
)

// Event 是解码后的直播间事件，具体类型见下方各变体。
type Event interface {
	Kind() EventKind
}

// UserInfo 发送者信息。
type UserInfo struct {
	Name string `json:"name"`
	ID   uint64 `json:"id"`
}

func (u UserInfo) String() string {
	return fmt.Sprintf("%s(%d)", u.Name, u.ID)
}

// MedalInfo 粉丝勋章。
type MedalInfo struct {
	Name      string `json:"name"`
	Level     uint64 `json:"level"`
	OwnerName string `json:"owner_name"`
	OwnerRoom uint64 `json:"owner_room"`
}

func (m MedalInfo) String() string {
	return fmt.Sprintf("%s(%s:%d)|%d", m.Name, m.OwnerName, m.OwnerRoom, m.Level)
}

// Danmu 弹幕；Medal 为 nil 表示未佩戴勋章。
type Danmu struct {
	Text  string     `json:"text"`
	User  UserInfo   `json:"user"`
	Medal *MedalInfo `json:"medal,omitempty"`
}

// Interact 进入直播间等互动，仅作为存在标记。
type Interact struct{}

type Banner struct{}

type Notice struct{}

// Gift 礼物。
type Gift struct {
	Action     string `json:"action"`
	GiftName   string `json:"gift_name"`
	SenderName string `json:"sender_name"`
	Count      uint64 `json:"count"`
	Price      uint64 `json:"price"`
}

// Other 保留未识别 cmd 的完整 JSON，Raw 为独立拷贝。
type Other struct {
	Cmd string          `json:"cmd"`
	Raw json.RawMessage `json:"raw"`
}

func (Danmu) Kind() EventKind    { return KindDanmu }
func (Interact) Kind() EventKind { return KindInteract }
func (Banner) Kind() EventKind   { return KindBanner }
func (Notice) Kind() EventKind   { return KindNotice }
func (Gift) Kind() EventKind     { return KindGift }
func (Other) Kind() EventKind    { return KindOther }
