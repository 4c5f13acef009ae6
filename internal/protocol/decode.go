package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"bili-danmu/internal/model"
)

// 已识别的 cmd。
const (
	CmdDanmu    = "DANMU_MSG"
	CmdGift     = "SEND_GIFT"
	CmdInteract = "INTERACT_WORD"
	CmdBanner   = "ROOM_BANNER"
	CmdNotice   = "NOTICE_MSG"
)

// DecodeMessage 把 Notification 帧的 JSON body 映射为事件。
// 缺少 cmd 时返回 (nil, nil)；解析失败只返回 ErrMessageDecode，由调用方当作诊断处理。
func DecodeMessage(body []byte) (model.Event, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageDecode, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMessageDecode)
	}

	rawCmd, ok := obj["cmd"]
	if !ok {
		return nil, nil
	}
	var cmd string
	if err := json.Unmarshal(rawCmd, &cmd); err != nil || isNull(rawCmd) {
		return nil, nil
	}

	switch cmd {
	case CmdDanmu:
		return decodeDanmu(obj["info"])
	case CmdGift:
		return decodeGift(obj["data"])
	case CmdInteract:
		if !isKind(obj["data"], '{') {
			return nil, fmt.Errorf("%w: %s data is not an object", ErrMessageDecode, cmd)
		}
		return model.Interact{}, nil
	case CmdBanner:
		return model.Banner{}, nil
	case CmdNotice:
		return model.Notice{}, nil
	default:
		return model.Other{Cmd: cmd, Raw: append(json.RawMessage(nil), bytes.TrimSpace(body)...)}, nil
	}
}

// decodeDanmu 解析 DANMU_MSG 的位置数组：
// info[1] 文本，info[2] = [uid, uname, ...]，info[3] = [] 或 [level, medal, owner, room, ...]。
func decodeDanmu(raw json.RawMessage) (model.Event, error) {
	info, err := decodeArray(raw, "info", 4)
	if err != nil {
		return nil, err
	}
	text, err := decodeString(info[1], "info[1]")
	if err != nil {
		return nil, err
	}
	user, err := decodeArray(info[2], "info[2]", 2)
	if err != nil {
		return nil, err
	}
	uid, err := decodeUint(user[0], "info[2][0]")
	if err != nil {
		return nil, err
	}
	uname, err := decodeString(user[1], "info[2][1]")
	if err != nil {
		return nil, err
	}

	medalRaw, err := decodeArray(info[3], "info[3]", 0)
	if err != nil {
		return nil, err
	}
	dm := model.Danmu{Text: text, User: model.UserInfo{Name: uname, ID: uid}}
	if len(medalRaw) == 0 {
		return dm, nil
	}
	if len(medalRaw) < 4 {
		return nil, fmt.Errorf("%w: info[3] has %d elements, want >= 4", ErrMessageDecode, len(medalRaw))
	}
	var medal model.MedalInfo
	if medal.Level, err = decodeUint(medalRaw[0], "info[3][0]"); err != nil {
		return nil, err
	}
	if medal.Name, err = decodeString(medalRaw[1], "info[3][1]"); err != nil {
		return nil, err
	}
	if medal.OwnerName, err = decodeString(medalRaw[2], "info[3][2]"); err != nil {
		return nil, err
	}
	if medal.OwnerRoom, err = decodeUint(medalRaw[3], "info[3][3]"); err != nil {
		return nil, err
	}
	dm.Medal = &medal
	return dm, nil
}

// giftData 对应 SEND_GIFT 的 data 对象，字段全部必填。
type giftData struct {
	Action   *string `json:"action"`
	GiftName *string `json:"giftName"`
	Uname    *string `json:"uname"`
	Num      *uint64 `json:"num"`
	Price    *uint64 `json:"price"`
}

func decodeGift(raw json.RawMessage) (model.Event, error) {
	if !isKind(raw, '{') {
		return nil, fmt.Errorf("%w: %s data is not an object", ErrMessageDecode, CmdGift)
	}
	var d giftData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMessageDecode, CmdGift, err)
	}
	if d.Action == nil || d.GiftName == nil || d.Uname == nil || d.Num == nil || d.Price == nil {
		return nil, fmt.Errorf("%w: %s missing required field", ErrMessageDecode, CmdGift)
	}
	return model.Gift{
		Action:     *d.Action,
		GiftName:   *d.GiftName,
		SenderName: *d.Uname,
		Count:      *d.Num,
		Price:      *d.Price,
	}, nil
}

func decodeArray(raw json.RawMessage, field string, minLen int) ([]json.RawMessage, error) {
	if !isKind(raw, '[') {
		return nil, fmt.Errorf("%w: %s is not an array", ErrMessageDecode, field)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMessageDecode, field, err)
	}
	if len(arr) < minLen {
		return nil, fmt.Errorf("%w: %s has %d elements, want >= %d", ErrMessageDecode, field, len(arr), minLen)
	}
	return arr, nil
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	if !isKind(raw, '"') {
		return "", fmt.Errorf("%w: %s is not a string", ErrMessageDecode, field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMessageDecode, field, err)
	}
	return s, nil
}

func decodeUint(raw json.RawMessage, field string) (uint64, error) {
	var n uint64
	if isNull(raw) {
		return 0, fmt.Errorf("%w: %s is null", ErrMessageDecode, field)
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s is not an unsigned integer", ErrMessageDecode, field)
	}
	return n, nil
}

// isKind 判断 JSON 值的首个非空白字符；缺失值返回 false。
func isKind(raw json.RawMessage, first byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == first
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
