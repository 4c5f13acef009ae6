package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"bili-danmu/internal/model"
)

const danmuJSON = `{"cmd":"DANMU_MSG","info":[[0,1,25,16777215],"hello",[42,"alice",0,0],[12,"medal","streamer",1022,398668]]}`

func plainNotification(body string) []byte {
	return EncodeFrame(TypeNotification, VersionPlain, []byte(body))
}

func container(t *testing.T, subFrames ...[]byte) []byte {
	t.Helper()
	var inner []byte
	for _, f := range subFrames {
		inner = append(inner, f...)
	}
	return EncodeFrame(TypeNotification, VersionCompressed, zlibBytes(t, inner))
}

type step struct {
	ev  model.Event
	err error
}

func drain(p *Packets) []step {
	var out []step
	for ev, err := range p.All() {
		out = append(out, step{ev: ev, err: err})
	}
	return out
}

func TestParseNoticeScenario(t *testing.T) {
	body := `{"cmd":"NOTICE_MSG"}`
	msg := plainNotification(body)
	want := []byte{0x00, 0x00, 0x00, 0x24, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x01}
	if string(msg[:HeaderLen]) != string(want) {
		t.Fatalf("header bytes = % x", msg[:HeaderLen])
	}

	steps := drain(Parse(msg))
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].err != nil {
		t.Fatalf("unexpected error: %v", steps[0].err)
	}
	if _, ok := steps[0].ev.(model.Notice); !ok {
		t.Fatalf("expected Notice, got %#v", steps[0].ev)
	}
}

func TestParseContainerDanmuThenOther(t *testing.T) {
	msg := container(t,
		plainNotification(danmuJSON),
		plainNotification(`{"cmd":"WATCHED_CHANGE","data":{"num":7}}`),
	)
	steps := drain(Parse(msg))
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	dm, ok := steps[0].ev.(model.Danmu)
	if !ok {
		t.Fatalf("first event: expected Danmu, got %#v (err=%v)", steps[0].ev, steps[0].err)
	}
	if dm.Text != "hello" || dm.User.Name != "alice" || dm.User.ID != 42 {
		t.Fatalf("unexpected danmu: %+v", dm)
	}
	other, ok := steps[1].ev.(model.Other)
	if !ok {
		t.Fatalf("second event: expected Other, got %#v", steps[1].ev)
	}
	if other.Cmd != "WATCHED_CHANGE" {
		t.Fatalf("other cmd = %q", other.Cmd)
	}
	var v map[string]any
	if err := json.Unmarshal(other.Raw, &v); err != nil {
		t.Fatalf("other raw not valid JSON: %v", err)
	}
	if v["data"].(map[string]any)["num"] != float64(7) {
		t.Fatalf("other raw lost content: %s", other.Raw)
	}
}

func TestParseContainerSkipsMalformedJSON(t *testing.T) {
	msg := container(t,
		plainNotification(`{"cmd":"DANMU_MSG",`),
		plainNotification(danmuJSON),
		plainNotification(`{"cmd":"ROOM_BANNER"}`),
	)
	steps := drain(Parse(msg))
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if !errors.Is(steps[0].err, ErrMessageDecode) || steps[0].ev != nil {
		t.Fatalf("first step should be a decode diagnostic, got ev=%#v err=%v", steps[0].ev, steps[0].err)
	}
	if _, ok := steps[1].ev.(model.Danmu); !ok {
		t.Fatalf("second step: expected Danmu, got %#v", steps[1].ev)
	}
	if _, ok := steps[2].ev.(model.Banner); !ok {
		t.Fatalf("third step: expected Banner, got %#v", steps[2].ev)
	}
}

func TestParseContainerSkipsCorruptSubHeader(t *testing.T) {
	bad := plainNotification(`{"cmd":"NOTICE_MSG"}`)
	binary.BigEndian.PutUint16(bad[4:6], 12)
	msg := container(t, bad, plainNotification(`{"cmd":"NOTICE_MSG"}`))

	steps := drain(Parse(msg))
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if !errors.Is(steps[0].err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", steps[0].err)
	}
	if _, ok := steps[1].ev.(model.Notice); !ok {
		t.Fatalf("expected Notice after skipped sub-frame, got %#v", steps[1].ev)
	}
}

func TestParseContainerStopsOnTrailingBytes(t *testing.T) {
	msg := container(t, plainNotification(`{"cmd":"NOTICE_MSG"}`), []byte{0x00, 0x00})
	steps := drain(Parse(msg))
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if _, ok := steps[0].ev.(model.Notice); !ok {
		t.Fatalf("expected Notice, got %#v", steps[0].ev)
	}
	if !errors.Is(steps[1].err, ErrMalformedFrame) {
		t.Fatalf("expected terminal ErrMalformedFrame, got %v", steps[1].err)
	}
}

func TestParseContainerStopsOnOverrunLength(t *testing.T) {
	overrun := plainNotification(`{"cmd":"NOTICE_MSG"}`)
	binary.BigEndian.PutUint32(overrun[0:4], 4096)
	msg := container(t, overrun, plainNotification(`{"cmd":"NOTICE_MSG"}`))
	steps := drain(Parse(msg))
	if len(steps) != 1 || !errors.Is(steps[0].err, ErrMalformedFrame) {
		t.Fatalf("expected a single terminal diagnostic, got %+v", steps)
	}
}

func TestParseContainerStopsOnZeroLength(t *testing.T) {
	zero := plainNotification(`{"cmd":"NOTICE_MSG"}`)
	binary.BigEndian.PutUint32(zero[0:4], 0)
	steps := drain(Parse(container(t, zero)))
	if len(steps) != 1 || !errors.Is(steps[0].err, ErrMalformedFrame) {
		t.Fatalf("expected a single terminal diagnostic, got %+v", steps)
	}
}

func TestParseContainerIgnoresControlSubFrames(t *testing.T) {
	msg := container(t,
		EncodeFrame(TypeHeartbeatResponse, VersionPlain, []byte{0, 0, 0, 1}),
		plainNotification(`{"cmd":"NOTICE_MSG"}`),
	)
	steps := drain(Parse(msg))
	if len(steps) != 2 || steps[0].ev != nil || steps[0].err != nil {
		t.Fatalf("control sub-frame should be an empty step, got %+v", steps)
	}
	if _, ok := steps[1].ev.(model.Notice); !ok {
		t.Fatalf("expected Notice, got %#v", steps[1].ev)
	}
}

func TestParseFrameLevelErrors(t *testing.T) {
	steps := drain(Parse([]byte{0, 0, 0}))
	if len(steps) != 1 || !errors.Is(steps[0].err, ErrMalformedFrame) {
		t.Fatalf("short message: expected one ErrMalformedFrame step, got %+v", steps)
	}

	msg := EncodeFrame(TypeNotification, VersionCompressed, []byte("garbage"))
	steps = drain(Parse(msg))
	if len(steps) != 1 || !errors.Is(steps[0].err, ErrDecompressionFailed) {
		t.Fatalf("bad zlib: expected one ErrDecompressionFailed step, got %+v", steps)
	}
}

func TestParseControlFramesYieldNothing(t *testing.T) {
	for _, typ := range []MessageType{TypeHeartbeat, TypeHeartbeatResponse, TypeClientAuth, TypeServerAuth} {
		msg := EncodeFrame(typ, VersionPlain, []byte(`{"code":0}`))
		if steps := drain(Parse(msg)); len(steps) != 0 {
			t.Fatalf("type %v: expected no steps, got %+v", typ, steps)
		}
	}
}

func TestParsePopularity(t *testing.T) {
	p := Parse(EncodeFrame(TypeHeartbeatResponse, VersionPlain, []byte{0, 0, 0x30, 0x39}))
	n, ok := p.Popularity()
	if !ok || n != 12345 {
		t.Fatalf("popularity = %d, %v", n, ok)
	}
	if _, ok := Parse(plainNotification(`{"cmd":"NOTICE_MSG"}`)).Popularity(); ok {
		t.Fatalf("notification frame has no popularity")
	}
}

func TestPacketsNotRestartable(t *testing.T) {
	p := Parse(container(t, plainNotification(`{"cmd":"NOTICE_MSG"}`)))
	if n := len(drain(p)); n != 1 {
		t.Fatalf("expected 1 step, got %d", n)
	}
	if p.Next() || len(drain(p)) != 0 {
		t.Fatalf("exhausted sequence must stay exhausted")
	}

	single := Parse(plainNotification(`{"cmd":"NOTICE_MSG"}`))
	if !single.Next() || single.Next() || single.Next() {
		t.Fatalf("single frame should yield exactly once")
	}
	if single.Event() != nil {
		t.Fatalf("event should be cleared after exhaustion")
	}
}

func TestParseEventsDoNotAliasInput(t *testing.T) {
	msg := plainNotification(`{"cmd":"SOMETHING_NEW","x":1}`)
	p := Parse(msg)
	p.Next()
	other := p.Event().(model.Other)
	for i := range msg {
		msg[i] = 0
	}
	if string(other.Raw) != `{"cmd":"SOMETHING_NEW","x":1}` {
		t.Fatalf("raw JSON changed with the input buffer: %q", other.Raw)
	}
}
