package service

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"bili-danmu/internal/discovery"
	"bili-danmu/internal/model"
	"bili-danmu/internal/protocol"
)

type stubLocator struct {
	servers []discovery.Server
	token   string
	err     error
}

func (l stubLocator) GetServers(ctx context.Context, roomID uint64) ([]discovery.Server, string, error) {
	return l.servers, l.token, l.err
}

type scriptedStream struct {
	mu     sync.Mutex
	frames [][]byte
	end    error
	closed bool
}

func (s *scriptedStream) Next(ctx context.Context) (*protocol.Packets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, s.end
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return protocol.Parse(f), nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func notification(body string) []byte {
	return protocol.EncodeFrame(protocol.TypeNotification, protocol.VersionPlain, []byte(body))
}

func compressedContainer(t *testing.T, subs ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	for _, s := range subs {
		_, _ = w.Write(s)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib: %v", err)
	}
	return protocol.EncodeFrame(protocol.TypeNotification, protocol.VersionCompressed, buf.Bytes())
}

func popularityFrame(v uint32) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, v)
	return protocol.EncodeFrame(protocol.TypeHeartbeatResponse, protocol.VersionHeartbeat, body)
}

type collectingSink struct {
	mu     sync.Mutex
	events []RoomEvent
}

func (c *collectingSink) Accept(ctx context.Context, evt RoomEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func TestRelayForwardsEventsUntilEOF(t *testing.T) {
	danmu := `{"cmd":"DANMU_MSG","info":[[0],"hello",[7,"alice"],[]]}`
	stream := &scriptedStream{
		frames: [][]byte{
			popularityFrame(1234),
			notification(`{"cmd":"NOTICE_MSG"}`),
			compressedContainer(t,
				notification(danmu),
				notification(`{"cmd":"DANMU_MSG","info":"broken"}`),
				notification(`{"cmd":"WATCHED_CHANGE","data":{}}`),
			),
			{0x00, 0x01},
		},
		end: io.EOF,
	}
	sink := &collectingSink{}

	var gotHost, gotToken string
	relay := NewRelay(stubLocator{servers: []discovery.Server{{Host: "a.example", WSSPort: 443}}, token: "tok"}, sink).
		WithOpen(func(ctx context.Context, host string, roomID uint64, token string) (Streamer, error) {
			gotHost, gotToken = host, token
			return stream, nil
		})

	if err := relay.Run(context.Background(), 77); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if gotHost != "a.example:443" || gotToken != "tok" {
		t.Fatalf("unexpected open args host=%q token=%q", gotHost, gotToken)
	}
	if !stream.closed {
		t.Fatalf("stream should be closed when Run returns")
	}

	kinds := make([]model.EventKind, 0, len(sink.events))
	for _, e := range sink.events {
		if e.RoomID != 77 {
			t.Fatalf("event room_id = %d", e.RoomID)
		}
		kinds = append(kinds, e.Kind)
	}
	want := []model.EventKind{model.KindNotice, model.KindDanmu, model.KindOther}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
	if sink.events[1].Content != "hello" || sink.events[1].UserName != "alice" {
		t.Fatalf("unexpected danmu event: %+v", sink.events[1])
	}
}

func TestRelayTransportErrorIsReturned(t *testing.T) {
	stream := &scriptedStream{end: errors.New("connection reset")}
	relay := NewRelay(stubLocator{servers: []discovery.Server{{Host: "h"}}}, &collectingSink{}).
		WithOpen(func(ctx context.Context, host string, roomID uint64, token string) (Streamer, error) {
			return stream, nil
		})
	if err := relay.Run(context.Background(), 1); err == nil || err.Error() != "connection reset" {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRelayDiscoveryFailure(t *testing.T) {
	opened := false
	open := func(ctx context.Context, host string, roomID uint64, token string) (Streamer, error) {
		opened = true
		return nil, nil
	}

	relay := NewRelay(stubLocator{err: errors.New("http 412")}, &collectingSink{}).WithOpen(open)
	if err := relay.Run(context.Background(), 1); err == nil {
		t.Fatalf("expected discovery error")
	}

	relay = NewRelay(stubLocator{}, &collectingSink{}).WithOpen(open)
	if err := relay.Run(context.Background(), 1); !errors.Is(err, discovery.ErrNoServer) {
		t.Fatalf("expected ErrNoServer, got %v", err)
	}
	if opened {
		t.Fatalf("session must not be opened without a server")
	}
}

func TestDiagnosticReason(t *testing.T) {
	cases := map[error]string{
		protocol.ErrMalformedFrame:      "malformed_frame",
		protocol.ErrDecompressionFailed: "decompression_failed",
		protocol.ErrMessageDecode:       "message_decode",
		errors.New("x"):                 "unknown",
	}
	for err, want := range cases {
		if got := diagnosticReason(err); got != want {
			t.Fatalf("diagnosticReason(%v) = %q, want %q", err, got, want)
		}
	}
}
