package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.198 Safari/537.36"

// Conn 是会话依赖的双工消息传输，*websocket.Conn 直接满足该接口。
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer 建立到 url 的传输连接。
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebSocketDialer 基于 gorilla/websocket 建立连接；d 为 nil 时使用 DefaultDialer。
func WebSocketDialer(d *websocket.Dialer, readLimit int64) Dialer {
	if d == nil {
		d = websocket.DefaultDialer
	}
	return func(ctx context.Context, url string) (Conn, error) {
		header := http.Header{}
		header.Set("User-Agent", userAgent)
		conn, _, err := d.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		if readLimit > 0 {
			conn.SetReadLimit(readLimit)
		}
		return conn, nil
	}
}
