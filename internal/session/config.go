package session

import (
	"time"

	"bili-danmu/internal/protocol"
)

// Config 描述会话的连接与保活参数。
type Config struct {
	Scheme            string
	Path              string
	ClientVer         string
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
	Dialer            Dialer
}

// DefaultConfig 返回线上协议使用的默认值。
func DefaultConfig() Config {
	return Config{
		Scheme:            "wss",
		Path:              "/sub",
		ClientVer:         protocol.DefaultClientVer,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadLimit:         16 << 20,
	}
}

// Option 修改 Config。
type Option func(*Config)

func WithScheme(scheme string) Option {
	return func(c *Config) { c.Scheme = scheme }
}

func WithClientVer(ver string) Option {
	return func(c *Config) { c.ClientVer = ver }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Config) { c.HeartbeatInterval = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

// WithDialer 替换底层传输，测试时注入内存连接。
func WithDialer(d Dialer) Option {
	return func(c *Config) { c.Dialer = d }
}
