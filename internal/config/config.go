package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"bili-danmu/internal/discovery"
	"bili-danmu/internal/protocol"
)

// Config 是 danmu.toml 的内容；基础设施连接信息仍走 DANMU_* 环境变量。
type Config struct {
	HTTPAddr         string   `toml:"http_addr"`
	Rooms            []uint64 `toml:"rooms"`
	DiscoveryURL     string   `toml:"discovery_url"`
	ClientVer        string   `toml:"client_ver"`
	HeartbeatSeconds int      `toml:"heartbeat_seconds"`
	UseMQ            bool     `toml:"use_mq"`
	SeqBackend       string   `toml:"seq_backend"` // redis | mysql
	RecentLimit      int      `toml:"recent_limit"`
	RecentTTLSeconds int      `toml:"recent_ttl_seconds"`
}

const (
	EnvHTTPAddr = "DANMU_HTTP_ADDR"
	EnvRooms    = "DANMU_ROOMS"
)

func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		DiscoveryURL:     discovery.DefaultURL,
		ClientVer:        protocol.DefaultClientVer,
		HeartbeatSeconds: 30,
		SeqBackend:       "redis",
		RecentLimit:      200,
		RecentTTLSeconds: 24 * 3600,
	}
}

// Load 读取 TOML 配置并叠加默认值与环境变量；path 为空时只使用默认值。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvHTTPAddr)); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRooms)); v != "" {
		rooms, err := ParseRooms(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRooms, err)
		}
		cfg.Rooms = rooms
	}
	return nil
}

// ParseRooms 解析逗号分隔的房间号列表。
func ParseRooms(raw string) ([]uint64, error) {
	var rooms []uint64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid room id %q", part)
		}
		rooms = append(rooms, id)
	}
	return rooms, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return fmt.Errorf("config missing http_addr")
	}
	if strings.TrimSpace(cfg.DiscoveryURL) == "" {
		return fmt.Errorf("config missing discovery_url")
	}
	if cfg.HeartbeatSeconds <= 0 {
		return fmt.Errorf("heartbeat_seconds must be positive, got %d", cfg.HeartbeatSeconds)
	}
	switch cfg.SeqBackend {
	case "redis", "mysql":
	default:
		return fmt.Errorf("unsupported seq_backend %q (expected redis or mysql)", cfg.SeqBackend)
	}
	seen := make(map[uint64]bool, len(cfg.Rooms))
	for i, room := range cfg.Rooms {
		if room == 0 {
			return fmt.Errorf("rooms[%d] must be non-zero", i)
		}
		if seen[room] {
			return fmt.Errorf("rooms[%d] duplicated: %d", i, room)
		}
		seen[room] = true
	}
	return nil
}

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c Config) RecentTTL() time.Duration {
	return time.Duration(c.RecentTTLSeconds) * time.Second
}
