// Package discovery 查询直播间弹幕服务器列表与认证 token。
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultURL 是 getDanmuInfo 接口地址。
const DefaultURL = "https://api.live.bilibili.com/xlive/web-room/v1/index/getDanmuInfo"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.198 Safari/537.36"

// ErrNoServer 接口返回的服务器列表为空。
var ErrNoServer = errors.New("discovery: no server available")

// Server 是一个可连接的弹幕服务器。
type Server struct {
	Host    string `json:"host"`
	Port    uint16 `json:"port"`
	WSPort  uint16 `json:"ws_port"`
	WSSPort uint16 `json:"wss_port"`
}

// Addr 返回 wss 连接使用的 host:port；端口缺省时只返回 host。
func (s Server) Addr() string {
	if s.WSSPort == 0 {
		return s.Host
	}
	return s.Host + ":" + strconv.Itoa(int(s.WSSPort))
}

type response struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    struct {
		HostList []Server `json:"host_list"`
		Token    string   `json:"token"`
	} `json:"data"`
}

// Client 调用发现接口，不做重试。
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient 创建客户端；baseURL 为空时使用 DefaultURL。
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

// GetServers 返回房间可用的服务器列表以及认证 token。
func (c *Client) GetServers(ctx context.Context, roomID uint64) ([]Server, string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("discovery: bad url: %w", err)
	}
	q := u.Query()
	q.Set("type", "0")
	q.Set("id", strconv.FormatUint(roomID, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("discovery: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("discovery: unexpected status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("discovery: decode response: %w", err)
	}
	if body.Code != 0 {
		return nil, "", fmt.Errorf("discovery: api code %d: %s", body.Code, body.Message)
	}
	if len(body.Data.HostList) == 0 {
		return nil, "", ErrNoServer
	}
	return body.Data.HostList, body.Data.Token, nil
}
