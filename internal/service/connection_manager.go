package service

import (
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const subscriberWriteTimeout = 10 * time.Second

// Subscriber 是一个下游订阅连接，写操作串行化。
type Subscriber struct {
	ID     string
	RoomID uint64

	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteJSON 加锁并设置写超时，gorilla 连接不支持并发写。
func (s *Subscriber) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(subscriberWriteTimeout))
	return s.conn.WriteJSON(v)
}

// Close 关闭底层连接。
func (s *Subscriber) Close() error {
	return s.conn.Close()
}

// ConnectionManager 维护房间到订阅连接的映射。
type ConnectionManager struct {
	mu    sync.RWMutex
	rooms map[uint64]map[string]*Subscriber
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{rooms: make(map[uint64]map[string]*Subscriber)}
}

// Add 注册订阅者；同一房间内相同 ID 的旧连接会被关闭并替换。
func (m *ConnectionManager) Add(roomID uint64, subscriberID string, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{ID: subscriberID, RoomID: roomID, conn: conn}

	m.mu.Lock()
	subs, ok := m.rooms[roomID]
	if !ok {
		subs = make(map[string]*Subscriber)
		m.rooms[roomID] = subs
	}
	old := subs[subscriberID]
	subs[subscriberID] = sub
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return sub
}

// Remove 注销订阅者，仅当当前登记的仍是 sub 时才删除。
func (m *ConnectionManager) Remove(sub *Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.rooms[sub.RoomID]
	if subs[sub.ID] != sub {
		return
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(m.rooms, sub.RoomID)
	}
}

// Subscribers 实现 RoomLookup。
func (m *ConnectionManager) Subscribers(roomID uint64) []ConnWriter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := m.rooms[roomID]
	out := make([]ConnWriter, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// ListIDs 返回房间内订阅者 ID，已排序。
func (m *ConnectionManager) ListIDs(roomID uint64) []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.rooms[roomID]))
	for id := range m.rooms[roomID] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count 返回所有房间的订阅连接数。
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, subs := range m.rooms {
		n += len(subs)
	}
	return n
}
