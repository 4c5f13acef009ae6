package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"bili-danmu/internal/model"
	"bili-danmu/internal/service"
)

const (
	readDeadline = 90 * time.Second // 允许心跳丢 2-3 次（30s/跳）
	readLimit    = int64(4 << 10)   // 单条指令最大 4KB
	cmdTimeout   = 3 * time.Second
)

// WebSocketHandler 负责握手、注册订阅连接以及指令读循环。
type WebSocketHandler struct {
	connManager *service.ConnectionManager
	pullSvc     *service.PullService
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建 Handler；pullSvc 为 nil 时拉取与确认指令返回 503。
func NewWebSocketHandler(connManager *service.ConnectionManager, pullSvc *service.PullService) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		pullSvc:     pullSvc,
		upgrader: websocket.Upgrader{
			// 生产环境需校验 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket 提供给 Gin 的路由函数：GET /ws?room_id=&subscriber_id=
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Query("room_id"), 10, 64)
	if err != nil || roomID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id 不合法"})
		return
	}
	subscriberID := c.Query("subscriber_id")
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("subscriber_id", subscriberID).Msg("升级 WebSocket 失败")
		return
	}

	sub := h.connManager.Add(roomID, subscriberID, conn)
	log.Info().Uint64("room_id", roomID).Str("subscriber_id", subscriberID).
		Int("online", len(h.connManager.ListIDs(roomID))).Msg("订阅者已连接")

	// 独立 goroutine 读消息，避免阻塞握手返回
	go h.readLoop(sub, conn)
}

// readLoop 读取订阅者指令：心跳、按游标拉取、确认。
func (h *WebSocketHandler) readLoop(sub *service.Subscriber, conn *websocket.Conn) {
	defer func() {
		h.connManager.Remove(sub)
		_ = conn.Close()
		log.Info().Uint64("room_id", sub.RoomID).Str("subscriber_id", sub.ID).Msg("订阅者连接关闭")
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		// 客户端 Pong 刷新超时
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		var packet model.InputPacket
		if err := conn.ReadJSON(&packet); err != nil {
			log.Debug().Err(err).Str("subscriber_id", sub.ID).Msg("读取订阅者指令失败")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		if err := sub.WriteJSON(h.dispatch(sub, packet)); err != nil {
			log.Debug().Err(err).Str("subscriber_id", sub.ID).Msg("回复订阅者失败")
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(sub *service.Subscriber, packet model.InputPacket) model.OutputPacket {
	roomID := packet.RoomID
	if roomID == 0 {
		roomID = sub.RoomID
	}

	switch packet.Cmd {
	case model.CmdHeartbeat:
		return model.OutputPacket{Cmd: model.CmdHeartbeat, Code: 0}
	case model.CmdPull:
		if h.pullSvc == nil {
			return model.OutputPacket{Cmd: model.CmdPull, Code: http.StatusServiceUnavailable, RoomID: roomID, Payload: "归档未启用"}
		}
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		res, err := h.pullSvc.PullEvents(ctx, roomID, packet.CursorSeq, packet.Limit)
		if err != nil {
			log.Warn().Err(err).Uint64("room_id", roomID).Msg("拉取事件失败")
			return model.OutputPacket{Cmd: model.CmdPull, Code: 1, RoomID: roomID, Payload: "拉取失败"}
		}
		return model.OutputPacket{
			Cmd:           model.CmdPull,
			Code:          0,
			RoomID:        roomID,
			NextCursorSeq: res.NextCursorSeq,
			HasMore:       res.HasMore,
			Payload:       res.Events,
		}
	case model.CmdAck:
		if h.pullSvc == nil {
			return model.OutputPacket{Cmd: model.CmdAck, Code: http.StatusServiceUnavailable, RoomID: roomID, Payload: "归档未启用"}
		}
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		if err := h.pullSvc.AckCursor(ctx, sub.ID, roomID, packet.CursorSeq); err != nil {
			log.Warn().Err(err).Uint64("room_id", roomID).Msg("确认游标失败")
			return model.OutputPacket{Cmd: model.CmdAck, Code: 1, RoomID: roomID}
		}
		return model.OutputPacket{Cmd: model.CmdAck, Code: 0, RoomID: roomID, Seq: packet.CursorSeq}
	default:
		return model.OutputPacket{Cmd: packet.Cmd, Code: http.StatusBadRequest, Payload: "未知指令"}
	}
}
