package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bili-danmu/internal/model"
	"bili-danmu/internal/service"
)

// RecentReader 读取房间最近事件缓存。
type RecentReader interface {
	Recent(ctx context.Context, roomID uint64, n int) ([]model.EventRecord, error)
}

// HTTPHandler 提供事件查询接口；依赖缺省时对应接口返回 503。
type HTTPHandler struct {
	pullSvc *service.PullService
	recent  RecentReader
}

func NewHTTPHandler(pullSvc *service.PullService, recent RecentReader) *HTTPHandler {
	return &HTTPHandler{pullSvc: pullSvc, recent: recent}
}

// RegisterRoutes 挂载全部路由。
func RegisterRoutes(r *gin.Engine, ws *WebSocketHandler, api *HTTPHandler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.HandleWebSocket)

	rooms := r.Group("/api/rooms/:room_id")
	rooms.GET("/events", api.ListEvents)
	rooms.GET("/recent", api.Recent)
}

// ListEvents GET /api/rooms/:room_id/events?cursor=&limit=
func (h *HTTPHandler) ListEvents(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	if h.pullSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "归档未启用"})
		return
	}
	cursor, err := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	if err != nil || cursor < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cursor 不合法"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 不合法"})
		return
	}

	res, err := h.pullSvc.PullEvents(c.Request.Context(), roomID, cursor, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	events := res.Events
	if events == nil {
		events = []model.EventRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id":         roomID,
		"events":          events,
		"next_cursor_seq": res.NextCursorSeq,
		"has_more":        res.HasMore,
	})
}

// Recent GET /api/rooms/:room_id/recent?n=
func (h *HTTPHandler) Recent(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	if h.recent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "最近缓存未启用"})
		return
	}
	n, _ := strconv.Atoi(c.DefaultQuery("n", "50"))
	events, err := h.recent.Recent(c.Request.Context(), roomID, n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []model.EventRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "events": events})
}

func roomParam(c *gin.Context) (uint64, bool) {
	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil || roomID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id 不合法"})
		return 0, false
	}
	return roomID, true
}
