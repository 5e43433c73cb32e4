package events

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calman.com/worklog/web/broker"
	"calman.com/worklog/web/common"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultKeepAlive = 30 * time.Second

type Endpoint struct {
	base      common.Handler
	keepAlive time.Duration
}

func Register(r *gin.RouterGroup, base common.Handler, keepAlive time.Duration) {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	endpoint := &Endpoint{base: base, keepAlive: keepAlive}
	r.GET("/sse/subscribe", endpoint.Subscribe)
	r.GET("/sse/status", endpoint.Status)
}

type StatusDTO struct {
	ActiveConnections int    `json:"activeConnections"`
	Message           string `json:"message"`
}

func (ep *Endpoint) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusDTO{
		ActiveConnections: ep.base.Events.Clients(),
		Message:           "SSE service is running",
	})
}

// Subscribe streams work log events until the client goes away. The cached
// events newer than Last-Event-ID are sent right after the connect event.
func (ep *Endpoint) Subscribe(c *gin.Context) {
	lastEventID, _ := strconv.ParseInt(strings.TrimSpace(c.GetHeader("Last-Event-ID")), 10, 64)
	sub := ep.base.Events.Subscribe(lastEventID)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Render(-1, sse.Event{
		Event: broker.EventConnect,
		Data:  fmt.Sprintf("connected - ID: %d", sub.ID),
	})
	for _, ev := range sub.Replay {
		c.Render(-1, toSSE(ev))
	}
	c.Writer.Flush()

	ticker := time.NewTicker(ep.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.Render(-1, toSSE(ev))
			return true
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				ep.base.Logger.Debug("sse keep-alive failed", zap.Int64("subscriber", sub.ID), zap.Error(err))
				return false
			}
			return true
		}
	})
}

func toSSE(ev broker.Event) sse.Event {
	return sse.Event{
		Id:    strconv.FormatInt(ev.ID, 10),
		Event: ev.Name,
		Data:  ev.Data,
	}
}
