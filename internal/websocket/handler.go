package websocket

import (
	"context"
	"net/http"
	"time"

	"bucketstream/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	opts     ClientOptions
	log      *Logger
}

func NewHandler(registry *Registry, opts ClientOptions, log *Logger) *Handler {
	if log == nil {
		log = NewLogger(nil)
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		opts: opts,
		log:  log,
	}
}

// Connect upgrades the request and keeps the subscriber registered until the
// connection ends. The greeting is written before the connection becomes
// visible to dispatch, so it is always the first frame a subscriber sees.
// Subscribers only receive; inbound frames other than pings are ignored.
func (h *Handler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("upgrade_failed", "", err, zap.String("remote_addr", c.ClientIP()))
		return
	}

	client := NewClient(conn, h.opts, h.log)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	err = client.Send(ctx, encodeConnected(time.Now()))
	cancel()
	if err != nil {
		h.log.Warn("greeting_failed", client.ID(), zap.Error(err))
		return
	}

	id := h.registry.Register(client)
	metrics.ConnectionsOpened.Inc()
	h.log.Info("connected", id,
		zap.String("remote_addr", c.ClientIP()),
		zap.Int("active_connections", h.registry.Count()),
	)
	defer func() {
		h.registry.unregisterConn(id, client)
		h.log.Info("disconnected", id, zap.Int("active_connections", h.registry.Count()))
	}()

	go client.PingLoop()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		client.ReadLoop()
	}()

	// Either side may end the connection: the peer (read loop returns) or
	// the relay (dispatch eviction or shutdown closes the client).
	select {
	case <-readDone:
	case <-client.Done():
		<-readDone
	}
}
