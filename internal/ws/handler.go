package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/attax1994/qiankun/internal/bus"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy lives in the CORS layer.
		return true
	},
}

const (
	// outboundBuffer is how many frames may queue per client before state
	// pushes are dropped.
	outboundBuffer = 16

	writeTimeout = 10 * time.Second
)

// Message is one client-to-server frame.
type Message struct {
	Type  string                 `json:"type"`
	State map[string]interface{} `json:"state,omitempty"`
}

// Handler manages WebSocket connections onto the global state bus.
type Handler struct {
	bus     *bus.Bus
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a WebSocket handler on the given bus.
func NewHandler(b *bus.Bus, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{bus: b, metrics: metrics, log: log}
}

// HandleConnection upgrades the request and serves frames until the client
// disconnects. The connection subscribes to the state bus under a fresh
// client id and is unsubscribed on exit.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	cl := &client{
		conn:    conn,
		out:     make(chan []byte, outboundBuffer),
		closed:  make(chan struct{}),
		metrics: h.metrics,
		log:     h.log.With(zap.String("client", clientID)),
	}

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	writerDone := make(chan struct{})
	go cl.writeLoop(writerDone)

	// The connection acts with host privilege so the page edge may
	// introduce state keys the init call never declared.
	actions := h.bus.ForInstance("ws-"+clientID, true)
	actions.OnGlobalStateChange(func(state, prev map[string]interface{}) {
		cl.send("state", map[string]interface{}{
			"type":      "state",
			"state":     state,
			"prev":      prev,
			"timestamp": time.Now().Unix(),
		})
	}, false)

	cl.send("system", map[string]interface{}{
		"type":      "system",
		"message":   "connected",
		"client_id": clientID,
		"state":     h.bus.Snapshot(),
	})

	cl.log.Debug("websocket client connected")
	h.readLoop(cl, actions)

	// Unsubscribe before signaling the writer down. A notification already
	// in flight lands on the closed signal instead of the channel.
	actions.OffGlobalStateChange()
	close(cl.closed)
	<-writerDone
	cl.log.Debug("websocket client disconnected")
}

func (h *Handler) readLoop(cl *client, actions *bus.Actions) {
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cl.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.metrics.RecordWSMessage("in", "malformed")
			cl.sendError("malformed frame")
			continue
		}

		switch msg.Type {
		case "set_state":
			h.metrics.RecordWSMessage("in", msg.Type)
			if err := actions.SetGlobalState(msg.State); err != nil {
				cl.sendError(err.Error())
			}
		case "snapshot":
			h.metrics.RecordWSMessage("in", msg.Type)
			cl.send("snapshot", map[string]interface{}{
				"type":  "snapshot",
				"state": h.bus.Snapshot(),
			})
		case "ping":
			h.metrics.RecordWSMessage("in", msg.Type)
			cl.send("pong", map[string]interface{}{"type": "pong"})
		default:
			h.metrics.RecordWSMessage("in", "unknown")
			cl.sendError("unknown message type")
		}
	}
}

// client is one connection. The writer goroutine owns all socket writes;
// send only enqueues.
type client struct {
	conn    *websocket.Conn
	out     chan []byte
	closed  chan struct{}
	metrics *monitoring.Metrics
	log     *logging.Logger
}

func (cl *client) writeLoop(done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-cl.closed:
			return
		case buf := <-cl.out:
			cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				cl.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// send encodes and enqueues one frame. Bus notifications may arrive from
// any goroutine, so a full queue drops the frame rather than blocking the
// notifier.
func (cl *client) send(msgType string, payload map[string]interface{}) {
	buf, err := sonic.Marshal(payload)
	if err != nil {
		cl.log.Error("encode websocket frame", zap.String("type", msgType), zap.Error(err))
		return
	}

	select {
	case <-cl.closed:
	case cl.out <- buf:
		cl.metrics.RecordWSMessage("out", msgType)
	default:
		cl.log.Warn("dropping websocket frame, client not draining",
			zap.String("type", msgType))
	}
}

func (cl *client) sendError(msg string) {
	cl.send("error", map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
