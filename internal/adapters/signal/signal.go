package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Prompter/internal/app/orch"
	"github.com/dkeye/Prompter/internal/config"
	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RateLimiter

	readLimit  int64
	sendBuffer int
	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration
	log        zerolog.Logger
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config, logger zerolog.Logger) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		Limiter:    NewRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Interval),
		readLimit:  cfg.ReadLimit,
		sendBuffer: cfg.SendBuffer,
		pingPeriod: cfg.PingPeriod,
		pongWait:   cfg.PongWait(),
		writeWait:  cfg.WriteWait,
		log:        logger.With().Str("module", "signal").Logger(),
	}
}

// WsSignalConn is a WebSocket endpoint with a bounded send queue.
// It implements core.SignalConnection.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the pumps. The optional
// ?role= query parameter declares the connection's role up front.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.SessionID(ulid.Make().String())
	client := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	buf := ctl.sendBuffer
	if buf <= 0 {
		buf = 32
	}
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buf),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.OnConnect(sid, client, c.Query("role"), conn, cancel)
	ctl.log.Info().Str("sid", string(sid)).Str("client", client).Str("remote", c.ClientIP()).Msg("new WS connection")

	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
