package signal

import (
	"context"
	"time"

	"github.com/dkeye/Prompter/internal/app/orch"
	"github.com/dkeye/Prompter/internal/domain"
	"github.com/gorilla/websocket"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid domain.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ctl.log.Debug().Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				ctl.log.Debug().Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeWait)); err != nil {
				ctl.log.Error().Err(err).Str("sid", string(sid)).Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ctl.log.Error().Err(err).Str("sid", string(sid)).Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.writeWait)); err != nil {
				ctl.log.Warn().Err(err).Str("sid", string(sid)).Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

// readPump owns the session: when it exits the connection leaves its room
// and is unregistered.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.SessionID, c *WsSignalConn) {
	defer func() {
		ctl.log.Info().Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
		cancel()
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			ctl.log.Info().Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					ctl.log.Warn().Err(err).Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
				ctl.Orch.Fail(sid, "", orch.ErrRateLimited)
				continue
			}
			ctl.Orch.Handle(sid, data)
		}
	}
}
