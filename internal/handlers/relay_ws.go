// internal/handlers/relay_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/lobby"
	"github.com/jason-s-yu/pvprelay/internal/middleware"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
	"github.com/jason-s-yu/pvprelay/internal/relay"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	readLimit    = 64 << 10
)

// RelayWSHandler upgrades the request and drives one player through rt until
// the connection closes. A closed connection counts as leaving the lobby.
func RelayWSHandler(logger *logrus.Logger, rt *relay.Router, outboxSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")
		c.SetReadLimit(readLimit)

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		p := lobby.NewPlayer(outboxSize)
		rt.Greet(p)

		go writePump(ctx, c, p, logger)
		err = readPump(ctx, c, p, rt, logger)

		rt.Disconnect(p)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readPump decodes inbound frames and dispatches them until the connection
// fails. A normal close is reported as nil.
func readPump(ctx context.Context, c *websocket.Conn, p *lobby.Player, rt *relay.Router, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			logger.WithField("player", p.ID).Warnf("received non-text message type %d, ignoring", typ)
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			rt.Reject(p, err)
			continue
		}
		rt.Dispatch(p, msg)
	}
}

// writePump drains the player's outbox onto the socket and keeps the
// connection alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, p *lobby.Player, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.Evicted():
			logger.WithField("player", p.ID).Warn("outbox overflowed on a match outcome, closing connection")
			c.Close(websocket.StatusPolicyViolation, "client too slow")
			return
		case msg := <-p.Outbox():
			data, err := protocol.Encode(msg)
			if err != nil {
				logger.WithField("player", p.ID).Warnf("failed to encode outgoing message: %v", err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("player", p.ID).Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("player", p.ID).Warnf("ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}
