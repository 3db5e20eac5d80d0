/*
Package handler provides the HTTP handlers and routing for the server.

This file is the connection gateway: it upgrades HTTP requests to
websockets, runs the in-band authentication handshake, constructs the
session, feeds parsed intents to the router, and writes router-emitted
events back to the wire.
*/
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parley/internal/app/chat"
	"parley/internal/app/user"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/limiter"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"
)

const (
	// writeWait is the deadline for one websocket write.
	writeWait = 10 * time.Second

	// maxFrameSize bounds inbound client frames.
	maxFrameSize = 8192
)

// HandleWebSocket creates the HandlerFunc that accepts websocket
// connections. The handshake must complete within the configured
// timeout or the connection is dropped; only then does the session
// become Active and visible to the router.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, wsLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !wsLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimited))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		newGatewayConn(deps, conn).run()
	}
}

// gatewayConn couples one websocket connection to one session.
type gatewayConn struct {
	deps *AppDeps
	conn *websocket.Conn
	sess *chat.Session

	// disconnectOnce guarantees the router sees exactly one disconnect
	// per session regardless of which pump fails first.
	disconnectOnce sync.Once

	logger zerolog.Logger
}

func newGatewayConn(deps *AppDeps, conn *websocket.Conn) *gatewayConn {
	sess := deps.Router.NewSession()

	return &gatewayConn{
		deps:   deps,
		conn:   conn,
		sess:   sess,
		logger: logx.Logger().With().Str("session_id", sess.ID).Logger(),
	}
}

// run performs the handshake and then drives the read loop. The write
// pump starts only after activation; until then this goroutine is the
// connection's sole writer.
func (g *gatewayConn) run() {
	g.conn.SetReadLimit(maxFrameSize)

	identity, customErr := g.handshake()
	if customErr != nil {
		g.writeDirectError(customErr)
		g.sess.Close(customErr.Message)
		g.conn.Close()
		return
	}

	g.sess.Activate(identity)
	g.deps.Router.Register(g.sess)

	g.logger.Info().
		Str("user_id", identity.ID).
		Str("username", identity.Username).
		Msg("Handshake complete. Session active.")

	go g.writePump()
	g.readPump()
}

// handshake reads the first frame, which must be a hello carrying a
// valid login token, within the configured timeout.
func (g *gatewayConn) handshake() (user.Identity, *errs.CustomError) {
	deadline := time.Now().Add(g.deps.Config.HandshakeTimeout)
	if err := g.conn.SetReadDeadline(deadline); err != nil {
		g.logger.Error().Err(err).Msg("Failed to set handshake deadline")
		return user.Identity{}, errs.NewError(errs.ErrUnknown)
	}

	_, frame, err := g.conn.ReadMessage()
	if err != nil {
		g.logger.Info().Err(err).Msg("Connection dropped before completing handshake.")
		return user.Identity{}, errs.NewError(errs.ErrHandshakeTimeout)
	}

	var intent chat.Intent
	if err := json.Unmarshal(frame, &intent); err != nil || intent.Type != chat.IntentHello {
		return user.Identity{}, errs.NewError(errs.ErrInvalidToken)
	}

	var hello chat.HelloPayload
	if err := json.Unmarshal(intent.Payload, &hello); err != nil || hello.Token == "" {
		return user.Identity{}, errs.NewError(errs.ErrInvalidToken)
	}

	payload, err := jwt.ParseToken(hello.Token, g.deps.Config.JWTSecret)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Handshake rejected: invalid token.")
		return user.Identity{}, errs.NewError(errs.ErrInvalidToken)
	}

	return user.Identity{ID: payload.ID, Username: payload.Username}, nil
}

// readPump reads intents until the connection dies, then triggers the
// one disconnect.
func (g *gatewayConn) readPump() {
	defer g.disconnect()

	pongWait := g.deps.Config.PongWait()

	if err := g.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		g.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	g.conn.SetPongHandler(func(string) error {
		return g.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := g.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Info().Err(err).Msg("Read error, closing connection.")
			}
			return
		}

		g.dispatch(frame)
	}
}

// dispatch parses one inbound frame and applies it through the router.
// Request errors go back to this session only.
func (g *gatewayConn) dispatch(frame []byte) {
	var intent chat.Intent
	if err := json.Unmarshal(frame, &intent); err != nil {
		g.logger.Warn().Err(err).Msg("Client sent invalid JSON frame")
		g.sess.Send(chat.NewErrorEvent("", errs.NewError(errs.ErrInvalidJSONFormat)))
		return
	}

	switch intent.Type {
	case chat.IntentJoin:
		var p chat.JoinPayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			g.sess.Send(chat.NewErrorEvent("", errs.NewError(errs.ErrInvalidParams)))
			return
		}
		if customErr := g.deps.Router.HandleJoin(g.sess.ID, p.Room); customErr != nil {
			g.sess.Send(chat.NewErrorEvent(p.Room, customErr))
		}

	case chat.IntentLeave:
		var p chat.LeavePayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			g.sess.Send(chat.NewErrorEvent("", errs.NewError(errs.ErrInvalidParams)))
			return
		}
		if customErr := g.deps.Router.HandleLeave(g.sess.ID, p.Room); customErr != nil {
			g.sess.Send(chat.NewErrorEvent(p.Room, customErr))
		}

	case chat.IntentSend:
		var p chat.SendPayload
		if err := json.Unmarshal(intent.Payload, &p); err != nil {
			g.sess.Send(chat.NewErrorEvent("", errs.NewError(errs.ErrInvalidParams)))
			return
		}
		if customErr := g.deps.Router.HandleSend(g.sess.ID, p.Room, p.Text); customErr != nil {
			g.sess.Send(chat.NewErrorEvent(p.Room, customErr))
		}

	default:
		g.logger.Warn().Str("intent_type", string(intent.Type)).Msg("Client sent unsupported intent")
		g.sess.Send(chat.NewErrorEvent("", errs.NewError(errs.ErrUnsupportedIntent)))
	}
}

// writePump drains the session outbox to the socket and keeps the
// heartbeat going. It owns all writes after activation.
func (g *gatewayConn) writePump() {
	ticker := time.NewTicker(g.deps.Config.HeartbeatInterval)

	defer func() {
		ticker.Stop()
		g.conn.Close()
	}()

	for {
		select {
		case ev := <-g.sess.Outbox():
			if !g.writeEvent(ev) {
				return
			}

		case <-ticker.C:
			if err := g.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := g.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				g.logger.Info().Err(err).Msg("Ping failed, closing connection.")
				return
			}

		case <-g.sess.Done():
			// Flush whatever is already queued, then say goodbye.
			for {
				select {
				case ev := <-g.sess.Outbox():
					if !g.writeEvent(ev) {
						return
					}
				default:
					g.conn.SetWriteDeadline(time.Now().Add(writeWait))
					g.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

func (g *gatewayConn) writeEvent(ev chat.Event) bool {
	if err := g.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}

	frame, err := json.Marshal(ev)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to marshal outbound event")
		return true
	}

	if err := g.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		g.logger.Info().Err(err).Msg("Write failed, closing connection.")
		return false
	}

	return true
}

// writeDirectError reports a handshake failure on a connection whose
// write pump never started.
func (g *gatewayConn) writeDirectError(customErr *errs.CustomError) {
	frame, err := json.Marshal(chat.NewErrorEvent("", customErr))
	if err != nil {
		return
	}

	g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	g.conn.WriteMessage(websocket.TextMessage, frame)
}

// disconnect funnels every teardown path into exactly one router
// disconnect.
func (g *gatewayConn) disconnect() {
	g.disconnectOnce.Do(func() {
		g.deps.Router.HandleDisconnect(g.sess.ID)
		g.conn.Close()
	})
}
