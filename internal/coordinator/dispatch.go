package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sundialgames/weekender-backend/internal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades the HTTP connection, registers it, greets the
// client with its connection id, and starts the read loop.
func (c *Coordinator) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	cc := c.conns.Register(connID, conn)
	if err := cc.SendJSON(internal.ConnectedMessage{Type: internal.TypeConnected, ConnectionID: connID}); err != nil {
		log.Debug().Err(err).Str("conn", connID).Msg("greeting failed")
	}
	log.Debug().Str("conn", connID).Msg("connection opened")

	go c.readLoop(cc)
}

// readLoop pulls frames off one socket and feeds them to Dispatch one at a
// time. When the socket dies the player is marked disconnected and the
// reconnect grace clock starts.
func (c *Coordinator) readLoop(cc *ClientConn) {
	defer func() {
		cc.conn.Close()
		c.HandleDisconnect(cc.ID)
		c.conns.Unregister(cc.ID)
		log.Debug().Str("conn", cc.ID).Msg("connection closed")
	}()

	for {
		_, raw, err := cc.conn.ReadMessage()
		if err != nil {
			return
		}
		c.Dispatch(cc, raw)
	}
}

// Dispatch decodes one inbound frame and routes it by type. Malformed frames
// and unknown types never crash the handler: they produce a targeted error
// reply and leave all state untouched.
func (c *Coordinator) Dispatch(cc *ClientConn, raw []byte) {
	var envelope internal.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.sendError(cc, internal.NewCoordError(internal.ErrInvalidMessage, "frame is not valid JSON"))
		return
	}
	if envelope.Type == "" {
		c.sendError(cc, internal.NewCoordError(internal.ErrMissingType, "message type is required"))
		return
	}

	switch envelope.Type {
	case internal.TypeCreateRoom:
		var req internal.CreateRoomRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		reply, err := c.CreateRoom(cc.ID, req.Name, req.ProfileToken)
		if err != nil {
			c.sendError(cc, err)
			return
		}
		c.reply(cc, reply)

	case internal.TypeJoinRoom:
		var req internal.JoinRoomRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		reply, err := c.JoinRoom(cc.ID, req)
		if err != nil {
			c.sendError(cc, err)
			return
		}
		c.reply(cc, reply)

	case internal.TypeLeaveRoom:
		c.sendIfErr(cc, c.LeaveRoom(cc.ID))

	case internal.TypeStartGame:
		c.sendIfErr(cc, c.StartGame(cc.ID))

	case internal.TypeKickPlayer:
		var req internal.KickPlayerRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		c.sendIfErr(cc, c.KickPlayer(cc.ID, req.PlayerID))

	case internal.TypeTerminateRoom:
		c.sendIfErr(cc, c.TerminateRoom(cc.ID))

	case internal.TypePlayerStateUpdate:
		var req internal.PlayerStateUpdateRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		c.sendIfErr(cc, c.PlayerStateUpdate(cc.ID, req))

	case internal.TypePlayerLogEvent:
		var req internal.PlayerLogEventRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		c.sendIfErr(cc, c.PlayerLogEvent(cc.ID, req.Entry))

	case internal.TypeEndTurn:
		var req internal.EndTurnRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		c.sendIfErr(cc, c.SubmitTurn(cc.ID, req.TurnSummary))

	case internal.TypeCancelEndTurn:
		var req internal.CancelEndTurnRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		c.sendIfErr(cc, c.CancelEndTurn(cc.ID, req.Payload))

	case internal.TypeRequestSync:
		c.sendIfErr(cc, c.RequestSync(cc.ID))

	case internal.TypeRenamePlayer:
		var req internal.RenamePlayerRequest
		if !c.decode(cc, raw, &req) {
			return
		}
		c.sendIfErr(cc, c.RenamePlayer(cc.ID, req.Name))

	case internal.TypeHeartbeat:
		c.reply(cc, internal.HeartbeatAckMessage{Type: internal.TypeHeartbeatAck, ServerTime: c.now().UTC()})

	default:
		c.sendError(cc, internal.NewCoordError(internal.ErrUnsupportedType, "unknown message type "+envelope.Type))
	}
}

func (c *Coordinator) decode(cc *ClientConn, raw []byte, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		c.sendError(cc, internal.NewCoordError(internal.ErrInvalidMessage, "malformed payload"))
		return false
	}
	return true
}

func (c *Coordinator) reply(cc *ClientConn, msg any) {
	if cc == nil {
		return
	}
	if err := cc.SendJSON(msg); err != nil {
		log.Debug().Err(err).Str("conn", cc.ID).Msg("reply failed")
	}
}

func (c *Coordinator) sendIfErr(cc *ClientConn, err error) {
	if err != nil {
		c.sendError(cc, err)
	}
}
