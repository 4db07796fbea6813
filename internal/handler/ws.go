package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"meshgraph/internal/tracker"
)

// Message types accepted on the view socket
const (
	MessageParams   = "params"
	MessageUI       = "ui"
	MessageRefresh  = "refresh"
	MessageReplay   = "replay"
	MessageNavigate = "navigate"
	MessageRetry    = "retry"
	MessagePing     = "ping"
)

// Reply types
const (
	ReplyAck    = "ack"
	ReplyStatus = "status"
	ReplyPong   = "pong"
	ReplyError  = "error"
)

const wsWriteTimeout = 10 * time.Second

var viewUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SocketMessage is one message in either direction. Data carries the same body
// the matching REST endpoint accepts.
type SocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type socketReply struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ViewSocket accepts view changes over a websocket. Each message is applied
// in order and answered before the next one is read.
func (h *Handler) ViewSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := viewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade view socket")
		return
	}
	defer ws.Close()

	log := h.log.WithField("remote", r.RemoteAddr)
	log.Debug("view socket connected")

	for {
		var msg SocketMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("failed to read view socket message")
			}
			return
		}

		reply := h.handleMessage(r.Context(), msg)
		reply.ID = msg.ID
		if reply.Type == ReplyError {
			log.WithFields(logrus.Fields{"type": msg.Type, "error": reply.Error}).Debug("rejected view socket message")
		}

		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteJSON(reply); err != nil {
			log.WithError(err).Warn("failed to write view socket reply")
			return
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg SocketMessage) socketReply {
	var mutate func(*tracker.Snapshot)

	switch msg.Type {
	case MessagePing:
		return socketReply{Type: ReplyPong}

	case MessageRetry:
		var reply socketReply
		err := h.loop.Do(ctx, func() {
			h.ctrl.Retry()
			reply = socketReply{Type: ReplyStatus, Data: h.ctrl.Status()}
		})
		if err != nil {
			return errorReply(err)
		}
		return reply

	case MessageParams:
		var patch ParamsPatch
		if err := decodeMessage(msg, &patch); err != nil {
			return errorReply(err)
		}
		mutate = patch.Apply

	case MessageUI:
		var patch UIPatch
		if err := decodeMessage(msg, &patch); err != nil {
			return errorReply(err)
		}
		mutate = patch.Apply

	case MessageReplay:
		var req ReplayRequest
		if err := decodeMessage(msg, &req); err != nil {
			return errorReply(err)
		}
		mutate = func(st *tracker.Snapshot) { st.Params.ReplayQueryTime = *req.QueryTime }

	case MessageRefresh:
		now := h.now().UnixMilli()
		mutate = func(st *tracker.Snapshot) { st.Params.LastRefreshAt = now }

	case MessageNavigate:
		var req NodeRequest
		if len(msg.Data) > 0 {
			if err := decodeMessage(msg, &req); err != nil {
				return errorReply(err)
			}
		}
		node := req.FocusedNode()
		mutate = func(st *tracker.Snapshot) { st.Params.FocusedNode = node }

	default:
		return errorReply(errors.Errorf("unknown message type %q", msg.Type))
	}

	var resp ViewResponse
	err := h.loop.Do(ctx, func() {
		h.store.Update(mutate)
		resp = h.viewResponse()
	})
	if err != nil {
		return errorReply(err)
	}
	return socketReply{Type: ReplyAck, Data: resp}
}

func decodeMessage(msg SocketMessage, v interface{}) error {
	if len(msg.Data) == 0 {
		return errors.Errorf("%s message needs data", msg.Type)
	}
	return decodeJSON(bytes.NewReader(msg.Data), v)
}

func errorReply(err error) socketReply {
	return socketReply{Type: ReplyError, Error: err.Error()}
}
