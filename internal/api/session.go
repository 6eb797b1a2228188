package api

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/convosync/internal/chat"
	"github.com/yourorg/convosync/internal/models"
	"github.com/yourorg/convosync/internal/stream"
)

// session drives one live conversation socket: the stream manager feeds
// timeline snapshots out, client commands feed the controller in.
type session struct {
	conn *websocket.Conn
	send chan any

	mu     sync.Mutex
	closed bool
}

type command struct {
	Action      string `json:"action"`
	Text        string `json:"text,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"` // base64 attachment bytes
	ID          string `json:"id,omitempty"`
}

func (s *Server) handleWS(conn *websocket.Conn) {
	defer conn.Close()

	token := conn.Query("token")
	if token == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "error": "missing token"})
		return
	}
	localID, peerID, _, err := s.sessions.Validate(token)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "error": "invalid token"})
		return
	}
	key := models.ConversationKey{Local: localID, Peer: peerID}
	if !key.Valid() {
		_ = conn.WriteJSON(map[string]any{"type": "error", "error": "invalid conversation"})
		return
	}

	sess := &session{conn: conn, send: make(chan any, 32)}
	scroll := chat.NewAutoscroll()

	manager := stream.NewManager(s.store, s.log,
		stream.OnUpdate(func(timeline []models.Message) {
			sess.enqueue(map[string]any{"type": "timeline", "messages": timeline})
			scroll.Observe(len(timeline))
			select {
			case <-scroll.Requests():
				sess.enqueue(map[string]any{"type": "scroll"})
			default:
			}
		}),
		stream.OnError(func(err error) {
			sess.enqueue(map[string]any{"type": "error", "error": err.Error()})
		}),
	)

	ctx := context.Background()
	if err := manager.Open(ctx, key); err != nil {
		s.log.Errorw("open conversation", "error", err)
		_ = conn.WriteJSON(map[string]any{"type": "error", "error": "could not open conversation"})
		return
	}
	defer manager.Close()

	controller := chat.NewController(key, s.store, s.pipeline, s.events, s.log)

	if s.cache != nil {
		_ = s.cache.SetPresence(ctx, localID, true)
		defer func() { _ = s.cache.SetPresence(context.Background(), localID, false) }()
	}

	go sess.writePump()
	defer sess.close()

	s.readPump(ctx, sess, controller)
}

func (s *Server) readPump(ctx context.Context, sess *session, controller *chat.Controller) {
	sess.conn.SetReadLimit(1024 * 1024 * 8)
	for {
		var cmd command
		if err := sess.conn.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Action {
		case "send":
			controller.SetText(cmd.Text)
			if _, err := controller.Send(ctx); err != nil {
				sess.enqueue(map[string]any{"type": "error", "error": err.Error()})
			} else {
				sess.enqueue(map[string]any{"type": "composer", "attachment": attachmentPhase(controller)})
			}
		case "attach":
			data, err := base64.StdEncoding.DecodeString(cmd.Data)
			if err != nil {
				sess.enqueue(map[string]any{"type": "error", "error": "invalid attachment encoding"})
				continue
			}
			if err := controller.StageAttachment(cmd.Name, cmd.ContentType, data); err != nil {
				sess.enqueue(map[string]any{"type": "error", "error": err.Error()})
				continue
			}
			sess.enqueue(map[string]any{"type": "composer", "attachment": attachmentPhase(controller)})
		case "discard":
			if err := controller.DiscardAttachment(); err != nil {
				sess.enqueue(map[string]any{"type": "error", "error": err.Error()})
				continue
			}
			sess.enqueue(map[string]any{"type": "composer", "attachment": ""})
		case "delete":
			if err := controller.Delete(ctx, cmd.ID); err != nil {
				sess.enqueue(map[string]any{"type": "error", "error": err.Error()})
			}
		}
	}
}

func attachmentPhase(controller *chat.Controller) string {
	if att := controller.Attachment(); att != nil {
		return att.Phase().String()
	}
	return ""
}

func (s *session) enqueue(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- payload:
	default:
		// slow client; a later timeline snapshot supersedes this one
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteJSON(payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
