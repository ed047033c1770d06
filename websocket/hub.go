package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/tutorhive/tutorhive/models"
)

// The hub pushes session lifecycle transitions to connected clients. Each
// event goes to the session's student and tutor if they are online; delivery
// is best effort and never blocks the engine.

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

type SessionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`

	studentID *uuid.UUID
	tutorID   uuid.UUID
}

var (
	clients    = make(map[uuid.UUID]*websocket.Conn)
	clientsMu  sync.RWMutex
	Register   = make(chan *Client)
	Unregister = make(chan *Client)
	Events     = make(chan *SessionEvent, 64)
)

// Publish queues a transition event for delivery. It drops the event rather
// than stall when the hub is backed up.
func Publish(sess *models.Session) {
	ev := &SessionEvent{
		SessionID: sess.ID,
		Status:    sess.Status,
		At:        time.Now(),
		studentID: sess.StudentID,
		tutorID:   sess.TutorID,
	}
	select {
	case Events <- ev:
	default:
		log.Printf("⚠️ event feed full, dropping event for session %s", sess.ID)
	}
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
			log.Printf("Event feed client registered: %s", client.UserID)
		case client := <-Unregister:
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
			log.Printf("Event feed client unregistered: %s", client.UserID)
		case ev := <-Events:
			recipients := []uuid.UUID{ev.tutorID}
			if ev.studentID != nil {
				recipients = append(recipients, *ev.studentID)
			}
			deliver(ev, recipients)
		}
	}
}

func deliver(ev *SessionEvent, recipients []uuid.UUID) {
	clientsMu.RLock()
	conns := make(map[uuid.UUID]*websocket.Conn, len(recipients))
	for _, id := range recipients {
		if conn, ok := clients[id]; ok {
			conns[id] = conn
		}
	}
	clientsMu.RUnlock()

	for id, conn := range conns {
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("Error sending event to client %s: %v", id, err)
			conn.Close()
			clientsMu.Lock()
			if cur, ok := clients[id]; ok && cur == conn {
				delete(clients, id)
			}
			clientsMu.Unlock()
		}
	}
}
