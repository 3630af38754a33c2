// internal/server/websocket.go
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/hub"
)

const writeWait = 10 * time.Second

// ClientMessage is what websocket clients send.
type ClientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// Client actions.
const (
	ActionSubscribe       = "subscribe"
	ActionUnsubscribe     = "unsubscribe"
	ActionStartMonitoring = "start-monitoring"
	ActionStopMonitoring  = "stop-monitoring"
	ActionSnapshot        = "get-snapshot"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	log := s.log.WithField("remote", r.RemoteAddr)

	var rooms []string
	if room := r.URL.Query().Get("room"); room != "" {
		rooms = append(rooms, room)
	}
	sub := s.svc.Hub().Subscribe(rooms...)
	log.Info("websocket client connected")

	defer func() {
		sub.Close()
		conn.Close()
		log.WithField("dropped", sub.Dropped()).Info("websocket client disconnected")
	}()

	go func() {
		for ev := range sub.Events() {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				conn.Close()
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
			time.Now().Add(time.Second))
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		s.handleClientMessage(sub, msg)
	}
}

func (s *Server) handleClientMessage(sub *hub.Subscription, msg ClientMessage) {
	switch msg.Action {
	case ActionSubscribe:
		if msg.Room != "" {
			sub.Join(msg.Room)
		}
	case ActionUnsubscribe:
		if msg.Room != "" {
			sub.Leave(msg.Room)
		}
	case ActionStartMonitoring, ActionStopMonitoring:
		var changed bool
		if msg.Action == ActionStartMonitoring {
			changed = s.svc.StartMonitoring()
		} else {
			changed = s.svc.StopMonitoring()
		}
		if !changed {
			sub.Send(hub.Event{
				Type:  dashboard.EventMonitoringStatus,
				Topic: hub.TopicMonitoring,
				Data:  dashboard.MonitoringStatus{IsMonitoring: s.svc.Monitoring()},
			})
		}
	case ActionSnapshot:
		sub.Send(hub.Event{Type: dashboard.EventPerformanceUpdate, Topic: hub.TopicPerformance, Data: s.svc.Snapshot()})
	default:
		s.log.WithField("action", msg.Action).Debug("ignoring unknown websocket action")
	}
}
