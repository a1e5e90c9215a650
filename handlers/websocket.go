package handlers

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"patro-map/mapview"
	"patro-map/models"
	"patro-map/services"
)

// wsConn - the part of a socket the hub writes to
type wsConn interface {
	WriteJSON(v interface{}) error
	Close() error
	RemoteAddr() net.Addr
}

type Client struct {
	Conn       wsConn
	ClientType string // "agv" or "web"

	// greeting is written before any broadcast reaches the client
	greeting []models.WebSocketMessage
}

// hubEvent - one entry of the ordered broadcast queue: a message, or a web client joining
// at this point of the op stream
type hubEvent struct {
	msg  models.WebSocketMessage
	join *Client
}

// resyncDelay - retry interval for a full scene after the queue overflowed
const resyncDelay = 50 * time.Millisecond

// ClientManager - connected sockets; all writes happen on the Start goroutine
type ClientManager struct {
	clients    map[wsConn]*Client
	broadcast  chan hubEvent
	register   chan *Client
	unregister chan wsConn
	mutex      sync.RWMutex
	metrics    *services.Metrics
	log        zerolog.Logger

	// owned by the map loop, set by AttachMap
	loop   *mapview.Loop
	dl     *mapview.DisplayList
	resync bool
}

// NewClientManager - hub with a 256-message broadcast buffer
func NewClientManager(metrics *services.Metrics, log zerolog.Logger) *ClientManager {
	return &ClientManager{
		clients:    make(map[wsConn]*Client),
		broadcast:  make(chan hubEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan wsConn, 16),
		metrics:    metrics,
		log:        log,
	}
}

// Start - serve registrations and broadcasts until ctx is cancelled
func (manager *ClientManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			manager.closeAll()
			return
		case client := <-manager.register:
			manager.add(client)
		case conn := <-manager.unregister:
			manager.remove(conn)
		case ev := <-manager.broadcast:
			if ev.join != nil {
				manager.add(ev.join)
				continue
			}
			manager.handleBroadcast(ev.msg)
		}
	}
}

func (manager *ClientManager) add(client *Client) {
	for _, msg := range client.greeting {
		if err := client.Conn.WriteJSON(msg); err != nil {
			manager.log.Warn().Err(err).Str("client", client.ClientType).Msg("greeting failed")
			_ = client.Conn.Close()
			return
		}
	}
	manager.mutex.Lock()
	manager.clients[client.Conn] = client
	manager.mutex.Unlock()
	manager.log.Info().Str("client", client.ClientType).Stringer("addr", client.Conn.RemoteAddr()).Msg("client registered")
	manager.reportCount()
}

func (manager *ClientManager) remove(conn wsConn) {
	manager.mutex.Lock()
	client, ok := manager.clients[conn]
	if ok {
		delete(manager.clients, conn)
	}
	manager.mutex.Unlock()
	if !ok {
		return
	}
	_ = conn.Close()
	manager.log.Info().Str("client", client.ClientType).Stringer("addr", conn.RemoteAddr()).Msg("client unregistered")
	manager.reportCount()
}

func (manager *ClientManager) closeAll() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	for conn := range manager.clients {
		_ = conn.Close()
		delete(manager.clients, conn)
	}
}

func (manager *ClientManager) reportCount() {
	manager.metrics.SetWebClients(manager.GetClientCount()["web"])
}

// handleBroadcast - every server-to-web message goes to web clients only
func (manager *ClientManager) handleBroadcast(message models.WebSocketMessage) {
	var failed []wsConn

	manager.mutex.RLock()
	for conn, client := range manager.clients {
		if client.ClientType != "web" {
			continue
		}
		if err := conn.WriteJSON(message); err != nil {
			manager.log.Warn().Err(err).Str("type", message.Type).Msg("send failed")
			failed = append(failed, conn)
		}
	}
	manager.mutex.RUnlock()

	for _, conn := range failed {
		manager.remove(conn)
	}
}

// BroadcastMessage - queue msg for all web clients. Never blocks: a full buffer drops
// the message, since callers include the map loop.
func (manager *ClientManager) BroadcastMessage(msg models.WebSocketMessage) {
	if !manager.enqueue(hubEvent{msg: msg}) {
		manager.log.Warn().Str("type", msg.Type).Msg("broadcast buffer full, message dropped")
	}
}

func (manager *ClientManager) enqueue(ev hubEvent) bool {
	select {
	case manager.broadcast <- ev:
		return true
	default:
		return false
	}
}

// Notify - push an operator notification
func (manager *ClientManager) Notify(level, message string, code int) {
	manager.BroadcastMessage(models.NewMessage(models.MessageTypeNotification, models.NotificationData{
		Level:   level,
		Message: message,
		Code:    code,
	}))
}

func (manager *ClientManager) GetClientCount() map[string]int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	count := map[string]int{
		"agv": 0,
		"web": 0,
	}

	for _, client := range manager.clients {
		count[client.ClientType]++
	}

	return count
}

// ========================================
// Map events -> web clients
// ========================================

// forwarded - bus events relayed to the browser
var forwarded = map[mapview.EventType]string{
	mapview.EventClick:       models.MessageTypeClick,
	mapview.EventDoubleClick: models.MessageTypeDoubleClick,
	mapview.EventCursor:      models.MessageTypeCursor,
	mapview.EventIndicate:    models.MessageTypeIndicate,
}

// AttachMap - relay map events and display-list changes to web clients. Must be called
// before the loop starts, or from a loop task.
func (manager *ClientManager) AttachMap(loop *mapview.Loop, m *mapview.Map, dl *mapview.DisplayList) {
	types := make([]mapview.EventType, 0, len(forwarded))
	for t := range forwarded {
		types = append(types, t)
	}
	m.Bus().SubscribeTypes(func(e mapview.Event) {
		msg := models.NewMessage(forwarded[e.Type], e.Payload)
		msg.Timestamp = e.Timestamp.UnixMilli()
		manager.BroadcastMessage(msg)
	}, types...)

	manager.loop = loop
	manager.dl = dl
	loop.OnFlush = manager.syncScene
}

// syncScene - queue the display-list ops made since the last call; runs on the loop.
// Ops that do not fit in the queue are dropped, and web clients get a whole scene instead
// once there is room again.
func (manager *ClientManager) syncScene() {
	ops := manager.dl.Drain()
	if manager.resync {
		if manager.enqueue(hubEvent{msg: models.NewMessage(models.MessageTypeScene, manager.dl.Snapshot())}) {
			manager.resync = false
			manager.log.Info().Msg("web clients resynced with a full scene")
		} else {
			manager.retrySync()
		}
		return
	}
	if len(ops) == 0 {
		return
	}
	if !manager.enqueue(hubEvent{msg: models.NewMessage(models.MessageTypeSceneOps, ops)}) {
		manager.log.Warn().Int("ops", len(ops)).Msg("broadcast buffer full, scene will be resent")
		manager.resync = true
		manager.retrySync()
	}
}

// retrySync - wake the loop later so OnFlush runs again without new map activity
func (manager *ClientManager) retrySync() {
	manager.loop.Scheduler().AfterFunc(resyncDelay, func() {})
}

// joinWeb - queue a web client behind everything already broadcast, greeting it with the
// current scene; runs on the loop. Pending ops are queued first so the snapshot and the op
// stream neither overlap nor leave a gap. False means the queue is full; try again later.
func (manager *ClientManager) joinWeb(conn wsConn, welcome models.WebSocketMessage) bool {
	manager.syncScene()
	if manager.resync {
		return false
	}
	scene := models.NewMessage(models.MessageTypeScene, manager.dl.Snapshot())
	return manager.enqueue(hubEvent{join: &Client{
		Conn:       conn,
		ClientType: "web",
		greeting:   []models.WebSocketMessage{welcome, scene},
	}})
}

// ========================================
// Socket handlers
// ========================================

// HandleAGVWebSocket - robots pushing status directly; every frame goes to the ingestor
func (s *Server) HandleAGVWebSocket(c *websocket.Conn) {
	s.manager.register <- &Client{Conn: c, ClientType: "agv"}
	defer func() {
		s.manager.unregister <- c
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.log.Debug().Err(err).Msg("agv socket closed")
			return
		}
		_ = s.ingestor.Handle(data)
	}
}

// HandleWebClientWebSocket - operator view: scene snapshot, then pointer and mode input
func (s *Server) HandleWebClientWebSocket(c *websocket.Conn) {
	welcome := models.NewMessage(models.MessageTypeSystemInfo, map[string]interface{}{
		"message":      "web client connected",
		"connected_at": time.Now().Format(time.RFC3339),
	})
	if err := s.joinWeb(c, welcome); err != nil {
		s.log.Error().Err(err).Msg("web client join failed")
		_ = c.Close()
		return
	}
	defer func() {
		s.manager.unregister <- c
	}()

	for {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := c.ReadJSON(&msg); err != nil {
			s.log.Debug().Err(err).Msg("web socket closed")
			return
		}
		s.handleWebInput(msg.Type, msg.Data)
	}
}

// joinWeb - register conn from a loop task, retrying while the broadcast queue is full
func (s *Server) joinWeb(conn wsConn, welcome models.WebSocketMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	for {
		var joined bool
		if err := s.loop.Do(ctx, func() { joined = s.manager.joinWeb(conn, welcome) }); err != nil {
			return err
		}
		if joined {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resyncDelay):
		}
	}
}

// handleWebInput - decode one client message and post it to the map loop
func (s *Server) handleWebInput(typ string, data json.RawMessage) {
	switch typ {
	case models.MessageTypePointer:
		var p models.PointerData
		if err := json.Unmarshal(data, &p); err != nil {
			s.log.Warn().Err(err).Msg("bad pointer message")
			return
		}
		at := mapview.ScreenPoint{X: p.X, Y: p.Y}
		s.loop.Post(func() {
			switch p.Action {
			case models.PointerDown:
				s.m.PointerDown(at)
			case models.PointerMove:
				s.m.PointerMove(at)
			case models.PointerUp:
				s.m.PointerUp(at)
			case models.PointerWheel:
				s.m.Wheel(p.Delta, at)
			case models.PointerOut:
				s.m.PointerOut()
			default:
				s.log.Warn().Str("action", p.Action).Msg("unknown pointer action")
			}
		})

	case models.MessageTypeMode:
		var md models.ModeData
		if err := json.Unmarshal(data, &md); err != nil {
			s.log.Warn().Err(err).Msg("bad mode message")
			return
		}
		if err := s.setMode(md.Mode); err != nil {
			s.log.Warn().Err(err).Msg("mode change rejected")
		}

	default:
		s.log.Warn().Str("type", typ).Msg("unknown message type")
	}
}
