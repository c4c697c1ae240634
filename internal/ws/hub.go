// Package ws is the realtime transport: one socket per participant, JSON
// frames in both directions. The hub owns connection registries only; every
// session decision goes through the coordinator, and the hub's Broadcaster
// side fans the coordinator's events back out.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"arena-server/internal/arena"
)

const (
	sendBuffer = 16
	opTimeout  = 5 * time.Second
)

type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	name      string
	sessionID string
	spectator bool
}

type Hub struct {
	coord    *arena.Coordinator
	upgrader websocket.Upgrader

	mu        sync.Mutex
	clients   map[*Client]bool
	byUser    map[string]*Client
	bySession map[string]map[*Client]bool
}

func NewHub(coord *arena.Coordinator) *Hub {
	return &Hub{
		coord:     coord,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:   map[*Client]bool{},
		byUser:    map[string]*Client{},
		bySession: map[string]map[*Client]bool{},
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *Hub) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

// readLoop dispatches one message at a time, so each participant's ops apply
// in the order they were sent.
func (h *Hub) readLoop(c *Client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base baseMessage
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		if base.Type == "hello" {
			h.handleHello(c, msg)
			continue
		}
		if c.userID == "" {
			h.sendResult(c, base.Type, nil, errNotIdentified)
			continue
		}
		switch base.Type {
		case "list":
			h.handleList(c)
		case "create":
			h.handleCreate(c, msg)
		case "join":
			h.handleJoin(c, msg)
		case "spectate":
			h.handleSpectate(c, msg)
		case "leave":
			h.handleLeave(c)
		case "ready":
			h.handleReady(c, msg)
		case "start":
			h.handleStart(c)
		case "kick":
			h.handleKick(c, msg)
		case "settings":
			h.handleSettings(c, msg)
		case "action":
			h.handleAction(c, msg)
		case "end":
			h.handleEnd(c)
		case "sync":
			h.handleSync(c)
		case "chat":
			h.handleChat(c, msg)
		}
	}
}

func (h *Hub) handleHello(c *Client, raw []byte) {
	var hello HelloMessage
	if err := json.Unmarshal(raw, &hello); err != nil || hello.UserID == "" {
		h.sendResult(c, "hello", nil, errBadMessage)
		return
	}
	c.userID = hello.UserID
	c.name = hello.Name
	if c.name == "" {
		c.name = hello.UserID
	}

	h.mu.Lock()
	old := h.byUser[c.userID]
	h.byUser[c.userID] = c
	h.mu.Unlock()
	if old != nil && old != c {
		// one live socket per user; the new one wins
		h.detach(old)
		safeClose(old.send)
		_ = old.conn.Close()
	}
	h.sendResult(c, "hello", map[string]string{"user_id": c.userID}, nil)
}

func (h *Hub) handleList(c *Client) {
	ctx, cancel := h.opCtx()
	defer cancel()
	list, err := h.coord.ListOpen(ctx)
	h.sendResult(c, "list", list, err)
}

func (h *Hub) handleCreate(c *Client, raw []byte) {
	var msg CreateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendResult(c, "create", nil, errBadMessage)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	snap, err := h.coord.Create(ctx, arena.CreateRequest{
		Name:       msg.Name,
		Mode:       msg.Mode,
		ScenarioID: msg.ScenarioID,
		HostUserID: c.userID,
		HostName:   c.name,
		Capacity:   msg.Capacity,
		Settings:   msg.Settings,
	})
	if err == nil {
		h.attach(c, snap.ID, false)
	}
	h.sendResult(c, "create", snap, err)
}

func (h *Hub) handleJoin(c *Client, raw []byte) {
	var msg JoinMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.SessionID == "" {
		h.sendResult(c, "join", nil, errBadMessage)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	snap, err := h.coord.Join(ctx, msg.SessionID, c.userID, c.name)
	if err == nil {
		h.attach(c, snap.ID, false)
	}
	h.sendResult(c, "join", snap, err)
}

// handleSpectate attaches the connection to a session's event stream without
// taking a seat. Spectators get the same broadcasts participants do and no
// disconnect grace when they drop.
func (h *Hub) handleSpectate(c *Client, raw []byte) {
	var msg JoinMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.SessionID == "" {
		h.sendResult(c, "spectate", nil, errBadMessage)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	snap, err := h.coord.Snapshot(ctx, msg.SessionID)
	if err == nil {
		h.attach(c, snap.ID, true)
	}
	h.sendResult(c, "spectate", snap, err)
}

func (h *Hub) handleLeave(c *Client) {
	sessionID, spectator := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "leave", nil, errNoSession)
		return
	}
	if spectator {
		h.detach(c)
		h.sendResult(c, "leave", nil, nil)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	err := h.coord.Leave(ctx, sessionID, c.userID)
	h.detach(c)
	h.sendResult(c, "leave", nil, err)
}

func (h *Hub) handleReady(c *Client, raw []byte) {
	var msg ReadyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendResult(c, "ready", nil, errBadMessage)
		return
	}
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "ready", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	h.sendResult(c, "ready", nil, h.coord.SetReady(ctx, sessionID, c.userID, msg.Ready))
}

func (h *Hub) handleStart(c *Client) {
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "start", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	snap, err := h.coord.Start(ctx, sessionID, c.userID)
	h.sendResult(c, "start", snap, err)
}

func (h *Hub) handleKick(c *Client, raw []byte) {
	var msg KickMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.UserID == "" {
		h.sendResult(c, "kick", nil, errBadMessage)
		return
	}
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "kick", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	err := h.coord.Kick(ctx, sessionID, c.userID, msg.UserID)
	if err == nil {
		h.mu.Lock()
		if target := h.byUser[msg.UserID]; target != nil && target.sessionID == sessionID {
			h.detachLocked(target)
		}
		h.mu.Unlock()
	}
	h.sendResult(c, "kick", nil, err)
}

func (h *Hub) handleSettings(c *Client, raw []byte) {
	var msg SettingsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendResult(c, "settings", nil, errBadMessage)
		return
	}
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "settings", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	h.sendResult(c, "settings", nil, h.coord.UpdateSettings(ctx, sessionID, c.userID, msg.Settings))
}

func (h *Hub) handleAction(c *Client, raw []byte) {
	var msg ActionMessage
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Payload) == 0 {
		h.sendResult(c, "action", nil, errBadMessage)
		return
	}
	sessionID, spectator := h.session(c)
	if sessionID == "" || spectator {
		h.sendResult(c, "action", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	res, err := h.coord.SubmitAction(ctx, sessionID, c.userID, msg.Payload)
	h.sendResult(c, "action", res, err)
}

func (h *Hub) handleEnd(c *Client) {
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "end", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	h.sendResult(c, "end", nil, h.coord.ForceEnd(ctx, sessionID, c.userID))
}

func (h *Hub) handleSync(c *Client) {
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "sync", nil, errNoSession)
		return
	}
	ctx, cancel := h.opCtx()
	defer cancel()
	snap, err := h.coord.Snapshot(ctx, sessionID)
	h.sendResult(c, "sync", snap, err)
}

func (h *Hub) handleChat(c *Client, raw []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Text == "" {
		h.sendResult(c, "chat", nil, errBadMessage)
		return
	}
	sessionID, _ := h.session(c)
	if sessionID == "" {
		h.sendResult(c, "chat", nil, errNoSession)
		return
	}
	out, _ := json.Marshal(ChatEvent{
		Type:      "chat",
		SessionID: sessionID,
		UserID:    c.userID,
		Name:      c.name,
		Text:      msg.Text,
		SentAtMS:  time.Now().UnixMilli(),
	})
	h.fanOut(sessionID, out)
}

// attach binds the connection to a session for event fanout. sessionID and
// spectator live behind h.mu: a kick or a hello eviction detaches the client
// from another goroutine while its own readLoop still runs.
func (h *Hub) attach(c *Client, sessionID string, spectator bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.sessionID != "" && c.sessionID != sessionID {
		h.detachLocked(c)
	}
	c.sessionID = sessionID
	c.spectator = spectator
	set := h.bySession[sessionID]
	if set == nil {
		set = map[*Client]bool{}
		h.bySession[sessionID] = set
	}
	set[c] = true
}

// session reads the client's attachment under the hub lock.
func (h *Hub) session(c *Client) (sessionID string, spectator bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.sessionID, c.spectator
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
}

func (h *Hub) detachLocked(c *Client) {
	if c.sessionID == "" {
		return
	}
	if set := h.bySession[c.sessionID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.bySession, c.sessionID)
		}
	}
	c.sessionID = ""
	c.spectator = false
}

// unregister runs when the socket drops. The seat is not freed here: the
// coordinator's disconnect grace decides whether the participant comes back.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	sessionID, userID := c.sessionID, c.userID
	if c.spectator {
		userID = ""
	}
	delete(h.clients, c)
	if userID != "" && h.byUser[userID] == c {
		delete(h.byUser, userID)
	}
	h.detachLocked(c)
	h.mu.Unlock()
	safeClose(c.send)

	if sessionID != "" && userID != "" {
		log.Debug().Str("session_id", sessionID).Str("user", userID).Msg("socket dropped")
		h.coord.Disconnected(sessionID, userID)
	}
}

// SessionEvent implements arena.Broadcaster.
func (h *Hub) SessionEvent(sessionID, event string, payload any) {
	msg, err := json.Marshal(Event{Type: event, SessionID: sessionID, Data: payload})
	if err != nil {
		return
	}
	h.fanOut(sessionID, msg)
}

// SessionListChanged implements arena.Broadcaster: every connected client
// gets a fresh lobby list.
func (h *Hub) SessionListChanged() {
	ctx, cancel := h.opCtx()
	defer cancel()
	list, err := h.coord.ListOpen(ctx)
	if err != nil {
		return
	}
	msg, err := json.Marshal(OpResult{Type: "result", Op: "list", Ok: true, Data: list})
	if err != nil {
		return
	}
	h.mu.Lock()
	for c := range h.clients {
		safeSend(c.send, msg)
	}
	h.mu.Unlock()
}

func (h *Hub) fanOut(sessionID string, msg []byte) {
	h.mu.Lock()
	for c := range h.bySession[sessionID] {
		safeSend(c.send, msg)
	}
	h.mu.Unlock()
}

func (h *Hub) sendResult(c *Client, op string, data any, err error) {
	res := OpResult{Type: "result", Op: op, Ok: err == nil, Data: data}
	if err != nil {
		res.Error = err.Error()
		res.Data = nil
	}
	msg, merr := json.Marshal(res)
	if merr != nil {
		return
	}
	safeSend(c.send, msg)
}

func (h *Hub) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
		// slow consumer, drop rather than stall the hub
	}
}
