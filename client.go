package main

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 60
	maxNameLen        = 16
	maxBotsPerRoom    = RoomCapacity - 1
)

// Client represents one WebSocket connection and its identity
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	username   string
	roomID     string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	authPlayerID int64 // 0 = guest
}

// NewClient creates a Client with the requested or a generated identity
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr, username string) *Client {
	if username == "" {
		username = GenerateGuestName()
	}
	if len(username) > maxNameLen {
		username = username[:maxNameLen]
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		username:   username,
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix marks a binary frame (see SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.sendRaw(data)
}

// SendBinary sends bytes as a binary WebSocket message
func (c *Client) SendBinary(data []byte) {
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	c.sendRaw(msg)
}

func (c *Client) sendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgCreateRoom:
		c.handleCreateRoom(env.D)
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgListRooms:
		c.SendJSON(Envelope{T: MsgRooms, Data: c.hub.registry.ListRooms()})
	case MsgPlayerList:
		if room := c.room(env.D); room != nil {
			room.BroadcastPlayerList()
		}
	case MsgStartGame:
		c.handleStartGame(env.D)
	case MsgStartTraining:
		c.handleStartTraining()
	case MsgPlayerUpdate:
		c.handlePlayerUpdate(env.D)
	case MsgShoot:
		c.handleShoot(env.D)
	case MsgPlayerHit:
		c.handlePlayerHit(env.D)
	case MsgPlantBomb:
		c.handlePlantBomb(env.D)
	case MsgDefuseBomb:
		c.handleDefuseBomb(env.D)
	case MsgSwitchTeam:
		c.handleSwitchTeam(env.D)
	case MsgBuyWeapon:
		c.handleBuyWeapon(env.D)
	case MsgLeaveRoom:
		c.handleLeaveRoom()
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	}
}

// room resolves the target room from the message payload, falling back to
// the room this client last joined. Absent rooms return nil; each handler
// decides whether that is worth surfacing.
func (c *Client) room(data json.RawMessage) *Room {
	var msg RoomMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err == nil && msg.RoomID != "" {
			return c.hub.registry.GetRoom(msg.RoomID)
		}
		// Some clients send the bare room id string
		var id string
		if err := json.Unmarshal(data, &id); err == nil && id != "" {
			return c.hub.registry.GetRoom(id)
		}
	}
	if c.roomID != "" {
		return c.hub.registry.GetRoom(c.roomID)
	}
	return nil
}

func (c *Client) sendError(reason string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: reason}})
}

func (c *Client) sendRejection(err error) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		c.sendError(rej.Reason)
		return
	}
	c.sendError(err.Error())
}

func (c *Client) handleCreateRoom(data json.RawMessage) {
	var msg CreateRoomMsg
	if len(data) > 0 {
		json.Unmarshal(data, &msg)
	}

	mode := GameMode(msg.Mode)
	switch mode {
	case ModeSkirmish, ModeObjective, ModeDeathmatch, ModeTraining:
	default:
		mode = ModeSkirmish
	}

	cfg := DefaultGameConfig(mode)
	if msg.RoundLimit > 0 {
		cfg.RoundLimit = ClampInt(msg.RoundLimit, 1, 50)
	}
	if msg.KillLimit > 0 {
		cfg.KillLimit = ClampInt(msg.KillLimit, 1, 100)
	}

	if c.roomID != "" {
		c.hub.registry.Leave(c.roomID, c.username)
		c.roomID = ""
	}

	room := c.hub.registry.CreateRoom(c.username, cfg)
	if room == nil {
		c.sendError("too many active rooms")
		return
	}
	room.SetSender(c.username, c)
	room.OnGameEnd = c.hub.persistGameResult
	for i := 0; i < ClampInt(msg.BotCount, 0, maxBotsPerRoom); i++ {
		room.AddBot()
	}
	c.roomID = room.ID

	c.hub.analytics.Track(EvtRoomCreate, c.authPlayerID, room.ID)
	c.SendJSON(Envelope{T: MsgRoomCreated, Data: RoomReply{RoomID: room.ID, Host: room.Host, Mode: string(room.Mode)}})
	room.BroadcastPlayerList()
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		// Bare room id string is also accepted
		var id string
		if err := json.Unmarshal(data, &id); err != nil || id == "" {
			c.sendError("room_not_found")
			return
		}
		msg.RoomID = id
	}

	if c.roomID != "" && c.roomID != msg.RoomID {
		c.hub.registry.Leave(c.roomID, c.username)
		c.roomID = ""
	}

	room, err := c.hub.registry.JoinRoom(msg.RoomID, c.username, c)
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) && rej.Reason == "room_full" {
			c.SendJSON(Envelope{T: MsgRoomFull})
			return
		}
		c.sendRejection(err)
		return
	}
	c.roomID = room.ID
	c.SendJSON(Envelope{T: MsgRoomJoined, Data: RoomReply{RoomID: room.ID, Host: room.Host, Mode: string(room.Mode)}})
	room.BroadcastPlayerList()
}

func (c *Client) handleStartGame(data json.RawMessage) {
	room := c.room(data)
	if room == nil {
		c.sendError("room_not_found")
		return
	}
	if err := room.StartGame(c.username); err != nil {
		c.sendRejection(err)
		return
	}
	c.hub.analytics.Track(EvtMatchStart, c.authPlayerID, room.ID)
}

// handleStartTraining creates a single-player room against one scripted
// opponent and starts it immediately.
func (c *Client) handleStartTraining() {
	if c.roomID != "" {
		c.hub.registry.Leave(c.roomID, c.username)
		c.roomID = ""
	}

	room := c.hub.registry.CreateRoom(c.username, DefaultGameConfig(ModeTraining))
	if room == nil {
		c.sendError("too many active rooms")
		return
	}
	room.SetSender(c.username, c)
	room.AddBot()
	c.roomID = room.ID

	c.SendJSON(Envelope{T: MsgRoomCreated, Data: RoomReply{RoomID: room.ID, Host: room.Host, Mode: string(room.Mode)}})
	if err := room.StartGame(c.username); err != nil {
		c.sendRejection(err)
		return
	}
	c.hub.analytics.Track(EvtMatchStart, c.authPlayerID, room.ID)
}

func (c *Client) handlePlayerUpdate(data json.RawMessage) {
	var msg PlayerUpdateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.room(data)
	if room == nil {
		return // high-frequency path; a stale room id is not worth surfacing
	}
	room.HandlePlayerUpdate(c.username, msg)
}

func (c *Client) handleShoot(data json.RawMessage) {
	var msg ShootMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.room(data)
	if room == nil {
		return
	}
	if err := room.HandleShoot(c.username, msg); err != nil {
		var rej *RejectionError
		reason := "unknown"
		if errors.As(err, &rej) {
			reason = rej.Reason
		}
		c.SendJSON(Envelope{T: MsgShootRejected, Data: ShootRejectedMsg{Reason: reason}})
	}
}

func (c *Client) handlePlayerHit(data json.RawMessage) {
	var msg PlayerHitMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.room(data)
	if room == nil {
		return
	}
	room.HandleHit(msg)
}

func (c *Client) handlePlantBomb(data json.RawMessage) {
	var msg PlantBombMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.room(data)
	if room == nil {
		c.sendError("room_not_found")
		return
	}
	if err := room.HandlePlant(c.username, msg.Position); err != nil {
		c.sendRejection(err)
	}
}

func (c *Client) handleDefuseBomb(data json.RawMessage) {
	room := c.room(data)
	if room == nil {
		c.sendError("room_not_found")
		return
	}
	if err := room.HandleDefuse(c.username); err != nil {
		c.sendRejection(err)
	}
}

func (c *Client) handleSwitchTeam(data json.RawMessage) {
	room := c.room(data)
	if room == nil {
		c.sendError("room_not_found")
		return
	}
	if err := room.HandleSwitchTeam(c.username); err != nil {
		c.sendRejection(err)
	}
}

func (c *Client) handleBuyWeapon(data json.RawMessage) {
	var msg BuyWeaponMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.room(data)
	if room == nil {
		c.sendError("room_not_found")
		return
	}
	reply, err := room.HandleBuy(c.username, msg.WeaponID)
	if err != nil {
		c.sendRejection(err)
		return
	}
	c.SendJSON(Envelope{T: MsgMoneyUpdated, Data: reply})
}

func (c *Client) handleLeaveRoom() {
	if c.roomID == "" {
		return
	}
	c.hub.registry.Leave(c.roomID, c.username)
	c.roomID = ""
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.db == nil {
		c.sendError("accounts disabled")
		return
	}
	if c.roomID != "" {
		c.sendError("leave room first")
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authPlayerID = id
	c.username = msg.Username
	c.hub.analytics.Track(EvtRegister, id, "")
	c.SendJSON(Envelope{T: MsgRegistered, Data: AuthReply{Username: c.username, Token: token}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.db == nil {
		c.sendError("accounts disabled")
		return
	}
	if c.roomID != "" {
		c.sendError("leave room first")
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authPlayerID = id
	c.username = msg.Username
	c.hub.analytics.Track(EvtLogin, id, "")
	c.SendJSON(Envelope{T: MsgLoggedIn, Data: AuthReply{Username: c.username, Token: token}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.roomID != "" {
		c.sendError("leave room first")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	c.authPlayerID = id
	c.username = username
	c.SendJSON(Envelope{T: MsgAuthed, Data: AuthReply{Username: username}})
}
