package main

import (
	"log"
	"sync"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and routes them to match rooms
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	registry   *Registry

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	db        *DB
	auth      *Auth
	analytics *Analytics
}

// NewHub creates a Hub. db may be nil (accounts disabled, guests only).
func NewHub(db *DB) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		registry:   NewRegistry(),
		ipConns:    make(map[string]int),
		db:         db,
		auth:       NewAuth(db),
		analytics:  NewAnalytics(db),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events. A dropped connection runs the
// identical leave path a voluntary leaveRoom takes — disconnect is a
// first-class event, not an error.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.analytics.Track(EvtConnect, client.authPlayerID, "")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if client.roomID != "" {
				h.registry.Leave(client.roomID, client.username)
				client.roomID = ""
			}
			h.analytics.Track(EvtDisconnect, client.authPlayerID, "")
		}
	}
}

// persistGameResult folds a finished game into career aggregates for
// every authenticated member still present. The caller holds the room
// lock, so the game state is snapshotted here and the database writes
// run on their own goroutine — no match-engine path blocks on I/O.
func (h *Hub) persistGameResult(res WinResult, g *Game) {
	h.analytics.Track(EvtMatchEnd, 0, "")
	if h.db == nil {
		return
	}

	type matchRow struct {
		playerID int64
		kills    int
		won      bool
	}
	var rows []matchRow
	h.mu.RLock()
	for c := range h.clients {
		if c.authPlayerID == 0 {
			continue
		}
		p, ok := g.Players[c.username]
		if !ok {
			continue
		}
		rows = append(rows, matchRow{
			playerID: c.authPlayerID,
			kills:    p.Kills,
			won:      p.Team == res.Winner || c.username == res.Winner,
		})
	}
	h.mu.RUnlock()

	if len(rows) == 0 {
		return
	}
	go func() {
		for _, row := range rows {
			if err := h.db.AddMatchResult(row.playerID, row.kills, row.won); err != nil {
				log.Printf("persist match result: %v", err)
			}
		}
	}()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
