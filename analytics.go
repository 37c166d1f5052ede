package main

import (
	"log"
	"sync"
	"time"
)

// Telemetry event types
const (
	EvtConnect    = "connect"
	EvtDisconnect = "disconnect"
	EvtLogin      = "login"
	EvtRegister   = "register"
	EvtRoomCreate = "room_create"
	EvtMatchStart = "match_start"
	EvtMatchEnd   = "match_end"
)

// AnalyticsEvent is a single trackable event
type AnalyticsEvent struct {
	Type      string
	PlayerID  int64
	RoomID    string
	Timestamp time.Time
}

// Analytics batches telemetry events onto a background writer so tracking
// never blocks an event handler.
type Analytics struct {
	db     *DB
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewAnalytics creates and starts the background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, 1024),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event (non-blocking; drops when the buffer is full
// rather than stalling the caller).
func (a *Analytics) Track(evtType string, playerID int64, roomID string) {
	if a == nil {
		return
	}
	select {
	case a.events <- AnalyticsEvent{Type: evtType, PlayerID: playerID, RoomID: roomID, Timestamp: time.Now().UTC()}:
	default:
	}
}

func (a *Analytics) writer() {
	defer a.wg.Done()
	for {
		select {
		case evt := <-a.events:
			if a.db == nil {
				continue
			}
			if err := a.db.InsertEvent(evt.Type, evt.PlayerID, evt.RoomID, evt.Timestamp); err != nil {
				log.Printf("analytics write: %v", err)
			}
		case <-a.stop:
			// Drain whatever is still queued
			for {
				select {
				case evt := <-a.events:
					if a.db != nil {
						a.db.InsertEvent(evt.Type, evt.PlayerID, evt.RoomID, evt.Timestamp)
					}
				default:
					return
				}
			}
		}
	}
}

// Stop flushes pending events and stops the writer
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}
