package main

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	RoomCapacity      = 10
	MinPlayersToStart = 2
	BombFuseDuration  = 40 * time.Second
	RoundRestartDelay = 5 * time.Second
	RespawnDelay      = 3 * time.Second
)

// Sender delivers outbound messages to one room member
type Sender interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Room wraps one Game with its membership, its pending timers and its bot
// agents, and mediates between inbound transport events and game
// mutations. All mutation goes through the room lock, so events and timer
// callbacks touching the same game never interleave.
type Room struct {
	ID   string
	Mode GameMode
	Host string

	mu     sync.Mutex
	game   *Game
	closed bool

	senders map[string]Sender
	bots    map[string]*Bot
	stopCh  chan struct{}

	roundTimer    *time.Timer
	respawnTimers map[string]*time.Timer

	// OnGameEnd, when set, receives the final outcome and the per-player
	// kill tallies once per room lifetime.
	OnGameEnd func(res WinResult, game *Game)
}

// NewRoom creates a room with the host as its first member
func NewRoom(id, host string, cfg GameConfig) *Room {
	r := &Room{
		ID:            id,
		Mode:          cfg.Mode,
		Host:          host,
		game:          NewGame(cfg),
		senders:       make(map[string]Sender),
		bots:          make(map[string]*Bot),
		stopCh:        make(chan struct{}),
		respawnTimers: make(map[string]*time.Timer),
	}
	r.game.AddMember(host)
	return r
}

// AddMember appends an identity preserving join order. Rejects when the
// room is at capacity.
func (r *Room) AddMember(identity string, sender Sender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return reject("room_not_found")
	}
	if len(r.game.Members) >= RoomCapacity && !r.game.HasMember(identity) {
		return reject("room_full")
	}
	r.game.AddMember(identity)
	if sender != nil {
		r.senders[identity] = sender
	}
	return nil
}

// SetSender attaches the transport for an existing member
func (r *Room) SetSender(identity string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[identity] = sender
}

// AddBot adds a bot member and starts its decision loop
func (r *Room) AddBot() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.game.Members) >= RoomCapacity {
		return ""
	}
	identity := BotName(len(r.bots))
	bot := NewBot(identity)
	r.game.AddMember(identity)
	r.bots[identity] = bot
	go r.runBot(bot)
	return identity
}

// runBot drives one bot on a fixed cadence until the room closes. Each
// tick funnels through the same mutation surface human events use.
func (r *Room) runBot(bot *Bot) {
	ticker := time.NewTicker(BotTickInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			r.mu.Lock()
			if r.closed {
				r.mu.Unlock()
				return
			}
			if r.game.Phase == PhaseRoundActive {
				bot.Tick(r.game, now, r.applyHitLocked)
			}
			r.mu.Unlock()
		case <-r.stopCh:
			return
		}
	}
}

// RemoveMember removes an identity from membership and the live player
// table atomically, broadcasts the departure, and — when that leaves a
// team without a living member mid-round — runs the identical win
// evaluation a kill would. When no human member remains the room closes
// itself in the same critical section, so a concurrent join cannot slip
// in between the emptiness check and teardown. Returns the remaining
// human member count.
func (r *Room) RemoveMember(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game.HasMember(identity) {
		p := r.game.Players[identity]
		wasAlive := p != nil && p.IsAlive
		r.game.RemoveMember(identity)
		delete(r.senders, identity)
		if t, ok := r.respawnTimers[identity]; ok {
			t.Stop()
			delete(r.respawnTimers, identity)
		}

		r.broadcastLocked(Envelope{T: MsgDisconnected, Data: DisconnectedMsg{Identity: identity}})
		if wasAlive && r.game.Phase == PhaseRoundActive {
			r.handleOutcomeLocked(r.game.EvaluateWinCondition(""))
		}
	}

	n := r.humanCountLocked()
	if n == 0 {
		r.closeLocked()
	}
	return n
}

func (r *Room) humanCountLocked() int {
	n := 0
	for _, m := range r.game.Members {
		if _, isBot := r.bots[m]; !isBot {
			n++
		}
	}
	return n
}

// HumanCount returns the number of non-bot members
func (r *Room) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humanCountLocked()
}

// MemberCount returns the total member count including bots
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.game.Members)
}

// StartGame begins the first round. Host only, and only with enough
// members to form two sides.
func (r *Room) StartGame(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity != r.Host {
		return reject("not_host")
	}
	if len(r.game.Members) < MinPlayersToStart {
		return reject("need_more_players")
	}
	if r.game.Phase != PhasePreRound {
		return reject("already_started")
	}
	r.game.StartRound(true)
	r.broadcastRoundStartLocked()
	return nil
}

// HandlePlayerUpdate applies a client-reported transform and rebroadcasts
// it. Last write wins per identity.
func (r *Room) HandlePlayerUpdate(identity string, msg PlayerUpdateMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.game.MovePlayer(identity, msg.Position, msg.Orientation) {
		return
	}
	r.broadcastExceptLocked(identity, Envelope{T: MsgPlayerMoved, Data: PlayerMovedMsg{
		Identity:    identity,
		Position:    r.game.Players[identity].Position,
		Orientation: msg.Orientation,
	}})
}

// HandleShoot runs the fire-rate guard and rebroadcasts the shot on
// success. The guard is the only server-held invariant here: ammunition
// and ownership remain client-trusted.
func (r *Room) HandleShoot(identity string, msg ShootMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.game.Players[identity]
	if !ok || !p.IsAlive {
		return reject("player_invalid")
	}
	w, ok := WeaponByID[msg.WeaponID]
	if !ok {
		return reject("unknown_weapon")
	}
	now := time.Now()
	if !r.game.cooldown.CanFire(identity, w.ID, w.FireInterval, now) {
		return reject("cooldown")
	}
	r.game.cooldown.RecordFire(identity, w.ID, now)
	r.broadcastLocked(Envelope{T: MsgPlayerShot, Data: PlayerShotMsg{
		Identity: identity,
		Point:    msg.Point,
		WeaponID: w.ID,
	}})
	return nil
}

// HandleHit applies a claimed hit. The damage amount is accepted from the
// caller without geometry validation — a deliberate, documented trust
// boundary of this design.
func (r *Room) HandleHit(msg PlayerHitMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game.Phase != PhaseRoundActive {
		return
	}
	r.applyHitLocked(msg.Killer, msg.Target, msg.Damage)
}

// applyHitLocked is the single damage path shared by human hit events and
// bot attacks.
func (r *Room) applyHitLocked(killer, target string, damage int) {
	died := r.game.ApplyDamage(target, damage)
	r.broadcastSnapshotLocked()
	if !died {
		return
	}

	r.broadcastLocked(Envelope{T: MsgPlayerDied, Data: PlayerDiedMsg{Identity: target, Killer: killer}})
	res := r.game.ResolveKill(killer, target)
	r.broadcastLeaderboardLocked()

	if r.game.Mode == ModeDeathmatch && res == nil {
		r.scheduleRespawnLocked(target)
	}
	r.handleOutcomeLocked(res)
}

// HandlePlant arms the bomb and starts its fuse
func (r *Room) HandlePlant(identity string, position Vec3) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.game.PlantBomb(identity, position); err != nil {
		return err
	}
	round := r.game.Round
	r.game.ArmFuse(time.AfterFunc(BombFuseDuration, func() {
		r.bombFuseExpired(round)
	}))
	r.broadcastLocked(Envelope{T: MsgBombPlanted, Data: BombMsg{Identity: identity, Position: r.game.Bomb.Position}})
	return nil
}

// bombFuseExpired fires when the fuse ran to completion. A fuse cancelled
// by defuse or early round resolution must never produce an outcome, so
// the callback re-validates everything under the lock before acting.
func (r *Room) bombFuseExpired(round int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.game.Round != round || r.game.Phase != PhaseRoundActive {
		return
	}
	b := r.game.Bomb
	if b == nil || !b.Planted || b.Defused {
		return
	}
	r.handleOutcomeLocked(r.game.EvaluateWinCondition(ReasonExpired))
}

// HandleDefuse marks the bomb defused, cancels the fuse and resolves the
// round for the defenders.
func (r *Room) HandleDefuse(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.game.DefuseBomb(identity); err != nil {
		return err
	}
	r.game.DisarmBomb()
	r.broadcastLocked(Envelope{T: MsgBombDefused, Data: BombMsg{Identity: identity}})
	r.handleOutcomeLocked(r.game.EvaluateWinCondition(ReasonDefused))
	return nil
}

// HandleSwitchTeam flips the sender's team
func (r *Room) HandleSwitchTeam(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	team, err := r.game.SwitchTeam(identity)
	if err != nil {
		return err
	}
	r.broadcastLocked(Envelope{T: MsgTeamSwitched, Data: TeamSwitchedMsg{Identity: identity, Team: team}})
	return nil
}

// HandleBuy purchases and equips a weapon for the sender
func (r *Room) HandleBuy(identity, weaponID string) (MoneyUpdatedMsg, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.game.Players[identity]
	if !ok {
		return MoneyUpdatedMsg{}, reject("player_invalid")
	}
	if err := PurchaseWeapon(p, weaponID); err != nil {
		return MoneyUpdatedMsg{}, err
	}
	return MoneyUpdatedMsg{Money: p.Money, Weapon: p.Weapon}, nil
}

// handleOutcomeLocked broadcasts a win result and schedules the follow-up
// round when the game continues.
func (r *Room) handleOutcomeLocked(res *WinResult) {
	if res == nil {
		return
	}
	switch res.Kind {
	case "game":
		r.broadcastLocked(Envelope{T: MsgGameEnd, Data: GameEndMsg{Winner: res.Winner, Reason: res.Reason, Score: res.Score}})
		if r.OnGameEnd != nil {
			r.OnGameEnd(*res, r.game)
			r.OnGameEnd = nil
		}
	case "round":
		r.broadcastLocked(Envelope{T: MsgRoundEnd, Data: RoundEndMsg{Winner: res.Winner, Reason: res.Reason, Score: res.Score}})
		round := r.game.Round
		r.roundTimer = time.AfterFunc(RoundRestartDelay, func() {
			r.startNextRound(round)
		})
	}
}

// startNextRound fires after the round-transition delay. It re-validates
// under the lock so a room torn down (or restarted) in the meantime stays
// untouched.
func (r *Room) startNextRound(prevRound int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.game.Phase != PhaseRoundResolved || r.game.Round != prevRound {
		return
	}
	r.game.StartRound(false)
	r.broadcastRoundStartLocked()
}

// scheduleRespawnLocked arms a cancellable deathmatch respawn
func (r *Room) scheduleRespawnLocked(identity string) {
	if t, ok := r.respawnTimers[identity]; ok {
		t.Stop()
	}
	round := r.game.Round
	r.respawnTimers[identity] = time.AfterFunc(RespawnDelay, func() {
		r.respawn(identity, round)
	})
}

func (r *Room) respawn(identity string, round int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.respawnTimers, identity)
	if r.closed || r.game.Round != round || r.game.Phase != PhaseRoundActive {
		return
	}
	if !r.game.RespawnPlayer(identity) {
		return
	}
	r.broadcastLocked(Envelope{T: MsgRespawned, Data: RespawnedMsg{
		Identity: identity,
		Position: r.game.Players[identity].Position,
	}})
	r.broadcastSnapshotLocked()
}

// BroadcastPlayerList sends the membership roster to all members
func (r *Room) BroadcastPlayerList() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastPlayerListLocked()
}

func (r *Room) broadcastPlayerListLocked() {
	roster := make([]map[string]string, 0, len(r.game.Members))
	for _, m := range r.game.Members {
		roster = append(roster, map[string]string{"username": m, "team": r.game.Teams[m]})
	}
	r.broadcastLocked(Envelope{T: MsgUpdatePlayers, Data: roster})
}

func (r *Room) broadcastRoundStartLocked() {
	r.broadcastLocked(Envelope{T: MsgRoundStart, Data: RoundStartMsg{
		Round:   r.game.Round,
		Score:   r.game.Score,
		Mode:    string(r.game.Mode),
		Players: r.game.Players,
	}})
}

func (r *Room) broadcastLeaderboardLocked() {
	entries := make([]LeaderboardEntryMsg, 0, len(r.game.Players))
	for identity, p := range r.game.Players {
		entries = append(entries, LeaderboardEntryMsg{Identity: identity, Kills: p.Kills, Team: p.Team})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kills != entries[j].Kills {
			return entries[i].Kills > entries[j].Kills
		}
		return entries[i].Identity < entries[j].Identity
	})
	r.broadcastLocked(Envelope{T: MsgLeaderboard, Data: entries})
}

// broadcastSnapshotLocked sends the msgpack-encoded authoritative state
func (r *Room) broadcastSnapshotLocked() {
	snap := GameSnapshot{
		Round:   r.game.Round,
		Score:   r.game.Score,
		Players: r.game.Players,
		Bomb:    r.game.Bomb,
	}
	data, err := msgpack.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal: %v", err)
		return
	}
	for _, s := range r.senders {
		s.SendBinary(data)
	}
}

func (r *Room) broadcastLocked(msg Envelope) {
	for _, s := range r.senders {
		s.SendJSON(msg)
	}
}

func (r *Room) broadcastExceptLocked(skip string, msg Envelope) {
	for identity, s := range r.senders {
		if identity == skip {
			continue
		}
		s.SendJSON(msg)
	}
}

// Close cancels every pending timer and stops the bot loops. A cancelled
// timer must never mutate a future round's state; callbacks that already
// fired observe closed under the lock and bail.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	close(r.stopCh)
	r.game.DisarmBomb()
	if r.roundTimer != nil {
		r.roundTimer.Stop()
		r.roundTimer = nil
	}
	for identity, t := range r.respawnTimers {
		t.Stop()
		delete(r.respawnTimers, identity)
	}
}
