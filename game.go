package main

import "time"

// GameMode selects the rule set for a room
type GameMode string

const (
	ModeSkirmish   GameMode = "skirmish"
	ModeObjective  GameMode = "teamObjective"
	ModeDeathmatch GameMode = "deathmatch"
	ModeTraining   GameMode = "training"
)

// Team identifiers. In deathmatch every player's team is their own
// identity, so cross-team checks double as "anyone but me".
const (
	TeamA = "teamA"
	TeamB = "teamB"
)

// GamePhase is the round life-cycle state
type GamePhase int

const (
	PhasePreRound GamePhase = iota
	PhaseRoundActive
	PhaseRoundResolved
	PhaseGameOver
)

func (p GamePhase) String() string {
	switch p {
	case PhasePreRound:
		return "PRE_ROUND"
	case PhaseRoundActive:
		return "ROUND_ACTIVE"
	case PhaseRoundResolved:
		return "ROUND_RESOLVED"
	case PhaseGameOver:
		return "GAME_OVER"
	default:
		return "UNKNOWN"
	}
}

// Win-condition reasons supplied by timer or defuse paths
const (
	ReasonElimination = "elimination"
	ReasonExpired     = "objective_expired"
	ReasonDefused     = "objective_defused"
	ReasonKillLimit   = "kill_limit"
	ReasonForfeit     = "forfeit"
)

// GameConfig holds the immutable per-room rule settings
type GameConfig struct {
	Mode       GameMode
	RoundLimit int
	KillLimit  int
}

// DefaultGameConfig returns the default limits for a mode
func DefaultGameConfig(mode GameMode) GameConfig {
	switch mode {
	case ModeDeathmatch:
		return GameConfig{Mode: mode, KillLimit: 20}
	case ModeTraining:
		return GameConfig{Mode: mode, RoundLimit: 3}
	default:
		return GameConfig{Mode: mode, RoundLimit: 10}
	}
}

// Score is the per-team round tally
type Score struct {
	TeamA int `json:"teamA" msgpack:"teamA"`
	TeamB int `json:"teamB" msgpack:"teamB"`
}

func (s Score) forTeam(team string) int {
	if team == TeamA {
		return s.TeamA
	}
	return s.TeamB
}

// Bomb is the objective-mode bomb state. The fuse handle is owned here so
// that every transition superseding it (defuse, round resolution, round
// start, room teardown) can cancel it in one place.
type Bomb struct {
	Planted  bool `json:"planted" msgpack:"planted"`
	Defused  bool `json:"defused" msgpack:"defused"`
	Position Vec3 `json:"position" msgpack:"position"`

	fuse *time.Timer
}

// WinResult describes a resolved round or a finished game
type WinResult struct {
	Kind   string `json:"kind"`   // "round" or "game"
	Winner string `json:"winner"` // team, player identity (deathmatch), or "" for a draw
	Reason string `json:"reason"`
	Score  Score  `json:"score"`
}

// Game is the authoritative state for one room. It is exclusively owned by
// its Room; every method assumes the room lock is held, so the state
// machine itself needs no locking.
type Game struct {
	Mode       GameMode
	RoundLimit int
	KillLimit  int

	Phase   GamePhase
	Round   int
	Score   Score
	Members []string // join order
	Teams   map[string]string
	Players map[string]*PlayerState
	Bomb    *Bomb

	arena    *Arena
	cooldown *CooldownGuard
	spawnSeq map[string]int

	// roundResolved makes win evaluation idempotent: a kill and an
	// expiring fuse may both try to resolve the same round.
	roundResolved bool
}

// NewGame creates a game in PRE_ROUND with no round started
func NewGame(cfg GameConfig) *Game {
	return &Game{
		Mode:       cfg.Mode,
		RoundLimit: cfg.RoundLimit,
		KillLimit:  cfg.KillLimit,
		Teams:      make(map[string]string),
		Players:    make(map[string]*PlayerState),
		arena:      DefaultArena(cfg.Mode),
		cooldown:   NewCooldownGuard(),
		spawnSeq:   make(map[string]int),
	}
}

// AddMember appends an identity preserving join order
func (g *Game) AddMember(identity string) {
	for _, m := range g.Members {
		if m == identity {
			return
		}
	}
	g.Members = append(g.Members, identity)
}

// RemoveMember drops an identity from membership, team assignment and the
// live player table in one step.
func (g *Game) RemoveMember(identity string) {
	for i, m := range g.Members {
		if m == identity {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			break
		}
	}
	delete(g.Teams, identity)
	delete(g.Players, identity)
}

// HasMember reports whether the identity belongs to this game
func (g *Game) HasMember(identity string) bool {
	for _, m := range g.Members {
		if m == identity {
			return true
		}
	}
	return false
}

// StartRound begins a round. On the first round it assigns teams to any
// identity lacking one and zeroes the score; every round it resets player
// position/health/alive (kills, money and loss streak carry over) and
// re-arms the bomb slot in objective mode.
func (g *Game) StartRound(first bool) {
	if first {
		g.Round = 1
		g.Score = Score{}
		g.assignTeams()
	} else {
		g.Round++
	}

	g.DisarmBomb()
	if g.Mode == ModeObjective {
		g.Bomb = &Bomb{}
	} else {
		g.Bomb = nil
	}

	g.spawnSeq = make(map[string]int)
	for _, identity := range g.Members {
		team := g.Teams[identity]
		spawn := g.nextSpawn(team)
		if p, ok := g.Players[identity]; ok {
			p.ResetForRound(spawn)
			p.Team = team
		} else {
			g.Players[identity] = NewPlayerState(team, spawn)
		}
	}

	g.roundResolved = false
	g.Phase = PhaseRoundActive
}

// assignTeams balances unassigned identities onto the smaller team, ties
// toward team A. Deathmatch players each form their own one-man team.
func (g *Game) assignTeams() {
	if g.Mode == ModeDeathmatch {
		for _, identity := range g.Members {
			g.Teams[identity] = identity
		}
		return
	}
	a, b := 0, 0
	for _, t := range g.Teams {
		switch t {
		case TeamA:
			a++
		case TeamB:
			b++
		}
	}
	for _, identity := range g.Members {
		if _, ok := g.Teams[identity]; ok {
			continue
		}
		if a <= b {
			g.Teams[identity] = TeamA
			a++
		} else {
			g.Teams[identity] = TeamB
			b++
		}
	}
}

func (g *Game) nextSpawn(team string) Vec3 {
	key := team
	if g.Mode == ModeDeathmatch {
		key = "dm"
	}
	n := g.spawnSeq[key]
	g.spawnSeq[key] = n + 1
	if g.Mode == ModeDeathmatch && n%2 == 1 {
		// alternate sides so deathmatch players spread across the map
		return g.arena.SpawnPoint(TeamB, n/2)
	}
	return g.arena.SpawnPoint(team, n)
}

// ApplyDamage subtracts health from the target, clamping at zero. It is a
// no-op for absent or already-dead targets, so duplicate delivery of the
// same hit is harmless. Returns true when this call killed the target;
// the caller is responsible for invoking kill resolution.
func (g *Game) ApplyDamage(target string, amount int) bool {
	p, ok := g.Players[target]
	if !ok || !p.IsAlive || amount <= 0 {
		return false
	}
	p.Health -= amount
	if p.Health <= 0 {
		p.Health = 0
		p.IsAlive = false
		return true
	}
	return false
}

// ResolveKill credits a kill exactly once per victim life. Kill count and
// reward apply only across teams — no self or team credit. In deathmatch
// it checks the kill-limit termination; in team modes it evaluates the
// round win condition. Returns the resulting outcome, if any.
func (g *Game) ResolveKill(killer, victim string) *WinResult {
	v, ok := g.Players[victim]
	if !ok || v.deathHandled {
		return nil
	}
	v.deathHandled = true
	v.IsAlive = false

	k, ok := g.Players[killer]
	if ok && killer != victim && k.Team != v.Team {
		k.Kills++
		ApplyKillReward(k)
	}

	if g.Mode == ModeDeathmatch {
		if ok && g.KillLimit > 0 && k.Kills >= g.KillLimit {
			g.Phase = PhaseGameOver
			return &WinResult{Kind: "game", Winner: killer, Reason: ReasonKillLimit, Score: g.Score}
		}
		return nil
	}
	return g.EvaluateWinCondition("")
}

// PlantBomb arms the objective. Attacking team only, once per round.
func (g *Game) PlantBomb(identity string, position Vec3) error {
	if g.Mode != ModeObjective || g.Bomb == nil {
		return reject("not_objective_mode")
	}
	if g.Phase != PhaseRoundActive {
		return reject("round_not_active")
	}
	p, ok := g.Players[identity]
	if !ok || !p.IsAlive {
		return reject("player_invalid")
	}
	if p.Team != TeamA {
		return reject("wrong_team")
	}
	if g.Bomb.Planted {
		return reject("already_planted")
	}
	g.Bomb.Planted = true
	g.Bomb.Position = ClampToWorld(position)
	return nil
}

// DefuseBomb marks the bomb defused. Defending team only, and only while
// an armed bomb is outstanding. The caller cancels the fuse and evaluates
// the win condition with ReasonDefused.
func (g *Game) DefuseBomb(identity string) error {
	if g.Mode != ModeObjective || g.Bomb == nil {
		return reject("not_objective_mode")
	}
	if !g.Bomb.Planted || g.Bomb.Defused {
		return reject("not_planted")
	}
	p, ok := g.Players[identity]
	if !ok || !p.IsAlive {
		return reject("player_invalid")
	}
	if p.Team != TeamB {
		return reject("wrong_team")
	}
	g.Bomb.Defused = true
	return nil
}

// ArmFuse stores the cancellable fuse handle on the bomb
func (g *Game) ArmFuse(t *time.Timer) {
	if g.Bomb != nil {
		g.Bomb.fuse = t
	}
}

// DisarmBomb cancels any outstanding fuse timer. Safe to call redundantly.
func (g *Game) DisarmBomb() {
	if g.Bomb != nil && g.Bomb.fuse != nil {
		g.Bomb.fuse.Stop()
		g.Bomb.fuse = nil
	}
}

// EvaluateWinCondition checks team-mode round termination. It acts at most
// once per round: redundant calls (a kill racing an expiring fuse, or a
// disconnect racing both) observe roundResolved and return nil. A reason
// forces the corresponding winner; otherwise a team with zero alive
// players loses, and a simultaneous double-elimination is a draw in which
// both teams take the loss-side economy outcome with no score change.
func (g *Game) EvaluateWinCondition(reason string) *WinResult {
	if g.Mode == ModeDeathmatch {
		return nil // deathmatch terminates on kill count, checked at kill time
	}
	if g.Phase != PhaseRoundActive || g.roundResolved {
		return nil
	}

	aliveA, aliveB := g.aliveCounts()
	var winner string
	switch {
	case reason == ReasonExpired:
		winner = TeamA
	case reason == ReasonDefused:
		winner = TeamB
	case aliveB == 0 && aliveA > 0:
		winner = TeamA
		reason = ReasonElimination
	case aliveA == 0 && aliveB > 0:
		winner = TeamB
		reason = ReasonElimination
	case aliveA == 0 && aliveB == 0:
		winner = ""
		reason = ReasonElimination
	default:
		return nil
	}

	g.roundResolved = true
	g.Phase = PhaseRoundResolved
	g.DisarmBomb()

	if winner != "" {
		if winner == TeamA {
			g.Score.TeamA++
		} else {
			g.Score.TeamB++
		}
	}
	ApplyRoundOutcome(g.Players, winner)

	if winner != "" && g.RoundLimit > 0 && g.Score.forTeam(winner) >= g.RoundLimit {
		g.Phase = PhaseGameOver
		return &WinResult{Kind: "game", Winner: winner, Reason: reason, Score: g.Score}
	}
	return &WinResult{Kind: "round", Winner: winner, Reason: reason, Score: g.Score}
}

// SwitchTeam flips an identity's team assignment. Disallowed in deathmatch.
// The live PlayerState mirrors the change when present.
func (g *Game) SwitchTeam(identity string) (string, error) {
	if g.Mode == ModeDeathmatch {
		return "", reject("no_teams_in_deathmatch")
	}
	if !g.HasMember(identity) {
		return "", reject("player_invalid")
	}
	next := TeamA
	if g.Teams[identity] == TeamA {
		next = TeamB
	}
	g.Teams[identity] = next
	if p, ok := g.Players[identity]; ok {
		p.Team = next
	}
	return next, nil
}

// RespawnPlayer revives a dead player in place (deathmatch respawns).
// Round state is untouched.
func (g *Game) RespawnPlayer(identity string) bool {
	p, ok := g.Players[identity]
	if !ok || p.IsAlive {
		return false
	}
	p.Revive(g.nextSpawn(p.Team))
	return true
}

// MovePlayer applies a client-reported position/orientation. Last write
// wins; dead players cannot move.
func (g *Game) MovePlayer(identity string, position, orientation Vec3) bool {
	p, ok := g.Players[identity]
	if !ok || !p.IsAlive {
		return false
	}
	p.Position = ClampToWorld(position)
	p.Orientation = orientation
	return true
}

func (g *Game) aliveCounts() (a, b int) {
	for _, p := range g.Players {
		if !p.IsAlive {
			continue
		}
		switch p.Team {
		case TeamA:
			a++
		case TeamB:
			b++
		}
	}
	return a, b
}

// AliveOnTeam returns the living player count for a team
func (g *Game) AliveOnTeam(team string) int {
	n := 0
	for _, p := range g.Players {
		if p.IsAlive && p.Team == team {
			n++
		}
	}
	return n
}

// RejectionError reports a validation failure back to the originating
// caller. Game state is never touched when one is returned.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func reject(reason string) error { return &RejectionError{Reason: reason} }
