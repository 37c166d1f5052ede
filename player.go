package main

const (
	PlayerMaxHealth = 100
	DefaultWeapon   = "classic"
)

// Vec3 is a position or Euler orientation in world units
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// PlayerState is the authoritative per-player state for the current game.
// Position and orientation are client-reported (last write wins, sanity
// clamped); everything else is server-owned.
type PlayerState struct {
	Position    Vec3   `json:"position" msgpack:"position"`
	Orientation Vec3   `json:"rotation" msgpack:"rotation"`
	Health      int    `json:"health" msgpack:"health"`
	IsAlive     bool   `json:"isAlive" msgpack:"isAlive"`
	Team        string `json:"team" msgpack:"team"`
	Weapon      string `json:"weapon" msgpack:"weapon"`
	Kills       int    `json:"kills" msgpack:"kills"`
	Money       int    `json:"money" msgpack:"money"`
	LossStreak  int    `json:"-" msgpack:"-"`

	// deathHandled guards kill resolution: set once per life, cleared on
	// round start and respawn, so duplicate resolveKill calls for the
	// same death never double-credit.
	deathHandled bool
}

// NewPlayerState creates the state a player carries into their first round
func NewPlayerState(team string, spawn Vec3) *PlayerState {
	return &PlayerState{
		Position: spawn,
		Health:   PlayerMaxHealth,
		IsAlive:  true,
		Team:     team,
		Weapon:   DefaultWeapon,
		Money:    StartMoney,
	}
}

// ResetForRound restores round-start defaults. Kills, money, loss streak
// and the equipped weapon carry over between rounds.
func (p *PlayerState) ResetForRound(spawn Vec3) {
	p.Position = spawn
	p.Orientation = Vec3{}
	p.Health = PlayerMaxHealth
	p.IsAlive = true
	p.deathHandled = false
}

// Revive restores a dead player in place for deathmatch respawns
func (p *PlayerState) Revive(spawn Vec3) {
	p.Position = spawn
	p.Health = PlayerMaxHealth
	p.IsAlive = true
	p.deathHandled = false
}
