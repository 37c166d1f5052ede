package main

import (
	"math"
	"time"
)

const (
	BotVisionRange     = 20.0 // sight range for target acquisition
	BotAttackRange     = 25.0 // shooting range
	BotAttackInterval  = time.Second
	BotMoveSpeed       = 3.0 // units per second
	BotTickInterval    = 250 * time.Millisecond
	BotArriveTolerance = 2.0
	BotWeapon          = "classic"
)

// Bot behavior states
const (
	BotPatrolling = "PATROLLING"
	BotAttacking  = "ATTACKING"
)

var botNames = []string{"Reyna", "Jett", "Sova", "Brimstone", "Viper", "Cypher", "Sage", "Omen"}

// Bot is an autonomous agent driving one player identity. It reads and
// mutates the shared game state through the same mutation surface human
// events use, so the state machine cannot tell bots and humans apart.
type Bot struct {
	Identity   string
	State      string
	Target     string // current target identity, "" when none
	LastAttack time.Time
	PatrolDest *Vec3
}

// NewBot creates a bot agent for the given identity
func NewBot(identity string) *Bot {
	return &Bot{Identity: identity, State: BotPatrolling}
}

// BotName returns a display name for the nth bot in a room
func BotName(n int) string {
	base := botNames[n%len(botNames)]
	if n < len(botNames) {
		return "Bot_" + base
	}
	return "Bot_" + base + GenerateID(1)
}

// Tick runs one decision cycle. The caller holds the room lock and applies
// attacks through the same damage path a human hit takes. Dead bots skip
// all logic until the room's respawn mechanism revives them.
func (b *Bot) Tick(g *Game, now time.Time, attack func(bot, target string, damage int)) {
	self, ok := g.Players[b.Identity]
	if !ok || !self.IsAlive {
		return
	}

	b.acquireTarget(g, self)

	switch b.State {
	case BotPatrolling:
		b.patrol(g, self)
	case BotAttacking:
		b.engage(g, self, now, attack)
	}
}

// acquireTarget re-scans all living opposing players within vision range
// and locks onto the nearest. Losing every target drops the bot back to
// patrol with a cleared destination, forcing a fresh patrol point.
func (b *Bot) acquireTarget(g *Game, self *PlayerState) {
	best := ""
	bestDist := BotVisionRange
	for identity, p := range g.Players {
		if identity == b.Identity || !p.IsAlive || p.Team == self.Team {
			continue
		}
		d := GroundDistance(self.Position, p.Position)
		if d < bestDist {
			bestDist = d
			best = identity
		}
	}

	if best != "" {
		b.Target = best
		b.State = BotAttacking
		return
	}
	if b.State == BotAttacking {
		b.State = BotPatrolling
		b.Target = ""
		b.PatrolDest = nil
	}
}

func (b *Bot) patrol(g *Game, self *PlayerState) {
	if b.PatrolDest == nil || GroundDistance(self.Position, *b.PatrolDest) < BotArriveTolerance {
		dest := g.nextSpawn(self.Team)
		b.PatrolDest = &dest
	}
	b.moveTowards(self, *b.PatrolDest)
}

func (b *Bot) engage(g *Game, self *PlayerState, now time.Time, attack func(bot, target string, damage int)) {
	target, ok := g.Players[b.Target]
	if !ok || !target.IsAlive {
		b.State = BotPatrolling
		b.Target = ""
		return
	}

	if GroundDistance(self.Position, target.Position) > BotAttackRange {
		b.moveTowards(self, target.Position)
	}

	if now.Sub(b.LastAttack) >= BotAttackInterval {
		b.LastAttack = now
		attack(b.Identity, b.Target, WeaponByID[BotWeapon].Damage)
	}
}

// moveTowards advances one tick toward dest on the ground plane at fixed
// speed and faces the movement direction. No-ops when already close.
func (b *Bot) moveTowards(self *PlayerState, dest Vec3) {
	dx := dest.X - self.Position.X
	dz := dest.Z - self.Position.Z
	length := math.Sqrt(dx*dx + dz*dz)
	if length < 1 {
		return
	}

	step := BotMoveSpeed * BotTickInterval.Seconds()
	self.Position.X += dx / length * step
	self.Position.Z += dz / length * step
	self.Position = ClampToWorld(self.Position)
	self.Orientation = Vec3{Y: math.Atan2(dx, dz)}
}
