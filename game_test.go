package main

import (
	"fmt"
	"testing"
)

// newTeamGame builds a started game with n members in join order
func newTeamGame(cfg GameConfig, n int) *Game {
	g := NewGame(cfg)
	for i := 0; i < n; i++ {
		g.AddMember(fmt.Sprintf("player%d", i))
	}
	g.StartRound(true)
	return g
}

func killTeam(g *Game, team string) {
	for identity, p := range g.Players {
		if p.Team == team && p.IsAlive {
			g.ApplyDamage(identity, PlayerMaxHealth)
		}
	}
}

func TestTeamBalanceEvenSplit(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 6)

	a, b := 0, 0
	for _, team := range g.Teams {
		switch team {
		case TeamA:
			a++
		case TeamB:
			b++
		}
	}
	if a != 3 || b != 3 {
		t.Errorf("expected 3/3 split, got %d/%d", a, b)
	}
}

func TestTeamBalanceOddFavorsTeamA(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 5)

	a, b := 0, 0
	for _, team := range g.Teams {
		switch team {
		case TeamA:
			a++
		case TeamB:
			b++
		}
	}
	if a != 3 || b != 2 {
		t.Errorf("expected 3/2 split with team A never smaller, got %d/%d", a, b)
	}
}

func TestTeamAssignmentStableAcrossRounds(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 4)
	before := make(map[string]string, len(g.Teams))
	for identity, team := range g.Teams {
		before[identity] = team
	}

	killTeam(g, TeamB)
	g.EvaluateWinCondition("")
	g.StartRound(false)

	for identity, team := range g.Teams {
		if before[identity] != team {
			t.Errorf("team for %s changed from %s to %s across rounds", identity, before[identity], team)
		}
	}
}

func TestPlayersMatchTeamAssignment(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 5)
	for identity, p := range g.Players {
		if p.Team != g.Teams[identity] {
			t.Errorf("player %s team %q does not match assignment %q", identity, p.Team, g.Teams[identity])
		}
	}
}

func TestApplyDamageClampsAtZero(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 2)

	died := g.ApplyDamage("player0", 40)
	if died {
		t.Error("40 damage should not kill a full-health player")
	}
	if g.Players["player0"].Health != 60 {
		t.Errorf("expected health 60, got %d", g.Players["player0"].Health)
	}

	died = g.ApplyDamage("player0", 999)
	if !died {
		t.Error("999 damage should kill")
	}
	if g.Players["player0"].Health != 0 {
		t.Errorf("health must clamp at 0, got %d", g.Players["player0"].Health)
	}

	// Duplicate delivery of the killing hit is a no-op
	if g.ApplyDamage("player0", 50) {
		t.Error("damage to a dead player must not report a second death")
	}
}

func TestApplyDamageUnknownTarget(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 2)
	if g.ApplyDamage("ghost", 50) {
		t.Error("damage to an absent player must be a no-op")
	}
}

func TestResolveKillIdempotent(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeDeathmatch), 3)

	g.ApplyDamage("player1", PlayerMaxHealth)
	g.ResolveKill("player0", "player1")
	g.ResolveKill("player0", "player1")

	if kills := g.Players["player0"].Kills; kills != 1 {
		t.Errorf("duplicate resolveKill must credit exactly once, got %d", kills)
	}
}

func TestResolveKillNoTeamCredit(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 4)

	var killer, victim string
	for identity, p := range g.Players {
		if p.Team == TeamA {
			if killer == "" {
				killer = identity
			} else if victim == "" {
				victim = identity
			}
		}
	}

	g.ApplyDamage(victim, PlayerMaxHealth)
	g.ResolveKill(killer, victim)
	if g.Players[killer].Kills != 0 {
		t.Error("same-team kill must not be credited")
	}
}

func TestResolveKillNoSelfCredit(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeDeathmatch), 2)
	g.ApplyDamage("player0", PlayerMaxHealth)
	g.ResolveKill("player0", "player0")
	if g.Players["player0"].Kills != 0 {
		t.Error("self-kill must not be credited")
	}
}

func TestKillRewardOnCrossTeamKill(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 2)
	before := g.Players["player0"].Money

	g.ApplyDamage("player1", PlayerMaxHealth)
	g.ResolveKill("player0", "player1")

	// Round resolution also pays out; the kill reward lands first and the
	// win reward stacks on top for the surviving side.
	want := ClampInt(before+KillReward+WinReward, 0, MaxMoney)
	if got := g.Players["player0"].Money; got != want {
		t.Errorf("expected balance %d after kill + round win, got %d", want, got)
	}
}

func TestRoundThenGameTermination(t *testing.T) {
	cfg := GameConfig{Mode: ModeSkirmish, RoundLimit: 2}
	g := newTeamGame(cfg, 4)

	killTeam(g, TeamB)
	res := g.EvaluateWinCondition("")
	if res == nil || res.Kind != "round" || res.Winner != TeamA {
		t.Fatalf("expected round win for teamA, got %+v", res)
	}
	if g.Score.TeamA != 1 {
		t.Errorf("expected score 1, got %d", g.Score.TeamA)
	}

	g.StartRound(false)
	if g.Round != 2 {
		t.Errorf("startRound(false) must increment round, got %d", g.Round)
	}
	if g.Score.TeamA != 1 {
		t.Error("startRound(false) must not reset the score")
	}

	killTeam(g, TeamB)
	res = g.EvaluateWinCondition("")
	if res == nil || res.Kind != "game" || res.Winner != TeamA {
		t.Fatalf("expected game win for teamA at the round limit, got %+v", res)
	}
	if g.Phase != PhaseGameOver {
		t.Error("game must be over after reaching the round limit")
	}
}

func TestWinEvaluationActsOncePerRound(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 4)

	killTeam(g, TeamB)
	first := g.EvaluateWinCondition("")
	second := g.EvaluateWinCondition("")

	if first == nil {
		t.Fatal("expected an outcome from the first evaluation")
	}
	if second != nil {
		t.Errorf("redundant evaluation must not act twice, got %+v", second)
	}
	if g.Score.TeamA != 1 {
		t.Errorf("score must increment exactly once, got %d", g.Score.TeamA)
	}
}

func TestDoubleEliminationIsDraw(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 2)
	moneyBefore := g.Players["player0"].Money

	killTeam(g, TeamA)
	killTeam(g, TeamB)
	res := g.EvaluateWinCondition("")

	if res == nil || res.Kind != "round" || res.Winner != "" {
		t.Fatalf("expected a drawn round, got %+v", res)
	}
	if g.Score.TeamA != 0 || g.Score.TeamB != 0 {
		t.Error("a draw must not increment either score")
	}
	want := ClampInt(moneyBefore+LossReward, 0, MaxMoney)
	if got := g.Players["player0"].Money; got != want {
		t.Errorf("draw must pay the loss-side outcome, expected %d got %d", want, got)
	}
}

func TestDeathmatchKillLimit(t *testing.T) {
	cfg := GameConfig{Mode: ModeDeathmatch, KillLimit: 2}
	g := newTeamGame(cfg, 3)

	g.ApplyDamage("player1", PlayerMaxHealth)
	if res := g.ResolveKill("player0", "player1"); res != nil {
		t.Fatalf("expected no outcome below the kill limit, got %+v", res)
	}

	g.ApplyDamage("player2", PlayerMaxHealth)
	res := g.ResolveKill("player0", "player2")
	if res == nil || res.Kind != "game" || res.Winner != "player0" {
		t.Fatalf("expected game win at the kill limit, got %+v", res)
	}
}

func TestDeathmatchRespawnKeepsKills(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeDeathmatch), 2)

	g.ApplyDamage("player1", PlayerMaxHealth)
	g.ResolveKill("player0", "player1")

	if !g.RespawnPlayer("player1") {
		t.Fatal("dead player should respawn")
	}
	p := g.Players["player1"]
	if !p.IsAlive || p.Health != PlayerMaxHealth {
		t.Error("respawn must restore health and alive state")
	}
	if g.Players["player0"].Kills != 1 {
		t.Error("respawn must not touch the killer's count")
	}

	// The new life can be resolved again
	g.ApplyDamage("player1", PlayerMaxHealth)
	g.ResolveKill("player0", "player1")
	if g.Players["player0"].Kills != 2 {
		t.Errorf("kill in the new life must count, got %d", g.Players["player0"].Kills)
	}
}

func TestSwitchTeamRejectedInDeathmatch(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeDeathmatch), 2)
	if _, err := g.SwitchTeam("player0"); err == nil {
		t.Error("switchTeam must be rejected in deathmatch")
	}
}

func TestSwitchTeamMirrorsLivePlayer(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 2)

	was := g.Teams["player0"]
	team, err := g.SwitchTeam("player0")
	if err != nil {
		t.Fatalf("switchTeam: %v", err)
	}
	if team == was {
		t.Error("switchTeam must flip the assignment")
	}
	if g.Players["player0"].Team != team {
		t.Error("live player state must mirror the new team")
	}
}

func TestPlantRestrictedToAttackers(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeObjective), 4)

	var attacker, defender string
	for identity, p := range g.Players {
		if p.Team == TeamA && attacker == "" {
			attacker = identity
		}
		if p.Team == TeamB && defender == "" {
			defender = identity
		}
	}

	if err := g.PlantBomb(defender, Vec3{X: 1}); err == nil {
		t.Error("defenders must not plant")
	}
	if err := g.PlantBomb(attacker, Vec3{X: 1}); err != nil {
		t.Errorf("attacker plant rejected: %v", err)
	}
	if err := g.PlantBomb(attacker, Vec3{X: 2}); err == nil {
		t.Error("second plant in the same round must be rejected")
	}
	if !g.Bomb.Planted {
		t.Error("bomb should be planted")
	}
}

func TestDefuseRequiresPlantedBomb(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeObjective), 2)

	var defender string
	for identity, p := range g.Players {
		if p.Team == TeamB {
			defender = identity
		}
	}
	if err := g.DefuseBomb(defender); err == nil {
		t.Error("defuse before plant must be rejected")
	}
}

func TestBombResetEachRound(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeObjective), 2)

	var attacker string
	for identity, p := range g.Players {
		if p.Team == TeamA {
			attacker = identity
		}
	}
	if err := g.PlantBomb(attacker, Vec3{}); err != nil {
		t.Fatalf("plant: %v", err)
	}

	killTeam(g, TeamB)
	g.EvaluateWinCondition("")
	g.StartRound(false)

	if g.Bomb == nil || g.Bomb.Planted || g.Bomb.Defused {
		t.Error("bomb must reset to unplanted at round start")
	}
}

func TestGamePhaseString(t *testing.T) {
	want := map[GamePhase]string{
		PhasePreRound:      "PRE_ROUND",
		PhaseRoundActive:   "ROUND_ACTIVE",
		PhaseRoundResolved: "ROUND_RESOLVED",
		PhaseGameOver:      "GAME_OVER",
		GamePhase(99):      "UNKNOWN",
	}
	for phase, s := range want {
		if phase.String() != s {
			t.Errorf("phase %d: expected %q, got %q", int(phase), s, phase.String())
		}
	}
}

func TestMovePlayerClampsAndIgnoresDead(t *testing.T) {
	g := newTeamGame(DefaultGameConfig(ModeSkirmish), 2)

	g.MovePlayer("player0", Vec3{X: 9999, Y: -5, Z: -9999}, Vec3{Y: 1})
	p := g.Players["player0"]
	if p.Position.X != WorldExtent || p.Position.Y != 0 || p.Position.Z != -WorldExtent {
		t.Errorf("position must be sanity clamped, got %+v", p.Position)
	}

	g.ApplyDamage("player0", PlayerMaxHealth)
	if g.MovePlayer("player0", Vec3{X: 1}, Vec3{}) {
		t.Error("dead players must not move")
	}
}
