package main

// Economy constants. All grants are pure functions of current balance and
// this table — no randomness, fully replayable.
const (
	StartMoney    = 800
	KillReward    = 200
	WinReward     = 3000
	LossReward    = 1900
	LossIncrement = 500
	MaxMoney      = 9000
	MaxLossStreak = 4 // streak scaling stops growing past this
)

// ApplyRoundOutcome grants round-end money to every player. Winners get the
// fixed win reward and a reset streak; losers (or everyone, on a draw with
// winningTeam == "") get the loss reward scaled by their current streak,
// then their streak advances.
func ApplyRoundOutcome(players map[string]*PlayerState, winningTeam string) {
	for _, p := range players {
		if winningTeam != "" && p.Team == winningTeam {
			p.Money = ClampInt(p.Money+WinReward, 0, MaxMoney)
			p.LossStreak = 0
			continue
		}
		bonus := LossReward + ClampInt(p.LossStreak, 0, MaxLossStreak)*LossIncrement
		p.Money = ClampInt(p.Money+bonus, 0, MaxMoney)
		p.LossStreak++
	}
}

// ApplyKillReward grants the fixed cross-team kill reward immediately
func ApplyKillReward(killer *PlayerState) {
	killer.Money = ClampInt(killer.Money+KillReward, 0, MaxMoney)
}

// PurchaseWeapon deducts the weapon price and equips it. The balance is
// untouched when the purchase is rejected.
func PurchaseWeapon(p *PlayerState, weaponID string) error {
	w, ok := WeaponByID[weaponID]
	if !ok {
		return reject("unknown_weapon")
	}
	if p.Money < w.Price {
		return reject("insufficient_funds")
	}
	p.Money -= w.Price
	p.Weapon = w.ID
	return nil
}
