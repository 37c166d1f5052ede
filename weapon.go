package main

import "time"

// WeaponType categories, used by the buy menu and loadout rules
const (
	WeaponPistol = "pistol"
	WeaponRifle  = "rifle"
	WeaponMelee  = "melee"
)

// Weapon describes one purchasable weapon. Damage is what clients report
// per hit; the server only enforces the fire interval (see CooldownGuard).
type Weapon struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Damage       int           `json:"damage"`
	FireInterval time.Duration `json:"-"`
	MagazineSize int           `json:"magazineSize"`
	Price        int           `json:"price"`
	Silenced     bool          `json:"silenced,omitempty"`
}

// WeaponCatalog is the full list of weapons
var WeaponCatalog = []Weapon{
	{ID: "classic", Name: "Classic", Type: WeaponPistol, Damage: 26, FireInterval: 148 * time.Millisecond, MagazineSize: 12, Price: 0},
	{ID: "ghost", Name: "Ghost", Type: WeaponPistol, Damage: 30, FireInterval: 148 * time.Millisecond, MagazineSize: 15, Price: 500, Silenced: true},
	{ID: "vandal", Name: "Vandal", Type: WeaponRifle, Damage: 40, FireInterval: 102 * time.Millisecond, MagazineSize: 25, Price: 2900},
	{ID: "phantom", Name: "Phantom", Type: WeaponRifle, Damage: 35, FireInterval: 90 * time.Millisecond, MagazineSize: 30, Price: 2900, Silenced: true},
	{ID: "knife", Name: "Knife", Type: WeaponMelee, Damage: 50, FireInterval: 600 * time.Millisecond, MagazineSize: 1, Price: 0},
}

// WeaponByID provides O(1) lookup by weapon ID
var WeaponByID map[string]Weapon

func init() {
	WeaponByID = make(map[string]Weapon, len(WeaponCatalog))
	for _, w := range WeaponCatalog {
		WeaponByID[w.ID] = w
	}
}

// CooldownGuard is the per-player, per-weapon last-fire ledger. It enforces
// temporal rate limiting and nothing else: weapon ownership and ammunition
// stay client-trusted in this design. Entries are never pruned — one per
// active player per owned weapon type is an acceptable ceiling.
//
// Not safe for concurrent use; callers hold the owning room's lock.
type CooldownGuard struct {
	lastFire map[string]map[string]time.Time
}

// NewCooldownGuard creates an empty guard
func NewCooldownGuard() *CooldownGuard {
	return &CooldownGuard{lastFire: make(map[string]map[string]time.Time)}
}

// CanFire reports whether the fire interval has elapsed since the last
// recorded shot for (identity, weaponID). A weapon never fired is allowed.
func (g *CooldownGuard) CanFire(identity, weaponID string, interval time.Duration, now time.Time) bool {
	byWeapon, ok := g.lastFire[identity]
	if !ok {
		return true
	}
	last, ok := byWeapon[weaponID]
	if !ok {
		return true
	}
	return now.Sub(last) >= interval
}

// RecordFire unconditionally overwrites the last-fire timestamp
func (g *CooldownGuard) RecordFire(identity, weaponID string, now time.Time) {
	byWeapon, ok := g.lastFire[identity]
	if !ok {
		byWeapon = make(map[string]time.Time)
		g.lastFire[identity] = byWeapon
	}
	byWeapon[weaponID] = now
}
