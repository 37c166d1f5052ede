package main

// World sanity bounds for client-reported positions. The server does not
// validate geometry beyond keeping coordinates inside the playable volume.
const (
	WorldExtent    = 120.0 // half-width of the ground plane on X/Z
	WorldMaxHeight = 60.0
)

// Arena describes the server-relevant parts of a map: spawn points per
// team and bomb sites. Visual geometry lives entirely client-side.
type Arena struct {
	ID          string
	Name        string
	SpawnsA     []Vec3
	SpawnsB     []Vec3
	BombSites   []Vec3
	Description string
}

// ArenaCatalog lists the playable maps
var ArenaCatalog = []Arena{
	{
		ID:   "haven",
		Name: "Haven",
		SpawnsA: []Vec3{
			{X: -40, Y: 0, Z: -45}, {X: -36, Y: 0, Z: -45}, {X: -44, Y: 0, Z: -41},
			{X: -40, Y: 0, Z: -38}, {X: -36, Y: 0, Z: -41},
		},
		SpawnsB: []Vec3{
			{X: 40, Y: 0, Z: 45}, {X: 36, Y: 0, Z: 45}, {X: 44, Y: 0, Z: 41},
			{X: 40, Y: 0, Z: 38}, {X: 36, Y: 0, Z: 41},
		},
		BombSites:   []Vec3{{X: -25, Y: 0, Z: 20}, {X: 0, Y: 0, Z: 30}, {X: 25, Y: 0, Z: 20}},
		Description: "Three-site map",
	},
	{
		ID:   "bind",
		Name: "Bind",
		SpawnsA: []Vec3{
			{X: -35, Y: 0, Z: -40}, {X: -31, Y: 0, Z: -40}, {X: -39, Y: 0, Z: -36},
			{X: -35, Y: 0, Z: -33}, {X: -31, Y: 0, Z: -36},
		},
		SpawnsB: []Vec3{
			{X: 35, Y: 0, Z: 40}, {X: 31, Y: 0, Z: 40}, {X: 39, Y: 0, Z: 36},
			{X: 35, Y: 0, Z: 33}, {X: 31, Y: 0, Z: 36},
		},
		BombSites:   []Vec3{{X: -20, Y: 0, Z: 15}, {X: 20, Y: 0, Z: 15}},
		Description: "Two-site map with teleporters",
	},
	{
		ID:   "range",
		Name: "Training Range",
		SpawnsA: []Vec3{
			{X: 0, Y: 0, Z: -10}, {X: 4, Y: 0, Z: -10}, {X: -4, Y: 0, Z: -10},
		},
		SpawnsB: []Vec3{
			{X: 0, Y: 0, Z: 15}, {X: 5, Y: 0, Z: 15}, {X: -5, Y: 0, Z: 15},
		},
		Description: "Single-player training range",
	},
}

// ArenaByID provides O(1) lookup
var ArenaByID map[string]*Arena

func init() {
	ArenaByID = make(map[string]*Arena, len(ArenaCatalog))
	for i := range ArenaCatalog {
		ArenaByID[ArenaCatalog[i].ID] = &ArenaCatalog[i]
	}
}

// DefaultArena returns the arena used for the given mode
func DefaultArena(mode GameMode) *Arena {
	if mode == ModeTraining {
		return ArenaByID["range"]
	}
	return ArenaByID["haven"]
}

// SpawnPoint returns a spawn-style point for the team, cycling through the
// configured list with a small per-call jitter so stacked spawns spread out.
func (a *Arena) SpawnPoint(team string, n int) Vec3 {
	spawns := a.SpawnsA
	if team == TeamB {
		spawns = a.SpawnsB
	}
	if len(spawns) == 0 {
		return Vec3{}
	}
	p := spawns[n%len(spawns)]
	p.X += float64(n/len(spawns)) * 1.5
	return p
}

// ClampToWorld keeps a client-reported position inside the playable volume
func ClampToWorld(p Vec3) Vec3 {
	return Vec3{
		X: Clamp(p.X, -WorldExtent, WorldExtent),
		Y: Clamp(p.Y, 0, WorldMaxHeight),
		Z: Clamp(p.Z, -WorldExtent, WorldExtent),
	}
}
