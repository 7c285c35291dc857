// Package worldgen derives the content of a tile from the world seed, the world
// ID and the tile coordinate. Generation is pure: no state survives a call, so
// it is safe to call from any number of goroutines.
package worldgen

import (
	"slices"
	"strconv"

	"github.com/mirage/server/internal/ringmap"
)

// Biome is the terrain type of a chunk.
type Biome string

const (
	BiomeRustDesert  Biome = "rust-desert"
	BiomeAshenPlain  Biome = "ashen-plain"
	BiomeVineThicket Biome = "vine-thicket"
	BiomeCrystalSalt Biome = "crystal-salt"
)

// Biomes lists every biome in draw order. Reordering it changes every world.
var Biomes = [...]Biome{BiomeRustDesert, BiomeAshenPlain, BiomeVineThicket, BiomeCrystalSalt}

// MobType is the kind of hostile entity spawned in a chunk.
type MobType string

const (
	MobCrawler MobType = "crawler"
	MobScav    MobType = "scav"
)

// CrateTier is the loot bracket of a chunk.
type CrateTier string

const (
	CrateRingOuter CrateTier = "ring-outer"
	CrateRingMid   CrateTier = "ring-mid"
	CrateRingInner CrateTier = "ring-inner"
)

// StatDefense is the stat tag gating portals.
const StatDefense = "DEF"

const (
	minPortalRequirement = 5
	extraMobThreshold    = 0.7
	scavThreshold        = 0.5
	mobLevelSpread       = 3
)

// Mob is a hostile entity spawn.
type Mob struct {
	Type  MobType `json:"type"`
	Level int     `json:"level"`
}

// Requirement is a minimum stat needed to use a portal.
type Requirement struct {
	Stat string `json:"stat"`
	Min  int    `json:"min"`
}

// Portal lists what a player needs to pass through a chunk.
type Portal struct {
	Requires []Requirement `json:"requires"`
}

// Flags marks progression features of a chunk.
type Flags struct {
	BossGate          bool `json:"bossGate"`
	OnPathOfAscension bool `json:"onPathOfAscension"`
}

// Chunk is the generated content of one tile. It is a value: two chunks
// generated from the same inputs are equal field for field.
type Chunk struct {
	Belt      int       `json:"belt"`
	Biome     Biome     `json:"biome"`
	Mobs      []Mob     `json:"mobs"`
	CrateTier CrateTier `json:"crateTier"`
	Portal    Portal    `json:"portal"`
	Flags     Flags     `json:"flags"`
}

// Clone returns a copy that shares no slices with c.
func (c Chunk) Clone() Chunk {
	c.Mobs = slices.Clone(c.Mobs)
	c.Portal.Requires = slices.Clone(c.Portal.Requires)
	return c
}

// CrateTierForBelt maps a belt to its loot bracket.
func CrateTierForBelt(belt int) CrateTier {
	switch {
	case belt < 34:
		return CrateRingOuter
	case belt < 67:
		return CrateRingMid
	default:
		return CrateRingInner
	}
}

// PortalMinimum is the DEF needed to pass a portal in the given belt.
func PortalMinimum(belt int) int {
	return max(minPortalRequirement, belt*9/10)
}

// LocalSeed builds the per-tile seed string "seed:world:x,y:bBELT".
func LocalSeed(seed string, worldID int64, x, y, belt int) string {
	buf := make([]byte, 0, len(seed)+32)
	buf = append(buf, seed...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, worldID, 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(x), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(y), 10)
	buf = append(buf, ':', 'b')
	buf = strconv.AppendInt(buf, int64(belt), 10)
	return string(buf)
}

// GenerateChunk derives the chunk at (x, y) of world worldID on a map of the
// given size. Samples are drawn in a fixed order: biome, mob count, then type
// and level for each mob.
func GenerateChunk(worldID int64, x, y, size int, seed string) (Chunk, error) {
	belt, err := ringmap.BeltIndex(x, y, size, ringmap.DefaultBelts)
	if err != nil {
		return Chunk{}, err
	}

	rng := NewRNG(LocalSeed(seed, worldID, x, y, belt))

	biome := Biomes[rng.Intn(len(Biomes))]

	mobBase := belt/3 + 1
	mobCount := 1
	if rng.Next() > extraMobThreshold {
		mobCount++
	}
	mobs := make([]Mob, 0, mobCount)
	for i := 0; i < mobCount; i++ {
		mobType := MobCrawler
		if rng.Next() > scavThreshold {
			mobType = MobScav
		}
		mobs = append(mobs, Mob{
			Type:  mobType,
			Level: mobBase + rng.Intn(mobLevelSpread),
		})
	}

	eastX, err := ringmap.StepEast(x, size)
	if err != nil {
		return Chunk{}, err
	}
	eastBelt, err := ringmap.BeltIndex(eastX, y, size, ringmap.DefaultBelts)
	if err != nil {
		return Chunk{}, err
	}

	return Chunk{
		Belt:      belt,
		Biome:     biome,
		Mobs:      mobs,
		CrateTier: CrateTierForBelt(belt),
		Portal: Portal{
			Requires: []Requirement{{Stat: StatDefense, Min: PortalMinimum(belt)}},
		},
		Flags: Flags{
			BossGate:          eastBelt > belt,
			OnPathOfAscension: ringmap.IsOnPathOfAscension(x, y),
		},
	}, nil
}
