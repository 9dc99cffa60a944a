// Package rules holds the pure combat and progression formulas. Everything
// here is a function of its arguments plus an injected random source, so the
// engine and the tests share one implementation.
package rules

import (
	"math"
	"math/rand"
	"time"
)

// Damage computes melee damage for one attack. The variance term rolls a
// uniform integer in [-2, 1]; the result is floored at 1 so an attack is
// never a no-op, no matter how lopsided the stats are.
func Damage(rng *rand.Rand, atkAttack, atkMight, defDefense, defFortitude int) int {
	base := 5 + atkAttack + atkMight*3
	mitigation := defDefense + defFortitude*2
	variance := rng.Intn(4) - 2 // -2..1
	dmg := base - mitigation + variance
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// Cooldown scales a base cooldown by agility. Each agility level shaves 8%,
// capped at 50% of base regardless of how high agility goes.
func Cooldown(base time.Duration, agility int) time.Duration {
	reduction := float64(agility) * 0.08
	if reduction > 0.50 {
		reduction = 0.50
	}
	return time.Duration(float64(base) * (1 - reduction))
}

// VisionRange is the Chebyshev radius an agent can observe.
func VisionRange(perception int) int {
	return 5 + perception*2
}

// GatherBonus multiplies both gather yield and gather XP.
func GatherBonus(harvesting int) int {
	return 1 + harvesting
}

// XPToLevel is the XP threshold to advance from the given level to the next:
// floor(100 * 1.5^(level-1)). Strictly increasing.
func XPToLevel(level int) int {
	return int(math.Floor(100 * math.Pow(1.5, float64(level-1))))
}
