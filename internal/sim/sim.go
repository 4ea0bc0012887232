// Package sim is the host simulation contract: the tick and boost rules the
// authoritative client runs. The server never executes it for authority; it
// exists so snapshots, reference hosts and tests agree on the physics.
package sim

import (
	"math/rand/v2"
	"time"
)

// TrackLength is the finish-line position.
const TrackLength = 5000

// referenceFrame normalizes elapsed time so speeds mean the same thing at
// any tick rate.
const referenceFrame = 16 * time.Millisecond

// boostCap keeps boosts noticeable but medium intensity.
const boostCap = 2.4

// Personality holds a racer's fixed per-race quirks, drawn once when the
// roster is built.
type Personality struct {
	Variance   float64 // scales base speed and boosts, 0.9..1.1
	CritChance float64 // probability of a critical boost, 0.12..0.24
}

// DrawPersonality rolls fresh per-race quirks.
func DrawPersonality(rng *rand.Rand) Personality {
	return Personality{
		Variance:   0.9 + rng.Float64()*0.2,
		CritChance: 0.12 + rng.Float64()*0.12,
	}
}

// Racer is one participant's simulation state.
type Racer struct {
	ID         string
	Name       string
	ColorIndex int

	Position float64
	Speed    float64
	Finished bool
	Place    int

	Personality
}

// NewRacer builds a roster entry with zeroed race state and a freshly drawn
// personality. Hosts rebuild the whole roster from each lobby update, so
// personalities reroll with it; races in progress are unaffected because the
// lobby is closed to updates once the countdown starts.
func NewRacer(id, name string, colorIndex int, rng *rand.Rand) *Racer {
	return &Racer{
		ID:          id,
		Name:        name,
		ColorIndex:  colorIndex,
		Personality: DrawPersonality(rng),
	}
}

// Winner is the immutable record of the first finisher.
type Winner struct {
	ID         string
	Name       string
	ColorIndex int
}

// Engine advances a race. Not safe for concurrent use; the host loop owns it.
type Engine struct {
	rng         *rand.Rand
	finishOrder int
	winner      *Winner
}

// NewEngine creates an engine over the given randomness source.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{rng: rng, finishOrder: 1}
}

// Tick advances every unfinished racer by elapsed time. Speed decays 2%
// multiplicatively, gains a jittered baseline increment, and position moves
// by speed normalized to the 16ms reference frame. The first racer to cross
// the line is snapshotted as the winner, permanently.
func (e *Engine) Tick(racers []*Racer, elapsed time.Duration) {
	dt := float64(elapsed) / float64(referenceFrame)
	for _, r := range racers {
		if r.Finished {
			continue
		}

		r.Speed *= 0.98
		jitter := 0.9 + e.rng.Float64()*0.2
		r.Speed += (0.02 + e.rng.Float64()*0.06) * r.Variance * jitter
		r.Position += r.Speed * dt

		if r.Position >= TrackLength {
			r.Finished = true
			r.Place = e.finishOrder
			e.finishOrder++
			if e.winner == nil {
				e.winner = &Winner{ID: r.ID, Name: r.Name, ColorIndex: r.ColorIndex}
			}
		}
	}
}

// Boost applies one accepted boost directive. The increment combines the
// racer's variance with fresh swing and chaos rolls and an occasional
// critical multiplier, capped at 2.4 speed units. Finished racers ignore
// boosts.
func (e *Engine) Boost(r *Racer) {
	if r.Finished {
		return
	}

	swing := 0.8 + e.rng.Float64()*0.6
	chaos := 0.9 + e.rng.Float64()*0.3
	crit := 1.0
	if e.rng.Float64() < r.CritChance {
		crit = 1.35 + e.rng.Float64()*0.25
	}

	amount := (0.8 + e.rng.Float64()*0.4) * r.Variance * swing * chaos * crit
	if amount > boostCap {
		amount = boostCap
	}
	r.Speed += amount
}

// Winner returns the first finisher, if any. The returned value never
// changes once set, regardless of later roster mutations.
func (e *Engine) Winner() (Winner, bool) {
	if e.winner == nil {
		return Winner{}, false
	}
	return *e.winner, true
}

// Finished reports whether every racer has crossed the line.
func Finished(racers []*Racer) bool {
	for _, r := range racers {
		if !r.Finished {
			return false
		}
	}
	return len(racers) > 0
}
