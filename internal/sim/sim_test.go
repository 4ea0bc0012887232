package sim_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelderby/raceroom/internal/sim"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestDrawPersonalityRanges(t *testing.T) {
	rng := newRNG(1)
	for i := 0; i < 1000; i++ {
		p := sim.DrawPersonality(rng)
		assert.GreaterOrEqual(t, p.Variance, 0.9)
		assert.Less(t, p.Variance, 1.1)
		assert.GreaterOrEqual(t, p.CritChance, 0.12)
		assert.Less(t, p.CritChance, 0.24)
	}
}

func TestTickAdvancesUnfinishedRacers(t *testing.T) {
	rng := newRNG(42)
	engine := sim.NewEngine(rng)
	racer := sim.NewRacer("a", "Ann", 0, rng)

	engine.Tick([]*sim.Racer{racer}, 16*time.Millisecond)

	assert.Greater(t, racer.Speed, 0.0, "baseline increment always adds speed")
	assert.Greater(t, racer.Position, 0.0)
	assert.False(t, racer.Finished)
}

func TestTickSpeedDecay(t *testing.T) {
	rng := newRNG(7)
	engine := sim.NewEngine(rng)
	racer := sim.NewRacer("a", "Ann", 0, rng)
	racer.Speed = 100 // far above what one baseline increment can sustain

	engine.Tick([]*sim.Racer{racer}, 16*time.Millisecond)

	// 2% decay dominates: 100*0.98 plus a baseline increment below 0.1
	assert.Less(t, racer.Speed, 98.1)
	assert.Greater(t, racer.Speed, 98.0)
}

func TestTickScalesWithElapsedTime(t *testing.T) {
	// identical seeds, same speeds; only elapsed time differs
	short := sim.NewRacer("a", "Ann", 0, newRNG(3))
	long := sim.NewRacer("a", "Ann", 0, newRNG(3))
	short.Speed = 10
	long.Speed = 10

	sim.NewEngine(newRNG(5)).Tick([]*sim.Racer{short}, 16*time.Millisecond)
	sim.NewEngine(newRNG(5)).Tick([]*sim.Racer{long}, 32*time.Millisecond)

	assert.InDelta(t, short.Position*2, long.Position, 1e-9,
		"position advances by speed normalized to the 16ms reference frame")
}

func TestFinishOrderAndWinner(t *testing.T) {
	rng := newRNG(9)
	engine := sim.NewEngine(rng)
	first := sim.NewRacer("a", "Ann", 0, rng)
	second := sim.NewRacer("b", "Bo", 1, rng)
	third := sim.NewRacer("c", "Cy", 2, rng)

	first.Position = sim.TrackLength - 1
	first.Speed = 50
	engine.Tick([]*sim.Racer{first, second, third}, 16*time.Millisecond)

	require.True(t, first.Finished)
	assert.Equal(t, 1, first.Place)

	winner, ok := engine.Winner()
	require.True(t, ok)
	assert.Equal(t, sim.Winner{ID: "a", Name: "Ann", ColorIndex: 0}, winner)

	second.Position = sim.TrackLength
	third.Position = sim.TrackLength
	engine.Tick([]*sim.Racer{first, second, third}, 16*time.Millisecond)

	assert.Equal(t, 2, second.Place)
	assert.Equal(t, 3, third.Place)

	// the winner snapshot never changes, even as others finish
	winner, _ = engine.Winner()
	assert.Equal(t, "a", winner.ID)
	assert.True(t, sim.Finished([]*sim.Racer{first, second, third}))
}

func TestFinishedRacerStopsMoving(t *testing.T) {
	rng := newRNG(11)
	engine := sim.NewEngine(rng)
	racer := sim.NewRacer("a", "Ann", 0, rng)
	racer.Finished = true
	racer.Position = sim.TrackLength

	engine.Tick([]*sim.Racer{racer}, 16*time.Millisecond)
	assert.Equal(t, float64(sim.TrackLength), racer.Position)
}

func TestBoostIncreasesSpeedWithinCap(t *testing.T) {
	rng := newRNG(13)
	engine := sim.NewEngine(rng)

	for i := 0; i < 1000; i++ {
		racer := sim.NewRacer("a", "Ann", 0, rng)
		before := racer.Speed
		engine.Boost(racer)
		gain := racer.Speed - before
		assert.Greater(t, gain, 0.0)
		assert.LessOrEqual(t, gain, 2.4, "boost increment is capped")
	}
}

func TestBoostIgnoresFinishedRacer(t *testing.T) {
	rng := newRNG(17)
	engine := sim.NewEngine(rng)
	racer := sim.NewRacer("a", "Ann", 0, rng)
	racer.Finished = true

	engine.Boost(racer)
	assert.Zero(t, racer.Speed)
}

func TestRaceRunsToCompletion(t *testing.T) {
	rng := newRNG(21)
	engine := sim.NewEngine(rng)
	racers := []*sim.Racer{
		sim.NewRacer("a", "Ann", 0, rng),
		sim.NewRacer("b", "Bo", 1, rng),
	}

	for i := 0; i < 500000 && !sim.Finished(racers); i++ {
		engine.Tick(racers, 16*time.Millisecond)
	}

	require.True(t, sim.Finished(racers), "both racers eventually cross the line")
	places := []int{racers[0].Place, racers[1].Place}
	assert.ElementsMatch(t, []int{1, 2}, places)

	_, ok := engine.Winner()
	assert.True(t, ok)
}

func TestFinishedEmptyRoster(t *testing.T) {
	assert.False(t, sim.Finished(nil))
}
