package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/antnest/internal/geom"
	"github.com/talgya/antnest/internal/nest"
)

// tickBudget bounds the end-to-end exploration scenarios.
const tickBudget = 200_000

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorderStub struct {
	mu   sync.Mutex
	runs []RunRecord
}

func (r *recorderStub) RecordRun(rec RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, rec)
	return nil
}

type sinkStub struct {
	mu     sync.Mutex
	events []Event
}

func (s *sinkStub) WriteEvent(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sinkStub) categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Category
	}
	return out
}

func rect(x0, y0, x1, y1 float64) []geom.Point {
	return []geom.Point{geom.Pt(x0, y0), geom.Pt(x1, y0), geom.Pt(x1, y1), geom.Pt(x0, y1)}
}

// twoRoomNest is a fixed layout: two 200×200 rooms joined by a 60-wide
// tunnel whose middle 200 units lie outside both rooms.
func twoRoomNest(nest.GenConfig, *rand.Rand) *nest.Nest {
	a := nest.NewRegion(nest.KindRoom, rect(0, 0, 200, 200), geom.Pt(100, 100))
	b := nest.NewRegion(nest.KindRoom, rect(400, 0, 600, 200), geom.Pt(500, 100))
	t := nest.NewRegion(nest.KindTunnel, rect(150, 70, 450, 130), geom.Point{})
	a.Explored = true
	return &nest.Nest{Width: 600, Height: 200, Regions: []*nest.Region{a, b, t}}
}

// singleRoomNest has nothing left to explore.
func singleRoomNest(nest.GenConfig, *rand.Rand) *nest.Nest {
	a := nest.NewRegion(nest.KindRoom, rect(0, 0, 100, 100), geom.Pt(50, 50))
	a.Explored = true
	return &nest.Nest{Width: 100, Height: 100, Regions: []*nest.Region{a}}
}

func emptyNest(nest.GenConfig, *rand.Rand) *nest.Nest {
	return &nest.Nest{Width: 100, Height: 100}
}

func TestNewSimulationStartsFresh(t *testing.T) {
	sim := NewSimulation(Options{Seed: 1})
	st := sim.Status()

	assert.Equal(t, 1, st.Explored)
	assert.Equal(t, len(sim.Nest().Regions), st.Total)
	assert.False(t, st.Completed)
	assert.Zero(t, st.Agents)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, int64(1), st.Seed)
	assert.Equal(t, uint64(1), st.Epoch)
}

func TestResetTwiceIsIdempotent(t *testing.T) {
	sim := NewSimulation(Options{Seed: 2})
	sim.SpawnN(5)
	for i := 0; i < 500; i++ {
		sim.Tick()
	}

	firstRun := sim.Status().RunID
	sim.Reset()
	sim.Reset()

	st := sim.Status()
	assert.Equal(t, 1, st.Explored)
	assert.False(t, st.Completed)
	assert.Zero(t, st.Agents)
	assert.Zero(t, st.Tick)
	assert.True(t, st.EndTime.IsZero())
	assert.NotEqual(t, firstRun, st.RunID)

	n := sim.Nest()
	assert.Equal(t, len(n.Regions), st.Total)
	assert.Equal(t, st.Nest.Rooms+st.Nest.Tunnels, st.Total)
	assert.Equal(t, 1, n.ExploredCount())
	assert.Empty(t, sim.SnapshotState().Agents)
}

func TestZeroAgentsNeverExplore(t *testing.T) {
	sim := NewSimulation(Options{Seed: 3})
	for i := 0; i < 5000; i++ {
		sim.Tick()
	}
	st := sim.Status()
	assert.Equal(t, 1, st.Explored)
	assert.False(t, st.Completed)
	assert.Equal(t, uint64(5000), st.Tick)
}

func TestExplorationMonotonic(t *testing.T) {
	sim := NewSimulation(Options{Seed: 4, Nest: nest.SmallTestConfig()})
	sim.SpawnN(8)

	prev := sim.Status().Explored
	for i := 0; i < 20_000; i++ {
		sim.Tick()
		st := sim.Status()
		require.GreaterOrEqual(t, st.Explored, prev, "tick %d", i)
		require.LessOrEqual(t, st.Explored, st.Total, "tick %d", i)
		prev = st.Explored
	}

	// The counter matches the flags on the regions themselves.
	assert.Equal(t, sim.Nest().ExploredCount(), sim.Status().Explored)
}

func TestSpawnAtStartRoomCenter(t *testing.T) {
	sim := NewSimulation(Options{Seed: 5})
	start := sim.Nest().Start().Center

	a := sim.Spawn()
	assert.Equal(t, start, a.Position)
	assert.True(t, a.Active)

	batch := sim.SpawnN(3)
	require.Len(t, batch, 3)
	assert.Equal(t, 4, sim.Status().Agents)

	st := sim.SnapshotState()
	require.Len(t, st.Agents, 4)
	for _, v := range st.Agents {
		assert.Equal(t, start.X, v.X)
		assert.Equal(t, start.Y, v.Y)
		assert.True(t, v.Active)
	}
}

func TestSpawnEmptyNestFallsBackToOrigin(t *testing.T) {
	sim := NewSimulation(Options{Seed: 6, Generate: emptyNest})
	a := sim.Spawn()
	assert.Equal(t, geom.Point{}, a.Position)
}

func TestExploresWholeNestAndFreezesTimer(t *testing.T) {
	clock := newFakeClock()
	rec := &recorderStub{}
	sim := NewSimulation(Options{Seed: 7, Generate: twoRoomNest, Now: clock.Now, Recorder: rec})
	sim.Spawn()

	ticks := 0
	for ; ticks < tickBudget && !sim.Status().Completed; ticks++ {
		clock.Advance(DefaultInterval)
		sim.Tick()
	}
	require.True(t, sim.Status().Completed, "not explored within %d ticks", tickBudget)

	st := sim.Status()
	assert.Equal(t, 3, st.Explored)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, time.Duration(ticks)*DefaultInterval, st.Elapsed)

	// Elapsed stops increasing once completed.
	frozen := sim.Elapsed()
	clock.Advance(time.Hour)
	assert.Equal(t, frozen, sim.Elapsed())
	assert.Equal(t, frozen.Milliseconds(), sim.SnapshotState().Time)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, st.RunID, rec.runs[0].RunID)
	assert.Equal(t, frozen, rec.runs[0].Duration)
	assert.Equal(t, 1, rec.runs[0].Agents)
}

func TestGeneratedNestCompletes(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			clock := newFakeClock()
			sim := NewSimulation(Options{Seed: seed, Nest: nest.SmallTestConfig(), Now: clock.Now})
			sim.Spawn()

			ticks := 0
			for ; ticks < tickBudget && !sim.Status().Completed; ticks++ {
				clock.Advance(DefaultInterval)
				sim.Tick()
			}
			st := sim.Status()
			require.True(t, st.Completed, "explored %d/%d after %d ticks", st.Explored, st.Total, tickBudget)
			assert.Equal(t, st.Total, st.Explored)

			frozen := sim.Elapsed()
			for i := 0; i < 100; i++ {
				clock.Advance(DefaultInterval)
				sim.Tick()
			}
			assert.Equal(t, frozen, sim.Elapsed())
		})
	}
}

func TestAgentsKeepMovingAfterCompletion(t *testing.T) {
	// Completion stops the timer, not the ants.
	clock := newFakeClock()
	sim := NewSimulation(Options{Seed: 8, Generate: singleRoomNest, Now: clock.Now})
	sim.Spawn()
	sim.Tick()
	require.True(t, sim.Status().Completed)

	before := sim.SnapshotState().Agents[0]
	moved := false
	for i := 0; i < 50; i++ {
		sim.Tick()
		after := sim.SnapshotState().Agents[0]
		if after.X != before.X || after.Y != before.Y {
			moved = true
			break
		}
	}
	assert.True(t, moved)
}

func TestCompletionLatchesOnce(t *testing.T) {
	clock := newFakeClock()
	rec := &recorderStub{}
	sink := &sinkStub{}
	sim := NewSimulation(Options{Seed: 9, Generate: singleRoomNest, Now: clock.Now, Recorder: rec, Sink: sink})

	// Nothing left to explore: the first tick completes even with no ants.
	clock.Advance(time.Second)
	sim.Tick()
	st := sim.Status()
	require.True(t, st.Completed)
	end := st.EndTime
	assert.Equal(t, time.Second, st.Elapsed)

	for i := 0; i < 100; i++ {
		clock.Advance(time.Second)
		sim.Tick()
	}
	assert.Equal(t, end, sim.Status().EndTime)
	assert.Equal(t, time.Second, sim.Elapsed())
	assert.Len(t, rec.runs, 1)
	assert.Equal(t, []string{CategoryReset, CategoryCompleted}, sink.categories())

	// A reset opens a new epoch with its own completion.
	sim.Reset()
	assert.False(t, sim.Status().Completed)
	assert.True(t, sim.Status().EndTime.IsZero())
	sim.Tick()
	assert.True(t, sim.Status().Completed)
	assert.Len(t, rec.runs, 2)
}

func TestElapsedRunsWhileIncomplete(t *testing.T) {
	clock := newFakeClock()
	sim := NewSimulation(Options{Seed: 10, Now: clock.Now})
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, sim.Elapsed())
	assert.Equal(t, int64(1500), sim.SnapshotState().Time)
}

func TestSnapshotsAreCopies(t *testing.T) {
	sim := NewSimulation(Options{Seed: 11})
	m := sim.SnapshotMap()
	require.NotEmpty(t, m.Rooms)
	assert.Equal(t, nest.DefaultGenConfig().Width, m.Width)

	m.Rooms[1].Explored = true
	m.Rooms[0].Boundary[0] = geom.Pt(-1, -1)

	again := sim.SnapshotMap()
	assert.False(t, again.Rooms[1].Explored)
	assert.NotEqual(t, geom.Pt(-1, -1), again.Rooms[0].Boundary[0])
}

func TestSameSeedSameRun(t *testing.T) {
	run := func() StateSnapshot {
		sim := NewSimulation(Options{Seed: 12, Nest: nest.SmallTestConfig()})
		sim.SpawnN(3)
		for i := 0; i < 2000; i++ {
			sim.Tick()
		}
		return sim.SnapshotState()
	}
	a, b := run(), run()
	assert.Equal(t, a.Agents, b.Agents)
	assert.Equal(t, a.Explored, b.Explored)
}

func TestEventsReachSubscribers(t *testing.T) {
	sim := NewSimulation(Options{Seed: 13, Generate: singleRoomNest})
	id, ch := sim.Subscribe()

	sim.Spawn()
	sim.Tick()

	got := []string{(<-ch).Category, (<-ch).Category}
	assert.Equal(t, []string{CategorySpawn, CategoryCompleted}, got)

	sim.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)

	recent := sim.RecentEvents(10)
	require.Len(t, recent, 3)
	assert.Equal(t, CategoryReset, recent[0].Category)
	assert.Len(t, sim.RecentEvents(1), 1)
}

func TestSubscribeWithBacklogNoOverlap(t *testing.T) {
	sim := NewSimulation(Options{Seed: 15, Generate: singleRoomNest})

	const spawns = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < spawns; i++ {
			sim.Spawn()
		}
	}()

	id, backlog, ch := sim.SubscribeWithBacklog(maxRecentEvents)
	<-done
	sim.Unsubscribe(id)

	var seen []string
	for _, e := range backlog {
		seen = append(seen, e.Description)
	}
	for e := range ch {
		seen = append(seen, e.Description)
	}

	var want []string
	for _, e := range sim.RecentEvents(maxRecentEvents) {
		want = append(want, e.Description)
	}
	require.Len(t, want, spawns+1)
	assert.Equal(t, want, seen)
}

func TestExploreEventsCarryRegion(t *testing.T) {
	sink := &sinkStub{}
	sim := NewSimulation(Options{Seed: 14, Generate: twoRoomNest, Sink: sink})
	sim.Spawn()
	for i := 0; i < tickBudget && !sim.Status().Completed; i++ {
		sim.Tick()
	}
	require.True(t, sim.Status().Completed)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	regions := map[int]bool{}
	for _, e := range sink.events {
		if e.Category == CategoryExplore {
			require.NotNil(t, e.Region)
			regions[*e.Region] = true
		}
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, regions)
}

func TestConcurrentAccess(t *testing.T) {
	sim := NewSimulation(Options{Seed: 15, Nest: nest.SmallTestConfig()})
	sim.SpawnN(10)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sim.Tick()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		st := sim.SnapshotState()
		require.LessOrEqual(t, st.Explored, st.Total)
		require.GreaterOrEqual(t, st.Explored, 1)
		m := sim.SnapshotMap()
		require.NotEmpty(t, m.Rooms)
		if i%50 == 0 {
			sim.Reset()
			sim.SpawnN(2)
		}
	}
	close(stop)
	wg.Wait()

	st := sim.Status()
	assert.Equal(t, len(sim.Nest().Regions), st.Total)
}
