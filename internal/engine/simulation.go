// Simulation owns the nest and the ants and advances them one tick at a time.
// Every public method holds the same lock for its full duration, so snapshot
// readers never see a half-applied tick and a reset never interleaves with one.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/antnest/internal/agents"
	"github.com/talgya/antnest/internal/entropy"
	"github.com/talgya/antnest/internal/geom"
	"github.com/talgya/antnest/internal/nest"
)

// GenerateFunc builds a fresh nest from rng.
type GenerateFunc func(cfg nest.GenConfig, rng *rand.Rand) *nest.Nest

// Options configures a Simulation. Zero values fall back to defaults.
type Options struct {
	Seed         int64 // 0 = unseeded
	Nest         nest.GenConfig
	Move         agents.MoveConfig
	MarkerChance float64

	Generate GenerateFunc     // Defaults to nest.Generate
	Now      func() time.Time // Defaults to time.Now

	Sink     EventSink   // Optional
	Recorder RunRecorder // Optional
}

// Simulation holds the exploration state.
type Simulation struct {
	mu sync.Mutex

	seed     int64
	genCfg   nest.GenConfig
	move     agents.MoveConfig
	generate GenerateFunc
	now      func() time.Time
	genRng   *rand.Rand
	moveRng  *rand.Rand
	spawner  *agents.Spawner

	// Current epoch, replaced wholesale on reset.
	nest      *nest.Nest
	agents    []*agents.Agent
	total     int
	explored  int
	startTime time.Time
	endTime   time.Time
	completed bool
	runID     string
	tick      uint64
	epoch     uint64

	events   *broadcaster
	sink     EventSink
	recorder RunRecorder
}

// Status is a summary of the current run.
type Status struct {
	RunID     string        `json:"run_id"`
	Seed      int64         `json:"seed"`
	Epoch     uint64        `json:"epoch"`
	Tick      uint64        `json:"tick"`
	Agents    int           `json:"agents"`
	Explored  int           `json:"explored"`
	Total     int           `json:"total"`
	Completed bool          `json:"completed"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"` // Zero until completed
	Elapsed   time.Duration `json:"elapsed_ns"`
	Nest      nest.Stats    `json:"nest"`
}

// MapSnapshot is the static layout plus per-region explored flags.
type MapSnapshot struct {
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
	Rooms  []*nest.Region `json:"rooms"`
}

// AgentView is the wire form of one agent.
type AgentView struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Active bool    `json:"active"`
	IsRed  bool    `json:"isRed"`
}

// StateSnapshot is the per-frame dynamic state.
type StateSnapshot struct {
	Agents    []AgentView `json:"agents"`
	Time      int64       `json:"time"` // Elapsed milliseconds
	Explored  int         `json:"explored"`
	Total     int         `json:"total"`
	Completed bool        `json:"completed"`
	RunID     string      `json:"run_id"`
	Tick      uint64      `json:"tick"`
}

// NewSimulation creates a simulation and generates its first nest.
func NewSimulation(opts Options) *Simulation {
	seed := entropy.ResolveSeed(opts.Seed)

	genCfg := opts.Nest
	if genCfg.Width == 0 && genCfg.Height == 0 {
		genCfg = nest.DefaultGenConfig()
	}
	move := opts.Move
	if move == (agents.MoveConfig{}) {
		move = agents.DefaultMoveConfig()
	}
	generate := opts.Generate
	if generate == nil {
		generate = nest.Generate
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Simulation{
		seed:     seed,
		genCfg:   genCfg,
		move:     move,
		generate: generate,
		now:      now,
		genRng:   entropy.Stream(seed, entropy.StreamNest),
		moveRng:  entropy.Stream(seed, entropy.StreamMotion),
		spawner:  agents.NewSpawner(entropy.Stream(seed, entropy.StreamSpawner)),
		events:   newBroadcaster(),
		sink:     opts.Sink,
		recorder: opts.Recorder,
	}
	if opts.MarkerChance > 0 {
		s.spawner.MarkerChance = opts.MarkerChance
	}

	s.Reset()
	return s
}

// Tick advances every active agent by one step and updates exploration.
// Agents keep moving after the run completes; only the timer stops.
func (s *Simulation) Tick() {
	s.mu.Lock()

	s.tick++
	var pending []Event
	for _, a := range s.agents {
		hit := agents.Wander(a, s.nest, s.move, s.moveRng)
		if hit < 0 {
			continue
		}
		r := s.nest.Regions[hit]
		if r.Explored {
			continue
		}
		r.Explored = true
		s.explored++
		idx := hit
		e := s.eventLocked(CategoryExplore, fmt.Sprintf("ant %d entered %s %d", a.ID, r.Kind, hit))
		e.Region = &idx
		pending = append(pending, e)
	}

	var record *RunRecord
	if !s.completed && s.explored >= s.total {
		s.completed = true
		s.endTime = s.now()
		elapsed := s.elapsedLocked()
		pending = append(pending, s.eventLocked(CategoryCompleted,
			fmt.Sprintf("nest fully explored in %s", elapsed.Round(time.Millisecond))))

		stats := s.nest.Stats()
		record = &RunRecord{
			RunID:       s.runID,
			Seed:        s.seed,
			Regions:     s.total,
			Rooms:       stats.Rooms,
			Tunnels:     stats.Tunnels,
			Agents:      len(s.agents),
			Ticks:       s.tick,
			Duration:    elapsed,
			StartedAt:   s.startTime,
			CompletedAt: s.endTime,
		}
	}

	s.mu.Unlock()

	s.dispatch(pending)
	if record != nil {
		slog.Info("nest fully explored",
			"run_id", record.RunID,
			"elapsed", record.Duration.Round(time.Millisecond),
			"ticks", humanize.Comma(int64(record.Ticks)),
			"agents", record.Agents,
			"regions", record.Regions,
		)
		if s.recorder != nil {
			if err := s.recorder.RecordRun(*record); err != nil {
				slog.Error("record run failed", "run_id", record.RunID, "error", err)
			}
		}
	}
}

// Spawn adds one agent at the spawn room center and returns a copy of it.
func (s *Simulation) Spawn() agents.Agent {
	return s.SpawnN(1)[0]
}

// SpawnN adds n agents (at least one) and returns copies of them.
func (s *Simulation) SpawnN(n int) []agents.Agent {
	if n < 1 {
		n = 1
	}

	s.mu.Lock()
	at := geom.Point{}
	if start := s.nest.Start(); start != nil {
		at = start.Center
	}
	out := make([]agents.Agent, 0, n)
	for i := 0; i < n; i++ {
		a := s.spawner.Spawn(at)
		s.agents = append(s.agents, a)
		out = append(out, *a)
	}
	e := s.eventLocked(CategorySpawn, fmt.Sprintf("%d ant(s) spawned at %s, %d total", n, at, len(s.agents)))
	s.mu.Unlock()

	s.dispatch([]Event{e})
	return out
}

// Reset clears all agents, regenerates the nest and restarts the timer.
func (s *Simulation) Reset() {
	s.mu.Lock()

	s.agents = nil
	s.spawner.Reset()
	s.nest = s.generate(s.genCfg, s.genRng)
	s.total = len(s.nest.Regions)
	s.explored = 1 // The spawn room starts explored
	s.startTime = s.now()
	s.endTime = time.Time{}
	s.completed = false
	s.runID = uuid.NewString()
	s.tick = 0
	s.epoch++

	stats := s.nest.Stats()
	e := s.eventLocked(CategoryReset, fmt.Sprintf("new nest: %d rooms, %d tunnels", stats.Rooms, stats.Tunnels))
	runID, epoch := s.runID, s.epoch
	s.mu.Unlock()

	slog.Info("nest generated",
		"run_id", runID,
		"epoch", epoch,
		"rooms", stats.Rooms,
		"tunnels", stats.Tunnels,
		"loops", stats.LoopTunnels,
		"area", humanize.Comma(int64(stats.WalkableArea)),
	)
	s.dispatch([]Event{e})
}

// Elapsed returns the run time so far, frozen once the run completes.
func (s *Simulation) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

// SnapshotMap returns a deep copy of the nest layout.
func (s *Simulation) SnapshotMap() MapSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]*nest.Region, len(s.nest.Regions))
	for i, r := range s.nest.Regions {
		rooms[i] = r.Clone()
	}
	return MapSnapshot{
		Width:  s.nest.Width,
		Height: s.nest.Height,
		Rooms:  rooms,
	}
}

// SnapshotState returns agent positions and exploration counters.
func (s *Simulation) SnapshotState() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]AgentView, len(s.agents))
	for i, a := range s.agents {
		views[i] = AgentView{
			X:      a.Position.X,
			Y:      a.Position.Y,
			Angle:  a.Heading,
			Active: a.Active,
			IsRed:  a.Marker,
		}
	}
	return StateSnapshot{
		Agents:    views,
		Time:      s.elapsedLocked().Milliseconds(),
		Explored:  s.explored,
		Total:     s.total,
		Completed: s.completed,
		RunID:     s.runID,
		Tick:      s.tick,
	}
}

// Nest returns a deep copy of the current nest.
func (s *Simulation) Nest() *nest.Nest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nest.Clone()
}

// Status returns a summary of the current run.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		RunID:     s.runID,
		Seed:      s.seed,
		Epoch:     s.epoch,
		Tick:      s.tick,
		Agents:    len(s.agents),
		Explored:  s.explored,
		Total:     s.total,
		Completed: s.completed,
		StartTime: s.startTime,
		EndTime:   s.endTime,
		Elapsed:   s.elapsedLocked(),
		Nest:      s.nest.Stats(),
	}
}

// Subscribe registers a live event listener. The channel is closed by Unsubscribe.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	id, _, ch := s.events.subscribe(0)
	return id, ch
}

// SubscribeWithBacklog registers a listener and returns up to n recent events
// published before it. No event appears in both the backlog and the channel.
func (s *Simulation) SubscribeWithBacklog(n int) (int, []Event, <-chan Event) {
	return s.events.subscribe(n)
}

// Unsubscribe removes a listener registered with Subscribe.
func (s *Simulation) Unsubscribe(id int) {
	s.events.unsubscribe(id)
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	return s.events.last(n)
}

func (s *Simulation) elapsedLocked() time.Duration {
	if s.completed {
		return s.endTime.Sub(s.startTime)
	}
	return s.now().Sub(s.startTime)
}

func (s *Simulation) eventLocked(category, description string) Event {
	return Event{
		Tick:        s.tick,
		RunID:       s.runID,
		Category:    category,
		Description: description,
		Time:        s.now(),
		Explored:    s.explored,
		Total:       s.total,
	}
}

// dispatch delivers events outside the simulation lock.
func (s *Simulation) dispatch(events []Event) {
	for _, e := range events {
		s.events.publish(e)
		if s.sink != nil {
			if err := s.sink.WriteEvent(e); err != nil {
				slog.Warn("event log write failed", "category", e.Category, "error", err)
			}
		}
		if e.Category == CategoryExplore {
			slog.Debug("region explored", "region", *e.Region, "explored", e.Explored, "total", e.Total)
		}
	}
}
