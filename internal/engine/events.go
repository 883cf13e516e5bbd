package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Event categories.
const (
	CategoryReset     = "reset"
	CategorySpawn     = "spawn"
	CategoryExplore   = "explore"
	CategoryCompleted = "completed"
)

// maxRecentEvents bounds the in-memory catch-up buffer.
const maxRecentEvents = 200

// subscriberBuffer is the per-subscriber channel capacity; slow readers drop events.
const subscriberBuffer = 64

// Event is a notable occurrence in the current exploration run.
type Event struct {
	Tick        uint64    `json:"tick"`
	RunID       string    `json:"run_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
	Region      *int      `json:"region,omitempty"` // Region index for explore events
	Explored    int       `json:"explored"`
	Total       int       `json:"total"`
}

// RunRecord summarizes one completed exploration run.
type RunRecord struct {
	RunID       string        `json:"run_id"`
	Seed        int64         `json:"seed"`
	Regions     int           `json:"regions"`
	Rooms       int           `json:"rooms"`
	Tunnels     int           `json:"tunnels"`
	Agents      int           `json:"agents"`
	Ticks       uint64        `json:"ticks"`
	Duration    time.Duration `json:"duration_ns"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// EventSink receives every event, e.g. a compressed on-disk log.
type EventSink interface {
	WriteEvent(e Event) error
}

// RunRecorder receives a record each time a run completes.
type RunRecorder interface {
	RecordRun(r RunRecord) error
}

// broadcaster fans events out to live subscribers and keeps a short history.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	recent []Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// subscribe registers a listener and returns up to backlog earlier events.
// Both happen under one lock: an event lands in the backlog or on the
// channel, never both.
func (b *broadcaster) subscribe(backlog int) (int, []Event, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[b.nextID] = ch
	return b.nextID, b.lastLocked(backlog), ch
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, e)
	if len(b.recent) > maxRecentEvents {
		b.recent = b.recent[len(b.recent)-maxRecentEvents:]
	}

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("event dropped for slow subscriber", "sub_id", id, "category", e.Category)
		}
	}
}

func (b *broadcaster) last(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastLocked(n)
}

func (b *broadcaster) lastLocked(n int) []Event {
	start := len(b.recent) - n
	if start < 0 {
		start = 0
	}
	return append([]Event(nil), b.recent[start:]...)
}
