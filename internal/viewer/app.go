package viewer

import (
	"context"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/antnest/internal/api"
	"github.com/talgya/antnest/internal/engine"
)

const commandTimeout = 5 * time.Second

// Commander is the part of Client the key bindings use.
type Commander interface {
	Spawn(ctx context.Context, n int) error
	Reset(ctx context.Context) error
}

// App couples a live feed, a screen and the key bindings.
type App struct {
	screen   tcell.Screen
	renderer *Renderer
	cmd      Commander

	layer *Layer
	m     *engine.MapSnapshot
	state *engine.StateSnapshot
}

// NewApp creates an App drawing on an initialized screen.
func NewApp(screen tcell.Screen, cmd Commander) *App {
	return &App{
		screen:   screen,
		renderer: NewRenderer(screen),
		cmd:      cmd,
	}
}

// Run draws feed until the user quits, the feed closes or ctx ends.
func (a *App) Run(ctx context.Context, feed <-chan api.WSMessage) error {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return // screen finalized
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	a.renderer.Draw(nil, nil)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-feed:
			if !ok {
				slog.Warn("feed closed")
				return nil
			}
			a.apply(msg)
			a.renderer.Draw(a.layer, a.state)
		case ev := <-events:
			if !a.handleInput(ctx, ev) {
				return nil
			}
		}
	}
}

// apply folds one feed message into the view state.
func (a *App) apply(msg api.WSMessage) {
	switch msg.Type {
	case "map":
		if msg.Map == nil {
			return
		}
		w, h := a.renderer.MapSize()
		if a.layer != nil && a.m != nil && sameLayout(a.m, msg.Map) && a.layer.W == w && a.layer.H == h {
			a.layer.Recolor(msg.Map)
		} else {
			a.layer = Rasterize(msg.Map, w, h)
		}
		a.m = msg.Map
	case "state":
		if msg.State != nil {
			a.state = msg.State
		}
	}
}

// handleInput returns false when the user asks to quit.
func (a *App) handleInput(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case 's':
			a.command(ctx, "spawn", func(c context.Context) error { return a.cmd.Spawn(c, 1) })
		case 'S':
			a.command(ctx, "spawn", func(c context.Context) error { return a.cmd.Spawn(c, 10) })
		case 'r':
			a.command(ctx, "reset", a.cmd.Reset)
		}
	case *tcell.EventResize:
		a.screen.Sync()
		if a.m != nil {
			w, h := a.renderer.MapSize()
			a.layer = Rasterize(a.m, w, h)
		}
		a.renderer.Draw(a.layer, a.state)
	}
	return true
}

func (a *App) command(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Error("command failed", "command", name, "error", err)
	}
}

// sameLayout reports whether two maps share geometry, ignoring explored flags.
func sameLayout(a, b *engine.MapSnapshot) bool {
	if a.Width != b.Width || a.Height != b.Height || len(a.Rooms) != len(b.Rooms) {
		return false
	}
	for i := range a.Rooms {
		ra, rb := a.Rooms[i], b.Rooms[i]
		if ra.Kind != rb.Kind || ra.Center != rb.Center || len(ra.Boundary) != len(rb.Boundary) {
			return false
		}
		for j := range ra.Boundary {
			if ra.Boundary[j] != rb.Boundary[j] {
				return false
			}
		}
	}
	return true
}
