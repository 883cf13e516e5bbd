package viewer

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/talgya/antnest/internal/engine"
)

var (
	styleRock       = tcell.StyleDefault
	styleUnexplored = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleExplored   = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleAnt        = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleMarker     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleHUD        = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	styleDone       = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
)

var glyphs = map[CellKind]struct {
	r     rune
	style tcell.Style
}{
	CellRock:       {' ', styleRock},
	CellUnexplored: {'░', styleUnexplored},
	CellExplored:   {'▒', styleExplored},
	CellAnt:        {'•', styleAnt},
	CellMarker:     {'•', styleMarker},
}

// Renderer draws composed layers and a one-line status bar.
type Renderer struct {
	screen tcell.Screen
}

// NewRenderer wraps an initialized screen.
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// MapSize is the grid size left for the nest after the status bar.
func (r *Renderer) MapSize() (w, h int) {
	w, h = r.screen.Size()
	if h > 0 {
		h--
	}
	return w, h
}

// Draw renders one frame. l may be nil before the first map arrives.
func (r *Renderer) Draw(l *Layer, st *engine.StateSnapshot) {
	r.screen.Clear()

	if l != nil {
		cells := l.Compose(st)
		for y := 0; y < l.H; y++ {
			for x := 0; x < l.W; x++ {
				g := glyphs[cells[y*l.W+x]]
				r.screen.SetContent(x, y, g.r, nil, g.style)
			}
		}
	}

	w, h := r.screen.Size()
	style := styleHUD
	if st != nil && st.Completed {
		style = styleDone
	}
	line := []rune(StatusLine(st))
	for x := 0; x < w; x++ {
		ch := ' '
		if x < len(line) {
			ch = line[x]
		}
		r.screen.SetContent(x, h-1, ch, nil, style)
	}
	r.screen.Show()
}

// StatusLine summarizes the run for the status bar.
func StatusLine(st *engine.StateSnapshot) string {
	if st == nil {
		return " connecting...  [q] quit"
	}
	elapsed := (time.Duration(st.Time) * time.Millisecond).Round(100 * time.Millisecond)
	pct := 0.0
	if st.Total > 0 {
		pct = 100 * float64(st.Explored) / float64(st.Total)
	}
	state := "exploring"
	if st.Completed {
		state = "COMPLETE"
	}
	return fmt.Sprintf(" %s  %d/%d regions (%.0f%%)  %s  %s ants  tick %s  [s] spawn [S] spawn 10 [r] reset [q] quit",
		state, st.Explored, st.Total, pct, elapsed,
		humanize.Comma(int64(len(st.Agents))), humanize.Comma(int64(st.Tick)))
}
