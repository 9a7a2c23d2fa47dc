// Package wizard is the terminal front end: a bubbletea program that renders
// one screen at a time and drives the navigation engine from key input. The
// engine pushes views, indicator state and redraws back through the Surface.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel/trace"

	"github.com/basket/stagehand/internal/config"
	"github.com/basket/stagehand/internal/nav"
	otelsh "github.com/basket/stagehand/internal/otel"
	"github.com/basket/stagehand/internal/progress"
)

// Config wires a wizard run.
type Config struct {
	Answers       config.Answers
	Logger        *slog.Logger
	Tracer        trace.Tracer
	Metrics       *otelsh.Metrics
	Indication    progress.Config
	DefaultMirror string

	// ASCII selects plain rendering for serial consoles and -ascii.
	ASCII bool

	// Reload carries config watcher events; each one requests a redraw.
	Reload <-chan config.ReloadEvent
}

type (
	setViewMsg   struct{ view nav.View }
	showIndMsg   struct{}
	hideIndMsg   struct{}
	redrawMsg    struct{}
	finishedMsg  struct{}
	moveDoneMsg  struct{ err error }
	showModalMsg struct {
		text   string
		cancel context.CancelFunc
	}
	hideModalMsg struct{}
)

// teaSurface adapts a bubbletea program to the engine's Surface. The program
// is attached after construction, before the engine makes its first move;
// sends before attachment are dropped.
type teaSurface struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *teaSurface) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *teaSurface) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (s *teaSurface) ShowIndicator() { s.send(showIndMsg{}) }

func (s *teaSurface) HideIndicator() { s.send(hideIndMsg{}) }

func (s *teaSurface) SetActiveView(v nav.View) { s.send(setViewMsg{view: v}) }

func (s *teaSurface) Redraw() { s.send(redrawMsg{}) }

func (s *teaSurface) ShowModal(text string, cancel context.CancelFunc) {
	s.send(showModalMsg{text: text, cancel: cancel})
}
func (s *teaSurface) HideModal() { s.send(hideModalMsg{}) }

type model struct {
	eng    *nav.Engine
	seq    nav.Sequence
	styles Styles

	view       screenView
	indicating bool
	status     string

	modalText   string
	modalCancel context.CancelFunc

	// moving gates key-initiated moves; bubbletea serializes Update so the
	// flag itself needs no lock.
	moving   bool
	finished bool
	quitting bool
}

func (m model) Init() tea.Cmd {
	return m.moveCmd(1)
}

// moveCmd runs one engine move on a command goroutine and reports back.
// Forward moves commit the active screen first.
func (m model) moveCmd(delta int) tea.Cmd {
	eng := m.eng
	var pre nav.Pretransition
	if delta > 0 {
		if fs, ok := eng.ActiveStage().(FlowStage); ok {
			pre = fs.Commit
		}
	}
	return func() tea.Msg {
		_, err := eng.MoveScreen(context.Background(), delta, pre)
		return moveDoneMsg{err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.modalCancel != nil {
			if key == "esc" {
				m.modalCancel()
			}
			return m, nil
		}
		switch key {
		case "enter", "ctrl+m", "ctrl+j":
			if m.moving {
				return m, nil
			}
			m.moving = true
			m.status = ""
			return m, m.moveCmd(1)
		case "esc":
			if m.moving {
				return m, nil
			}
			m.moving = true
			m.status = ""
			return m, m.moveCmd(-1)
		default:
			// The in-flight move's commit reads the view's buffer on the
			// command goroutine; no edits until it reports back.
			if m.moving {
				return m, nil
			}
			if m.view != nil {
				m.view.handleKey(key)
			}
		}

	case setViewMsg:
		if v, ok := msg.view.(screenView); ok {
			m.view = v
		}

	case showIndMsg:
		m.indicating = true
	case hideIndMsg:
		m.indicating = false

	case showModalMsg:
		m.modalText = msg.text
		m.modalCancel = msg.cancel
	case hideModalMsg:
		m.modalText = ""
		m.modalCancel = nil

	case moveDoneMsg:
		m.moving = false
		if msg.err != nil {
			m.status = humanError(msg.err)
		}

	case finishedMsg:
		m.finished = true
		return m, tea.Quit

	case redrawMsg:
		// Returning from Update is the redraw.
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "\n  Setup cancelled.\n"
	}
	if m.finished {
		return "\n  Configuration applied. All done.\n\n"
	}

	var b strings.Builder
	b.WriteString("\n  " + m.styles.Title.Render("Stagehand Setup") + "\n")
	b.WriteString("  " + m.styles.Rule + "\n\n")

	if m.view != nil {
		b.WriteString(fmt.Sprintf("  %s (%d/%d)\n\n",
			m.styles.Title.Render(m.view.title()), m.eng.Cursor()+1, m.seq.Len()))
		b.WriteString(m.view.render(m.styles))
	}

	if m.modalText != "" {
		b.WriteString("\n  " + m.styles.Status.Render(m.modalText) + "\n")
		b.WriteString("  " + m.styles.Hint.Render("[Esc] Cancel") + "\n")
		return b.String()
	}

	if m.indicating {
		b.WriteString("\n  " + m.styles.Status.Render("Working ...") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n  " + m.styles.Error.Render(m.status) + "\n")
	}

	b.WriteString("\n  " + m.styles.Hint.Render("[Enter] Continue  [Esc] Back  [Ctrl+C] Quit") + "\n")
	return b.String()
}

// Run drives the stock flow to completion and returns the collected values.
// It blocks until the flow finishes, the user quits, or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Values, error) {
	defer bestEffortResetTTY()

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	surface := &teaSurface{}
	stages, vals := NewStages(Deps{
		Answers:       cfg.Answers,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		Indication:    cfg.Indication,
		Modal:         surface,
		DefaultMirror: cfg.DefaultMirror,
		Background:    ctx,
	})

	eng := nav.New(nav.Config{
		Sequence:   stages,
		Surface:    surface,
		Logger:     cfg.Logger,
		Tracer:     cfg.Tracer,
		Metrics:    cfg.Metrics,
		Indication: cfg.Indication,
		OnFinish:   func() { surface.send(finishedMsg{}) },
		Background: ctx,
	})

	styles := RichStyles()
	if cfg.ASCII {
		styles = BasicStyles()
	}
	// moving starts true; Init's command performs the initial screen
	// selection and clears it.
	p := tea.NewProgram(model{eng: eng, seq: stages, styles: styles, moving: true})
	surface.attach(p)

	if cfg.Reload != nil {
		go func() {
			for range cfg.Reload {
				eng.RequestRedraw()
			}
		}()
	}

	done := make(chan error, 1)
	var finalModel tea.Model
	go func() {
		var err error
		finalModel, err = p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		<-done
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, err
		}
	}

	fm, ok := finalModel.(model)
	if !ok || fm.quitting || !fm.finished {
		return nil, fmt.Errorf("wizard cancelled")
	}
	return vals, nil
}
