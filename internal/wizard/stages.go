package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/basket/stagehand/internal/config"
	"github.com/basket/stagehand/internal/flight"
	"github.com/basket/stagehand/internal/nav"
	otelsh "github.com/basket/stagehand/internal/otel"
	"github.com/basket/stagehand/internal/progress"
)

// FlowStage is a nav.Stage whose screen input is committed before a forward
// move. Commit runs as the move's pretransition, so a commit failure aborts
// the move with the cursor unchanged.
type FlowStage interface {
	nav.Stage
	Commit(ctx context.Context) error
}

// Values accumulates what the flow collects across its stages.
type Values struct {
	Locale     string
	Hostname   string
	Passphrase string
	Mirror     string
	Proxy      string
}

// modalControl is the subset of the surface that stages use for cancellable
// waits: the surface shows the dialog and routes its dismissal to cancel.
type modalControl interface {
	ShowModal(text string, cancel context.CancelFunc)
	HideModal()
}

// Deps is everything the stock stages need.
type Deps struct {
	Answers       config.Answers
	Logger        *slog.Logger
	Metrics       *otelsh.Metrics
	Indication    progress.Config
	Modal         modalControl
	DefaultMirror string

	// Background is the context detached probes run under.
	Background context.Context
}

// NewStages builds the stock flow: locale, identity, credentials, mirror,
// proxy, review.
func NewStages(deps Deps) (nav.Stages, *Values) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Background == nil {
		deps.Background = context.Background()
	}
	vals := &Values{Locale: defaultLocale, Mirror: deps.DefaultMirror}

	locale := &localeStage{deps: deps, vals: vals}
	identity := &identityStage{deps: deps, vals: vals}
	credentials := &credentialsStage{deps: deps, vals: vals}
	mirror := newMirrorStage(deps, vals)
	proxy := &proxyStage{deps: deps, vals: vals}
	review := &reviewStage{deps: deps, vals: vals, mirror: mirror}

	return nav.Stages{locale, identity, credentials, mirror, proxy, review}, vals
}

// answerString reads a per-stage answer, reporting whether one was recorded.
func answerString(a config.Answers, stage, key string) (string, bool) {
	if a == nil {
		return "", false
	}
	return a.String(stage, key)
}

const defaultLocale = "en_US.UTF-8"

var localeOptions = []option{
	{label: "English (US)", value: "en_US.UTF-8"},
	{label: "English (UK)", value: "en_GB.UTF-8"},
	{label: "Deutsch", value: "de_DE.UTF-8"},
	{label: "Français", value: "fr_FR.UTF-8"},
	{label: "Español", value: "es_ES.UTF-8"},
	{label: "日本語", value: "ja_JP.UTF-8"},
}

// localeStage picks the system locale from a fixed list.
type localeStage struct {
	deps Deps
	vals *Values
	view *selectView
}

func (s *localeStage) Name() string { return "locale" }

func (s *localeStage) MakeView(ctx context.Context) (nav.View, error) {
	if code, ok := answerString(s.deps.Answers, "locale", "code"); ok {
		s.vals.Locale = code
		s.deps.Logger.Debug("answer applied", "stage", "locale", "code", code)
		return nil, nav.ErrSkipStage
	}
	s.view = &selectView{
		name:    "Locale",
		prompt:  "Which locale should the system use?",
		options: localeOptions,
		cursor:  localeCursor(s.vals.Locale),
	}
	return s.view, nil
}

func localeCursor(code string) int {
	for i, opt := range localeOptions {
		if opt.value == code {
			return i
		}
	}
	return 0
}

func (s *localeStage) Commit(ctx context.Context) error {
	s.vals.Locale = s.view.selected().value
	return nil
}

func (s *localeStage) OnLeave(ctx context.Context) error { return nil }

// identityStage asks for the machine name. A recorded answer applies itself
// and the stage steps aside.
type identityStage struct {
	deps Deps
	vals *Values
	view *textView
}

func (s *identityStage) Name() string { return "identity" }

func (s *identityStage) MakeView(ctx context.Context) (nav.View, error) {
	if name, ok := answerString(s.deps.Answers, "identity", "hostname"); ok {
		s.vals.Hostname = name
		s.deps.Logger.Debug("answer applied", "stage", "identity", "hostname", name)
		return nil, nav.ErrSkipStage
	}
	s.view = newTextView("Identity", "What should this machine be called?", s.vals.Hostname)
	s.view.hint = "Letters, digits and hyphens."
	return s.view, nil
}

func (s *identityStage) Commit(ctx context.Context) error {
	name := strings.TrimSpace(s.view.value)
	if name == "" {
		return errors.New("a name is required")
	}
	if strings.ContainsAny(name, " \t") {
		return fmt.Errorf("%q contains whitespace", name)
	}
	s.vals.Hostname = name
	return nil
}

func (s *identityStage) OnLeave(ctx context.Context) error { return nil }

// credentialsStage asks for the default user's passphrase with masked input.
// The value stays in memory; nothing downstream writes it anywhere.
type credentialsStage struct {
	deps Deps
	vals *Values
	view *textView
}

func (s *credentialsStage) Name() string { return "credentials" }

func (s *credentialsStage) MakeView(ctx context.Context) (nav.View, error) {
	if pass, ok := answerString(s.deps.Answers, "credentials", "passphrase"); ok {
		s.vals.Passphrase = pass
		s.deps.Logger.Debug("answer applied", "stage", "credentials")
		return nil, nav.ErrSkipStage
	}
	s.view = newTextView("Credentials", "Choose a passphrase for the default user:", "")
	s.view.masked = true
	s.view.hint = "At least 8 characters."
	return s.view, nil
}

func (s *credentialsStage) Commit(ctx context.Context) error {
	pass := s.view.value
	if runeLen(pass) < 8 {
		return errors.New("passphrase must be at least 8 characters")
	}
	s.vals.Passphrase = pass
	return nil
}

func (s *credentialsStage) OnLeave(ctx context.Context) error { return nil }

// mirrorStage asks for the archive mirror URL and keeps a reachability probe
// running against whatever is currently typed. Every edit restarts the probe
// under CancelAndRestart, so only the latest URL is ever being checked.
type mirrorStage struct {
	deps Deps
	vals *Values
	view *textView

	probe *flight.SingleInstanceTask

	mu      sync.Mutex
	url     string
	probed  bool
	lastErr error
}

func newMirrorStage(deps Deps, vals *Values) *mirrorStage {
	s := &mirrorStage{deps: deps, vals: vals, url: vals.Mirror}
	s.probe = flight.New(s.runProbe, flight.CancelAndRestart)
	return s
}

func (s *mirrorStage) Name() string { return "mirror" }

func (s *mirrorStage) MakeView(ctx context.Context) (nav.View, error) {
	if url, ok := answerString(s.deps.Answers, "mirror", "url"); ok {
		s.setURL(url)
		s.vals.Mirror = url
		s.reprobe()
		s.deps.Logger.Debug("answer applied", "stage", "mirror", "url", url)
		return nil, nav.ErrSkipStage
	}
	s.view = newTextView("Archive mirror", "Which mirror should packages come from?", s.currentURL())
	s.view.hint = "The address is checked in the background as you type."
	s.view.onEdit = func(value string) {
		s.setURL(value)
		s.reprobe()
	}
	s.reprobe()
	return s.view, nil
}

func (s *mirrorStage) Commit(ctx context.Context) error {
	url := strings.TrimSpace(s.view.value)
	if url == "" {
		return errors.New("a mirror URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%q is not an http(s) URL", url)
	}
	s.vals.Mirror = strings.TrimSuffix(url, "/")
	return nil
}

func (s *mirrorStage) OnLeave(ctx context.Context) error { return nil }

func (s *mirrorStage) setURL(url string) {
	s.mu.Lock()
	s.url = strings.TrimSpace(url)
	s.mu.Unlock()
}

func (s *mirrorStage) currentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// reprobe launches a fresh reachability check, displacing one in flight.
func (s *mirrorStage) reprobe() {
	restart := !s.probe.Done()
	if err := s.probe.Start(s.deps.Background); err != nil {
		s.deps.Logger.Warn("mirror probe start failed", "error", err)
		return
	}
	if restart && s.deps.Metrics != nil {
		s.deps.Metrics.ProbeRestarts.Add(s.deps.Background, 1)
	}
}

func (s *mirrorStage) runProbe(ctx context.Context) error {
	url := s.currentURL()
	err := probeMirror(ctx, url)

	s.mu.Lock()
	// A restarted probe may finish after its successor; only the result for
	// the URL still on screen counts.
	if s.url == url {
		s.probed = true
		s.lastErr = err
	}
	s.mu.Unlock()

	if err != nil {
		s.deps.Logger.Debug("mirror unreachable", "url", url, "error", err)
		return err
	}
	s.deps.Logger.Debug("mirror reachable", "url", url)
	return nil
}

// probeMirror checks that the mirror answers HTTP at all.
func probeMirror(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("empty mirror URL")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("mirror returned %s", resp.Status)
	}
	return nil
}

// status summarizes the last finished probe for the review screen.
func (s *mirrorStage) status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.probed:
		return "not checked yet"
	case s.lastErr != nil:
		return "unreachable: " + humanError(s.lastErr)
	default:
		return "reachable"
	}
}

// proxyStage asks for an optional HTTP proxy. An answers section for it,
// even an empty one, settles the question without showing the screen.
type proxyStage struct {
	deps Deps
	vals *Values
	view *textView
}

func (s *proxyStage) Name() string { return "proxy" }

func (s *proxyStage) MakeView(ctx context.Context) (nav.View, error) {
	if s.deps.Answers != nil {
		if _, ok := s.deps.Answers.For("proxy"); ok {
			url, _ := answerString(s.deps.Answers, "proxy", "url")
			s.vals.Proxy = url
			s.deps.Logger.Debug("answer applied", "stage", "proxy", "url", url)
			return nil, nav.ErrSkipStage
		}
	}
	s.view = newTextView("Proxy", "HTTP proxy to reach the outside world (empty for none):", s.vals.Proxy)
	return s.view, nil
}

func (s *proxyStage) Commit(ctx context.Context) error {
	s.vals.Proxy = strings.TrimSpace(s.view.value)
	return nil
}

func (s *proxyStage) OnLeave(ctx context.Context) error { return nil }

// reviewStage shows the collected values. Confirming waits for the mirror
// probe through a cancellable dialog; dismissing the dialog cancels the wait
// and keeps the cursor on review.
type reviewStage struct {
	deps   Deps
	vals   *Values
	mirror *mirrorStage
}

func (s *reviewStage) Name() string { return "review" }

func (s *reviewStage) MakeView(ctx context.Context) (nav.View, error) {
	proxy := s.vals.Proxy
	if proxy == "" {
		proxy = "(none)"
	}
	pass := "(not set)"
	if s.vals.Passphrase != "" {
		pass = strings.Repeat("*", runeLen(s.vals.Passphrase))
	}
	return &reviewView{
		name: "Review",
		lines: []string{
			"Locale: " + s.vals.Locale,
			"Name:   " + s.vals.Hostname,
			"Pass:   " + pass,
			"Mirror: " + s.vals.Mirror + "  [" + s.mirror.status() + "]",
			"Proxy:  " + proxy,
		},
		note: "Press Enter to apply this configuration.",
	}, nil
}

func (s *reviewStage) Commit(ctx context.Context) error {
	show := func(cancel context.CancelFunc) {}
	hide := func() {}
	if s.deps.Modal != nil {
		show = func(cancel context.CancelFunc) {
			s.deps.Modal.ShowModal("Checking mirror "+s.vals.Mirror+" ...", cancel)
		}
		hide = s.deps.Modal.HideModal
	}

	_, err := progress.WaitCancelable(ctx, s.deps.Indication,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.mirror.probe.Wait(ctx)
		}, show, hide)
	if err != nil {
		return fmt.Errorf("mirror check: %w", err)
	}
	return nil
}

func (s *reviewStage) OnLeave(ctx context.Context) error { return nil }
