package tui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pakholeung37/midi-lab/config"
	"github.com/pakholeung37/midi-lab/debug"
	"github.com/pakholeung37/midi-lab/midi"
	"github.com/pakholeung37/midi-lab/playback"
	"github.com/pakholeung37/midi-lab/score"
	"github.com/pakholeung37/midi-lab/stats"
	"github.com/pakholeung37/midi-lab/theme"
	"github.com/pakholeung37/midi-lab/theory"
	"github.com/pakholeung37/midi-lab/widgets"
)

const (
	bpmStep    = 5.0
	windowStep = 1.0
	chromeRows = 7 // header, info, blank, keyboard, legend, blank, help
)

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "play / pause"},
		{Key: "s esc", Desc: "stop"},
		{Key: "← →", Desc: "previous / next measure"},
		{Key: "home", Desc: "back to start"},
	}},
	{Title: "Practice", Keys: []widgets.KeyBinding{
		{Key: "+ -", Desc: "tempo"},
		{Key: "0", Desc: "original tempo"},
		{Key: ", .", Desc: "transpose"},
		{Key: "m", Desc: "metronome"},
		{Key: "c", Desc: "countdown"},
		{Key: "v", Desc: "mute"},
		{Key: "L", Desc: "loop"},
		{Key: "{ }", Desc: "loop start"},
		{Key: "[ ]", Desc: "loop end"},
	}},
	{Title: "View", Keys: []widgets.KeyBinding{
		{Key: "↑ ↓", Desc: "zoom"},
		{Key: "t", Desc: "theme"},
		{Key: "?", Desc: "help"},
		{Key: "q", Desc: "quit"},
	}},
}

// lines taken by the help table: titles plus bindings
var helpRows = func() int {
	n := 0
	for _, sec := range keyHelp {
		n += 1 + len(sec.Keys)
	}
	return n
}()

type Model struct {
	Session *playback.Session
	Config  *config.Config
	Theme   *theme.Theme
	Devices *midi.DeviceManager // nil when input is disabled
	Store   stats.Storage

	frames      chan struct{}
	events      chan playback.Event
	render      *renderHook
	unsubscribe []func()

	width, height int
	window        float64
	showHelp      bool
	countdown     int
	message       string
	stats         stats.ScoreStats
	keyboards     map[string]bool
	quitting      bool
}

// renderHook holds the frame subscription, taken only while playing so
// the scheduler can stop when the transport is idle.
type renderHook struct {
	mu     sync.Mutex
	sched  *playback.Scheduler
	redraw func()
	unsub  func()
}

func (h *renderHook) set(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case on && h.unsub == nil:
		h.unsub = h.sched.Subscribe(func(time.Time, float64) { h.redraw() }, playback.PriorityRender)
	case !on && h.unsub != nil:
		h.unsub()
		h.unsub = nil
	}
}

type frameMsg struct{}

type eventMsg playback.Event

type DeviceEventMsg midi.DeviceEvent

// NewModel hooks the model to state changes and transport events, and to
// the render frame while playing.
// Call Close after the program exits.
func NewModel(session *playback.Session, cfg *config.Config, th *theme.Theme, devices *midi.DeviceManager, store stats.Storage) Model {
	m := Model{
		Session:   session,
		Config:    cfg,
		Theme:     th,
		Devices:   devices,
		Store:     store,
		frames:    make(chan struct{}, 1),
		events:    make(chan playback.Event, 16),
		window:    cfg.UI.Window,
		width:     80,
		height:    24,
		keyboards: make(map[string]bool),
	}

	frames, events := m.frames, m.events
	redraw := func() {
		select {
		case frames <- struct{}{}:
		default:
		}
	}
	m.render = &renderHook{sched: session.Scheduler, redraw: redraw}
	m.render.set(session.Coordinator.Status() == playback.Playing)
	m.unsubscribe = append(m.unsubscribe,
		func() { m.render.set(false) },
		session.State.Subscribe(redraw),
		session.Coordinator.Observe(func(ev playback.Event) {
			select {
			case events <- ev:
			default:
				debug.Log("tui", "dropped event %s", ev.Kind)
			}
		}),
	)
	m.refreshStats()
	return m
}

// Close detaches the model from the session
func (m Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
}

func waitForFrame(frames <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-frames
		return frameMsg{}
	}
}

func waitForEvent(events <-chan playback.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-events)
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForFrame(m.frames),
		waitForEvent(m.events),
		ListenForDevices(m.Devices),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	coord := m.Session.Coordinator

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		m.message = ""
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			coord.Stop()
			return m, tea.Quit

		case " ":
			coord.Toggle()
		case "s", "esc":
			coord.Stop()
		case "left", "h":
			coord.SeekByMeasure(-1)
		case "right", "l":
			coord.SeekByMeasure(1)
		case "home":
			coord.Seek(0)

		case "+", "=":
			coord.SetBPM(coord.BPM() + bpmStep)
		case "-", "_":
			coord.SetBPM(coord.BPM() - bpmStep)
		case "0":
			coord.SetBPM(m.Session.State.OriginalBPM())

		case ",":
			m.transpose(-1)
		case ".":
			m.transpose(1)

		case "m":
			coord.SetMetronome(!coord.Settings().Metronome)
		case "c":
			coord.SetCountdown(!coord.Settings().Countdown)
		case "v":
			coord.ToggleMute()

		case "L":
			coord.ToggleLoop()
		case "[", "]":
			loop := coord.Settings().Loop
			if msg.String() == "[" {
				loop.End--
			} else {
				loop.End++
			}
			coord.SetLoopRange(loop.Start, max(loop.End, loop.Start))
		case "{", "}":
			loop := coord.Settings().Loop
			if msg.String() == "{" {
				loop.Start--
			} else {
				loop.Start++
			}
			coord.SetLoopRange(max(loop.Start, 1), max(loop.End, loop.Start))

		case "up", "k":
			m.window = math.Max(1, m.window-windowStep)
			m.Config.UI.Window = m.window
		case "down", "j":
			m.window = math.Min(30, m.window+windowStep)
			m.Config.UI.Window = m.window

		case "t":
			p := theme.Next(m.Theme.Palette.ID)
			if err := coord.Recolor(p); err != nil {
				m.message = err.Error()
				break
			}
			m.Theme.Palette = p
			m.message = "theme: " + p.Name

		case "?":
			m.showHelp = !m.showHelp
		}

	case frameMsg:
		return m, waitForFrame(m.frames)

	case eventMsg:
		m.handleEvent(playback.Event(msg))
		return m, waitForEvent(m.events)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.keyboards[event.ID] = true
			m.message = "keyboard connected: " + event.ID
			session := m.Session
			go func() {
				for ev := range event.Controller.NoteEvents() {
					session.HandleNote(ev.Note, ev.Velocity)
				}
			}()
		case midi.DeviceDisconnected:
			delete(m.keyboards, event.ID)
			m.Session.State.ClearSource(playback.SourceInput)
			m.message = "keyboard disconnected: " + event.ID
		}
		return m, ListenForDevices(m.Devices)
	}

	return m, nil
}

func (m *Model) transpose(delta int) {
	if err := m.Session.Coordinator.Transpose(delta); err != nil {
		m.message = err.Error()
	}
}

func (m *Model) handleEvent(ev playback.Event) {
	switch ev.Kind {
	case playback.EventCountdownBeat:
		m.countdown = ev.Beat
		return
	case playback.EventLoaded:
		m.message = "loaded " + ev.Score
	case playback.EventEnded:
		m.message = "finished"
	case playback.EventLooped:
		m.message = "loop"
	}
	m.countdown = 0
	m.render.set(m.Session.Coordinator.Status() == playback.Playing)
	m.refreshStats()
}

func (m *Model) refreshStats() {
	s := m.Session.Coordinator.Score()
	if s == nil || m.Store == nil {
		m.stats = stats.ScoreStats{}
		return
	}
	m.stats = stats.Load(m.Store).Scores[s.Name]
}

// viewRange picks the pitch columns: the score's range widened to whole
// octaves, trimmed to the terminal width around its middle.
func (m Model) viewRange() (uint8, uint8) {
	lo, hi := uint8(48), uint8(83)
	if s := m.Session.Coordinator.Score(); s != nil {
		if l, h, ok := s.PitchRange(); ok {
			lo, hi = l, h
		}
	}
	lo, hi = widgets.KeyboardRange(lo, hi)
	if cols := int(hi) - int(lo) + 1; cols > m.width && m.width > 0 {
		mid := (int(lo) + int(hi)) / 2
		start := max(0, mid-m.width/2)
		lo, hi = uint8(start), uint8(min(127, start+m.width-1))
	}
	return lo, hi
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	coord := m.Session.Coordinator
	th := m.Theme
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	s := coord.Score()
	if s == nil {
		return headerStyle.Render("midi-lab") + "\n\n" + dimStyle.Render("no score loaded  q:quit")
	}

	snap := m.Session.State.Snapshot()
	settings := coord.Settings()

	// transport line
	icon := th.Symbols.Paused
	switch coord.Status() {
	case playback.Playing:
		icon = th.Symbols.Playing
	case playback.CountingDown:
		icon = th.Symbols.Count
	}
	ratio := 100.0
	if snap.OriginalBPM > 0 {
		ratio = snap.BPM / snap.OriginalBPM * 100
	}
	transport := fmt.Sprintf("%c %s  %s / %s  %.0f bpm (%.0f%%)  measure %d/%d",
		icon, s.Name,
		theory.FormatSeconds(snap.CurrentTime), theory.FormatSeconds(s.Duration),
		snap.BPM, ratio,
		coord.CurrentMeasure(), coord.TotalMeasures())
	if m.countdown > 0 {
		transport += warnStyle.Render(fmt.Sprintf("  %d", m.countdown))
	}

	// theory line
	var info []string
	var keySet *theory.PitchClassSet
	if k, ok := coord.Key(); ok {
		set := theory.ScalePitchClasses(k.Tonic, k.Scale)
		keySet = &set
		name := theory.FormatKey(k.Tonic, k.Scale)
		if t, ok := coord.Tonality(); ok {
			name += fmt.Sprintf(" (inferred %.0f%%)", t.Confidence*100)
		}
		info = append(info, name)
	}
	sig := s.TimeSignatureAt(snap.CurrentTime)
	if sig.Numerator > 0 {
		info = append(info, theory.FormatTimeSignature(sig.Numerator, sig.Denominator))
	}
	if chord, ok := theory.RecognizeChord(m.Session.State.ActivePitches()); ok {
		info = append(info, "chord "+chord.Display)
	}
	if tr := coord.TransposeAmount(); tr != 0 {
		info = append(info, fmt.Sprintf("transpose %+d", tr))
	}
	if settings.Loop.Enabled {
		info = append(info, fmt.Sprintf("loop %d-%d", settings.Loop.Start, settings.Loop.End))
	}
	if settings.Metronome {
		info = append(info, "metronome")
	}
	if settings.Muted {
		info = append(info, "muted")
	}
	if len(m.keyboards) > 0 {
		info = append(info, fmt.Sprintf("%d keyboard(s)", len(m.keyboards)))
	}
	if m.stats.Plays > 0 {
		info = append(info, fmt.Sprintf("played %s times, %.0f%% finished, last %s",
			humanize.Comma(int64(m.stats.Plays)), m.stats.CompletionRate*100,
			humanize.Time(m.stats.LastPlayed())))
	}

	// waterfall
	lo, hi := m.viewRange()
	rows := max(4, m.height-chromeRows)
	if m.showHelp {
		rows = max(4, rows-helpRows)
	}
	w := waterfall{Lo: lo, Hi: hi, Rows: rows, Window: m.window}

	var notes []score.Note
	if ix := coord.Index(); ix != nil {
		notes = ix.RangeQuery(snap.CurrentTime, snap.CurrentTime+m.window)
	}
	beats := theory.BeatsInRange(snap.CurrentTime, snap.CurrentTime+m.window, snap.OriginalBPM, s.TimeSignatures)
	lines := renderGrid(w.grid(notes, beats, snap.CurrentTime, keySet), th)

	active := make(map[uint8]theme.RGB)
	for pitch, k := range m.Session.State.ActiveKeys() {
		active[pitch] = k.Color
	}

	var out strings.Builder
	out.WriteString(headerStyle.Render(transport))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(strings.Join(info, "  ·  ")))
	out.WriteString("\n\n")
	out.WriteString(strings.Join(lines, "\n"))
	out.WriteString("\n")
	out.WriteString(widgets.RenderKeyboard(lo, hi, active, th))
	out.WriteString("\n")
	out.WriteString(m.legend())
	out.WriteString("\n\n")
	if m.showHelp {
		out.WriteString(widgets.RenderKeyHelp(keyHelp))
		out.WriteString("\n")
	} else {
		out.WriteString(dimStyle.Render("space:play/pause  s:stop  ←/→:measure  +/-:tempo  ?:help  q:quit"))
	}
	if m.message != "" {
		out.WriteString("  ")
		out.WriteString(warnStyle.Render(m.message))
	}
	return out.String()
}

func (m Model) legend() string {
	s := m.Session.Coordinator.Score()
	var items []string
	for _, t := range s.Tracks {
		items = append(items, widgets.RenderLegendItem(t.Color, t.Name, humanize.Comma(int64(t.NoteCount))))
	}
	items = append(items, widgets.RenderLegendItem(m.Theme.InputColor(), "input", ""))
	return widgets.RenderLegend(items)
}
