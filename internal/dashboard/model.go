// Package dashboard is the terminal monitor for a stagehand host.
// It is built on bubbletea: each tick drains the transport queue
// into a status reducer and redraws.
package dashboard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/saddr"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/squeue"
	"github.com/stagehand-audio/stagehand/sstatus"
	"github.com/stagehand-audio/stagehand/stally"
)

// Link is the part of a [stagehand.Transport] the dashboard drives.
type Link interface {
	Receiver() *squeue.Queue[stagehand.Delivery]
	SendMsg(sproto.Request) error
	Connect(saddr.Identifier, saddr.IPAddress) (saddr.ConnectionInfo, error)
	Disconnect() error
	Remote() (saddr.ConnectionInfo, bool)
	Local() saddr.ConnectionInfo
	RxTally() *stally.Tracker[sproto.MessageKind]
	TxTally() *stally.Tracker[sproto.RequestKind]
}

// Config is the configuration for a [Model].
type Config struct {
	Link    Link
	Reducer *sstatus.Reducer

	// Host to connect to with the connect key,
	// and the name to show for it.
	// The subscription uses the link's local identifier.
	Host           saddr.IPAddress
	HostIdentifier saddr.Identifier

	RefreshInterval time.Duration

	// If nil, time.Now is used.
	NowFn func() time.Time
}

type tab int

const (
	tabStatus tab = iota
	tabStats
	tabCount
)

var tabNames = [tabCount]string{"Status", "Statistics"}

// playrateStep is the change applied by one playrate key press, in percent.
const playrateStep = 5

type tickMsg time.Time

// Model is the bubbletea model for the monitor.
type Model struct {
	log *slog.Logger
	cfg Config

	activeTab tab
	width     int

	status   sstatus.Status
	overflow bool

	// Result of the last key action, shown in the help line.
	lastErr error
	notice  string
}

// New returns a Model.
func New(log *slog.Logger, cfg Config) Model {
	if cfg.NowFn == nil {
		cfg.NowFn = time.Now
	}
	return Model{
		log: log,
		cfg: cfg,
	}
}

// Status returns the status as of the last tick.
func (m Model) Status() sstatus.Status {
	return m.status
}

// Err returns the error from the last key action, if any.
func (m Model) Err() error {
	return m.lastErr
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update processes messages and returns an updated model plus any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		res := m.cfg.Reducer.Drain(m.cfg.Link.Receiver())
		m.overflow = res.Overflow
		m.status = m.cfg.Reducer.Status()
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	m.lastErr = nil
	m.notice = ""

	switch key {
	case "q", "ctrl+c":
		if err := m.cfg.Link.Disconnect(); err != nil {
			m.log.Warn("Failed to unsubscribe on exit", "err", err)
		}
		return m, tea.Quit

	case "tab":
		m.activeTab = (m.activeTab + 1) % tabCount

	case "c":
		remote, err := m.cfg.Link.Connect(m.cfg.Link.Local().Identifier, m.cfg.Host)
		if err != nil {
			m.lastErr = err
			break
		}
		m.notice = "subscribed to " + m.hostLabel(remote)

	case "d":
		m.lastErr = m.cfg.Link.Disconnect()
		m.cfg.Reducer.Reset()
		m.status = sstatus.Status{}
		m.overflow = false
		m.notice = "disconnected"

	case " ", "space":
		op := sproto.TransportStart
		if m.status.Transport.Running {
			op = sproto.TransportStop
		}
		m.control(sproto.ControlAction{Op: op})

	case ".":
		m.control(sproto.ControlAction{Op: sproto.LoadNextCue})

	case ",":
		m.control(sproto.ControlAction{Op: sproto.LoadPreviousCue})

	case "0":
		m.control(sproto.ControlAction{Op: sproto.TransportZero})

	case "v":
		m.control(sproto.ControlAction{Op: sproto.ChangeJumpMode, JumpMode: sproto.JumpModeToggle})

	case "+", "=":
		m.control(sproto.ControlAction{Op: sproto.ChangePlayrate, PlayratePercent: m.nextPlayrate(playrateStep)})

	case "-":
		m.control(sproto.ControlAction{Op: sproto.ChangePlayrate, PlayratePercent: m.nextPlayrate(-playrateStep)})
	}

	return m, nil
}

func (m *Model) control(a sproto.ControlAction) {
	if err := m.cfg.Link.SendMsg(sproto.ControlCommand{Action: a}); err != nil {
		m.lastErr = err
		return
	}
	m.notice = a.Op.String()
}

// hostLabel renders the remote end with the configured host name, if any.
// The host does not report its own name.
func (m Model) hostLabel(remote saddr.ConnectionInfo) string {
	if m.cfg.HostIdentifier == "" {
		return remote.String()
	}
	remote.Identifier = m.cfg.HostIdentifier
	return remote.String()
}

// nextPlayrate returns the current playrate moved by delta percent,
// never below one step.
func (m Model) nextPlayrate(delta int) uint16 {
	cur := int(m.status.Transport.PlayratePercent)
	if cur == 0 {
		cur = 100
	}
	return uint16(max(cur+delta, playrateStep))
}

// View renders the dashboard.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("stagehand monitor"))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	sb.WriteString("\n")

	var tabParts []string
	for i, name := range tabNames {
		label := fmt.Sprintf(" %s ", name)
		if tab(i) == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
	}
	sb.WriteString(strings.Join(tabParts, ""))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", max(m.width, 40)))
	sb.WriteString("\n")

	switch m.activeTab {
	case tabStatus:
		sb.WriteString(m.renderStatusTab())
	case tabStats:
		sb.WriteString(m.renderStatsTab())
	}
	sb.WriteString("\n")

	sb.WriteString(m.renderHelp())
	return sb.String()
}

func (m Model) networkState() (string, bool, bool) {
	switch {
	case m.overflow:
		return "Living in the past. Clearing backlog...", false, false
	case !m.status.Active:
		return "Not Connected", false, true
	default:
		return "Ok", true, false
	}
}

func (m Model) renderStatusBar() string {
	s := m.status
	h := s.Health(m.cfg.NowFn())

	net, ok, warn := m.networkState()
	parts := []string{
		pick(ok, warn).Render("HOST " + net),
	}

	beat := s.CurrentBeat()
	parts = append(parts, pick(s.Transport.Running, true).Render(fmt.Sprintf(
		"LTC %s  BEAT %d.%d", s.Timecode, beat.BarNumber, beat.Count,
	)))

	parts = append(parts, pick(!h.NearCueEnd, true).Render(fmt.Sprintf(
		"CUE %03d:%6s %s", s.Cue.CueIdx, s.Cue.Cue.Metadata.HumanIdent, s.Cue.Cue.Metadata.Name,
	)))

	local := m.cfg.NowFn().Format(time.TimeOnly)
	host := "--:--:--"
	if h.HaveHeartbeat {
		host = time.Unix(int64(s.Heartbeat.SystemTime), 0).Format(time.TimeOnly)
	}
	parts = append(parts, pick(h.ClockOK, !h.HaveHeartbeat).Render(fmt.Sprintf(
		"CLOCK %s  HOST %s", local, host,
	)))

	parts = append(parts, pick(h.PerfOK, !h.HaveHeartbeat).Render(fmt.Sprintf(
		"PERF %.1f%%  %dkHz", s.Heartbeat.CPUUseAudio, s.Heartbeat.ProcessFreqMain/1000,
	)))

	return strings.Join(parts, "  |  ")
}

func (m Model) renderStatusTab() string {
	s := m.status
	var sb strings.Builder

	row := func(k, v string) {
		sb.WriteString(headerCellStyle.Render(fmt.Sprintf("%-12s", k)))
		sb.WriteString(rowStyle.Render(v))
		sb.WriteString("\n")
	}

	local := m.cfg.Link.Local()
	row("Local", local.String())
	if remote, ok := m.cfg.Link.Remote(); ok {
		row("Remote", m.hostLabel(remote))
	} else {
		row("Remote", dimStyle.Render("not connected"))
	}

	if s.Seen == 0 {
		sb.WriteString(dimStyle.Render("No data received yet."))
		return sb.String()
	}

	row("Show", fmt.Sprintf("%s (%d cues)", s.Show.Name, len(s.Show.Cues)))
	row("Transport", fmt.Sprintf(
		"running=%t vlt=%t playrate=%d%%", s.Transport.Running, s.Transport.VLT, s.Transport.PlayratePercent,
	))
	row("Tempo", fmt.Sprintf("%.1f bpm", s.Beat.Tempo))
	row("Audio", fmt.Sprintf(
		"running=%t %d Hz / %d frames, load %.1f%%",
		s.JACK.Running, s.JACK.SampleRate, s.JACK.BufferSize, s.JACK.CPULoad,
	))
	row("Subscribers", fmt.Sprintf("%d", len(s.Network.Subscribers)))
	for _, sub := range s.Network.Subscribers {
		row("", fmt.Sprintf("%s %s", sub.Identifier, sub.Address))
	}
	if s.Heartbeat.SystemVersion != "" {
		row("Host version", fmt.Sprintf("%s (common %s)", s.Heartbeat.SystemVersion, s.Heartbeat.CommonVersion))
	}

	return sb.String()
}

func (m Model) renderStatsTab() string {
	var sb strings.Builder

	sb.WriteString(headerCellStyle.Render("Received"))
	sb.WriteString("\n")
	writeTally(&sb, m.cfg.Link.RxTally())

	sb.WriteString("\n")
	sb.WriteString(headerCellStyle.Render("Sent"))
	sb.WriteString("\n")
	writeTally(&sb, m.cfg.Link.TxTally())

	return sb.String()
}

func writeTally[K stally.Key](sb *strings.Builder, t *stally.Tracker[K]) {
	snap := t.Snapshot()
	if len(snap) == 0 {
		sb.WriteString(dimStyle.Render("  none"))
		sb.WriteString("\n")
		return
	}

	for _, k := range stally.SortedKeys(snap) {
		e := snap[k]
		sb.WriteString(rowStyle.Render(fmt.Sprintf("  %-22s %8d msgs %12d bytes", k, e.Count, e.Bytes)))
		sb.WriteString("\n")
	}
}

func (m Model) renderHelp() string {
	line := "space: start/stop  .,: cue  0: zero  v: jump  +/-: rate  c: connect  d: disconnect  tab: tab  q: quit"

	switch {
	case m.lastErr != nil:
		msg := m.lastErr.Error()
		if errors.Is(m.lastErr, stagehand.ErrNotConnected) {
			msg = "not connected; press c to connect"
		}
		return errStyle.Render("Error: "+msg) + "\n" + helpStyle.Render(line)
	case m.notice != "":
		return helpStyle.Render(m.notice) + "\n" + helpStyle.Render(line)
	default:
		return helpStyle.Render(line)
	}
}
