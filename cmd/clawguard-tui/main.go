// Command clawguard-tui is a terminal dashboard for the clawguard daemon:
// pending approvals, confirmation challenges, and skill health, with
// single-key approve/reject. Works over SSH, no GUI needed.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func main() {
	apiURL := flag.String("api", "http://127.0.0.1:3030", "clawguard API URL")
	token := flag.String("token", os.Getenv("CLAWGUARD_TOKEN"), "API bearer token")
	flag.Parse()

	client := newAPIClient(*apiURL, *token)
	if _, err := client.status(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

var (
	primaryColor = lipgloss.Color("#7C3AED")
	mutedColor   = lipgloss.Color("#6B7280")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	warnColor    = lipgloss.Color("#F59E0B")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	paneTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	sidebarStyle = lipgloss.NewStyle().
			Width(30).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().Foreground(mutedColor)

	statusOK   = lipgloss.NewStyle().Foreground(successColor)
	statusBad  = lipgloss.NewStyle().Foreground(errorColor)
	statusWarn = lipgloss.NewStyle().Foreground(warnColor)
	flashStyle = lipgloss.NewStyle().Foreground(warnColor).Bold(true)
)

type refreshMsg struct {
	status        daemonStatus
	approvals     []pendingAction
	confirmations []challenge
	skills        []skillState
	err           error
}

type actionDoneMsg struct {
	note string
	err  error
}

type model struct {
	client        *apiClient
	table         table.Model
	status        daemonStatus
	approvals     []pendingAction
	confirmations []challenge
	skills        []skillState
	flash         string
	width         int
	height        int
	ready         bool
}

func newModel(client *apiClient) model {
	columns := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Tool", Width: 12},
		{Title: "Actor", Width: 12},
		{Title: "Age", Width: 7},
		{Title: "Params", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(primaryColor)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(primaryColor)
	t.SetStyles(styles)

	return model{client: client, table: t}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg { return refreshTick{} })
}

type refreshTick struct{}

func (m model) refreshCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		var msg refreshMsg
		var err error
		if msg.status, err = client.status(); err != nil {
			msg.err = err
			return msg
		}
		if msg.approvals, err = client.approvals(); err != nil {
			msg.err = err
			return msg
		}
		if msg.confirmations, err = client.confirmations(); err != nil {
			msg.err = err
			return msg
		}
		msg.skills, msg.err = client.skills()
		return msg
	}
}

func (m model) selectedAction() (pendingAction, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.approvals) {
		return pendingAction{}, false
	}
	return m.approvals[idx], true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "a":
			if action, ok := m.selectedAction(); ok {
				return m, m.resolveCmd(action.ID, true)
			}

		case "r":
			if action, ok := m.selectedAction(); ok {
				return m, m.resolveCmd(action.ID, false)
			}

		case "c":
			if len(m.confirmations) > 0 {
				return m, m.confirmCmd(m.confirmations[0].ID)
			}
		}

	case refreshTick:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case refreshMsg:
		if msg.err != nil {
			m.flash = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		m.approvals = msg.approvals
		m.confirmations = msg.confirmations
		m.skills = msg.skills
		m.table.SetRows(approvalRows(m.approvals))
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.flash = "error: " + msg.err.Error()
		} else {
			m.flash = msg.note
		}
		return m, m.refreshCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 35)
		m.table.SetHeight(m.height - 8)
		m.ready = true
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) resolveCmd(id string, approve bool) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if approve {
			if err := client.approve(id); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{note: "approved " + shortID(id)}
		}
		if err := client.reject(id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: "rejected " + shortID(id)}
	}
}

func (m model) confirmCmd(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.confirm(id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: "confirmed " + shortID(id)}
	}
}

func (m model) View() string {
	if !m.ready {
		return "Connecting to clawguard..."
	}

	header := headerStyle.Width(m.width).Render(fmt.Sprintf(
		"clawguard  |  pending: %d  confirmations: %d  skills: %d/%d running  up: %s",
		m.status.PendingApprovals,
		m.status.Confirmations,
		m.status.SkillsRunning,
		m.status.Skills,
		formatDuration(time.Duration(m.status.UptimeSecs)*time.Second),
	))

	approvalsPane := lipgloss.JoinVertical(lipgloss.Left,
		paneTitle.Render(" Pending approvals"),
		m.table.View(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", approvalsPane)

	footer := footerStyle.Render(" a: approve | r: reject | c: confirm challenge | up/down: select | q: quit")
	if m.flash != "" {
		footer = flashStyle.Render(" "+m.flash) + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m model) renderSidebar() string {
	var sb strings.Builder

	sb.WriteString(paneTitle.Render("Skills"))
	sb.WriteString("\n")
	if len(m.skills) == 0 {
		sb.WriteString(footerStyle.Render("none installed"))
		sb.WriteString("\n")
	}
	for _, s := range m.skills {
		var indicator string
		switch s.Status {
		case "running":
			indicator = statusOK.Render("●")
		case "crashed", "crash_loop":
			indicator = statusBad.Render("●")
		case "disabled":
			indicator = footerStyle.Render("○")
		default:
			indicator = statusWarn.Render("○")
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n", indicator, s.Name, footerStyle.Render(s.Status)))
		if s.Crashes > 0 {
			sb.WriteString(footerStyle.Render(fmt.Sprintf("  crashes: %d", s.Crashes)))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(paneTitle.Render("Confirmations"))
	sb.WriteString("\n")
	if len(m.confirmations) == 0 {
		sb.WriteString(footerStyle.Render("none pending"))
		sb.WriteString("\n")
	}
	for _, ch := range m.confirmations {
		remaining := time.Until(ch.ExpiresAt).Round(time.Second)
		sb.WriteString(fmt.Sprintf("%s %s\n", statusWarn.Render("!"), ch.Tool))
		sb.WriteString(footerStyle.Render(fmt.Sprintf("  %s, expires %s", ch.Summary, remaining)))
		sb.WriteString("\n")
	}

	return sidebarStyle.Height(m.height - 4).Render(sb.String())
}

func approvalRows(actions []pendingAction) []table.Row {
	rows := make([]table.Row, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, table.Row{
			shortID(a.ID),
			a.Tool,
			a.Actor,
			formatDuration(time.Since(a.ProposedAt)),
			summarizeParams(a.Params),
		})
	}
	return rows
}

func summarizeParams(params map[string]any) string {
	parts := make([]string, 0, len(params))
	for k, v := range params {
		s := fmt.Sprintf("%v", v)
		if len(s) > 24 {
			s = s[:24] + "…"
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
}
