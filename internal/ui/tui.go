package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws rebuild progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *rebuildModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newRebuildModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.tracker.Stats().Stage || event.Current == 0 {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.Scope, event.Indexed)

	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete, 0)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.program != nil {
		r.program.Quit()
		// An unresponsive program must not hang Ctrl+C.
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// rebuildModel is the bubbletea model for a catalog rebuild.
type rebuildModel struct {
	tracker     *ProgressTracker
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	title       string
}

func newRebuildModel(tracker *ProgressTracker, title string) *rebuildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal))

	p := progress.New(
		progress.WithSolidFill(ColorTeal),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &rebuildModel{
		tracker:     tracker,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
		title:       title,
	}
}

// Init implements tea.Model.
func (m *rebuildModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *rebuildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-20, 20)

	case progressUpdateMsg, errorMsg:
		// The renderer already fed the tracker.
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *rebuildModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	contentWidth := max(m.width-4, 40)
	stats := m.tracker.Stats()

	sections := []string{
		m.renderStages(stats.Stage),
		m.renderDivider(contentWidth),
		m.renderProgress(stats),
	}
	if stats.Scope != "" {
		sections = append(sections, m.renderDivider(contentWidth),
			m.styles.Dim.Render(truncateScope(stats.Scope, contentWidth-2)))
	}

	title := "Courseware Index"
	if m.title != "" {
		title = fmt.Sprintf("Courseware Index • %s", m.title)
	}
	panel := m.styles.Panel.Width(contentWidth).Render(strings.Join(sections, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Header.Render(title), panel) +
		"\n" + m.renderStatusBar(stats)
}

func (m *rebuildModel) renderStages(current Stage) string {
	var parts []string
	for _, s := range []Stage{StageLibraries, StageCourses, StageVerify} {
		var icon string
		var style lipgloss.Style
		switch {
		case s < current:
			icon, style = "●", m.styles.Stage
		case s == current:
			icon, style = m.spinner.View(), m.styles.Active
		default:
			icon, style = "○", m.styles.Dim
		}
		parts = append(parts, style.Render(icon+" "+s.String()))
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *rebuildModel) renderProgress(stats ProgressStats) string {
	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...", m.spinner.View(), stats.Stage)
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := fmt.Sprintf("%d / %d scopes  •  %d documents", stats.Current, stats.Total, stats.Indexed)
	if stats.ETA > 0 {
		count += "  •  ETA: " + formatDuration(stats.ETA)
	}
	return fmt.Sprintf("%s  %s\n%s", bar, pct, m.styles.Label.Render(count))
}

func (m *rebuildModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

func (m *rebuildModel) renderStatusBar(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *rebuildModel) renderComplete() string {
	label := m.styles.Label.Render
	value := func(v any) string { return m.styles.Active.Render(fmt.Sprint(v)) }

	lines := []string{
		m.styles.Success.Render("✓ Rebuild Complete"),
		"",
		fmt.Sprintf("%s   %s", label("Courses:"), value(m.stats.Courses)),
		fmt.Sprintf("%s %s", label("Libraries:"), value(m.stats.Libraries)),
		fmt.Sprintf("%s %s", label("Documents:"), value(m.stats.Indexed)),
		fmt.Sprintf("%s  %s", label("Duration:"), value(formatDuration(m.stats.Duration))),
	}
	if m.stats.Errors > 0 {
		lines = append(lines, "", m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
	}
	if m.stats.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorTeal)).
		Padding(1, 2).
		Width(max(m.width-4, 40))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncateScope keeps the tail of a long key, where the run and block id are.
func truncateScope(scope string, maxLen int) string {
	if len(scope) <= maxLen {
		return scope
	}
	if maxLen < 4 {
		return "..."
	}
	return "..." + scope[len(scope)-maxLen+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
