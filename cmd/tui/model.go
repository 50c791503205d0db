// Package tui is an interactive terminal search over recommendations.
package tui

import (
	"context"
	"fmt"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/reel-places/internal/recommend"
)

// Searcher runs one recommendation lookup.
type Searcher interface {
	Lookup(ctx context.Context, displayTerm string) (*recommend.Lookup, error)
}

var filters = []recommend.MediaFilter{
	recommend.FilterAll,
	recommend.FilterMovie,
	recommend.FilterSeries,
}

type keyMap struct {
	Search key.Binding
	Filter key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Search: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "search"),
	),
	Filter: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "movie/series filter"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "stop waiting"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// lookupDoneMsg carries a finished lookup back into the update loop.
type lookupDoneMsg struct {
	seq    int
	lookup *recommend.Lookup
	err    error
}

// Model follows the Bubble Tea architecture.
type Model struct {
	ctx      context.Context
	searcher Searcher

	input   textinput.Model
	spinner spinner.Model

	state     recommend.State
	filterIdx int
	lookup    *recommend.Lookup
	err       error

	// seq identifies the in-flight lookup, answers for older ones are dropped
	seq    int
	cancel context.CancelFunc

	width    int
	quitting bool
}

// NewModel builds the search screen.
func NewModel(ctx context.Context, searcher Searcher) Model {
	input := textinput.New()
	input.Placeholder = "a city, a country, a landmark..."
	input.Focus()
	input.CharLimit = 128
	input.Width = 50
	input.Prompt = "🔎 "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = progressStyle

	return Model{
		ctx:      ctx,
		searcher: searcher,
		input:    input,
		spinner:  sp,
		state:    recommend.StateIdle,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state != recommend.StateLookingUp {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case lookupDoneMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.cancel = nil
		if msg.err != nil {
			m.state = recommend.StateFailed
			m.err = msg.err
			m.lookup = nil
			return m, nil
		}
		m.state = recommend.StateSuccess
		m.err = nil
		m.lookup = msg.lookup
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Filter):
		m.filterIdx = (m.filterIdx + 1) % len(filters)
		return m, nil

	case key.Matches(msg, keys.Cancel):
		if m.state == recommend.StateLookingUp && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case key.Matches(msg, keys.Search):
		if m.state == recommend.StateLookingUp {
			return m, nil
		}
		term := m.input.Value()
		if strings.TrimSpace(term) == "" {
			m.state = recommend.StateFailed
			m.err = recommend.ErrEmptyTerm
			return m, nil
		}
		return m.startLookup(term)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startLookup(term string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.seq++
	m.cancel = cancel
	m.state = recommend.StateLookingUp
	m.err = nil
	m.lookup = nil

	return m, tea.Batch(m.spinner.Tick, lookupCmd(ctx, cancel, m.searcher, m.seq, term))
}

func lookupCmd(ctx context.Context, cancel context.CancelFunc, searcher Searcher, seq int, term string) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		got, err := searcher.Lookup(ctx, term)
		return lookupDoneMsg{seq: seq, lookup: got, err: err}
	}
}

// Filter returns the active media filter.
func (m Model) Filter() recommend.MediaFilter {
	return filters[m.filterIdx]
}

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return subtitleStyle.Render("bye\n")
	}

	sections := []string{
		headerStyle.Render("🎬 reel-places"),
		m.input.View(),
		m.renderTabs(),
		m.renderBody(),
		helpStyle.Render("enter: search • tab: filter • esc: stop waiting • ctrl+c: quit"),
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(filters))
	for i, f := range filters {
		style := tabStyle
		if i == m.filterIdx {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(string(f)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderBody() string {
	switch m.state {
	case recommend.StateLookingUp:
		return m.spinner.View() + " Looking for recommendations..."
	case recommend.StateFailed:
		return m.renderError()
	case recommend.StateSuccess:
		return m.renderResult()
	default:
		return subtitleStyle.Render("Type a place to get movies and series set there.")
	}
}

func (m Model) renderError() string {
	switch {
	case errors.Is(m.err, recommend.ErrEmptyTerm):
		return errorStyle.Render("Please enter a place to search for.")
	case errors.Is(m.err, recommend.ErrCanceled):
		return subtitleStyle.Render("Stopped waiting. The result will be cached once it arrives.")
	}

	msg := "Lookup failed: " + m.err.Error()
	if typed, ok := recommend.AsError(m.err); ok && typed.Retryable() {
		msg += "\nPress enter to try again."
	}
	return errorStyle.Render(msg)
}

func (m Model) renderResult() string {
	if m.lookup == nil || m.lookup.Result == nil {
		return subtitleStyle.Render("No result")
	}

	result := m.Filter().Apply(m.lookup.Result)
	var sb strings.Builder
	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("%q from %s", m.lookup.Term, m.lookup.Source)))
	writeSection(&sb, "Recommendations", result.Recommendations)
	writeSection(&sb, "You might also like", result.AdditionalRecommendations)
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, items []recommend.Recommendation) {
	sb.WriteString("\n" + sectionStyle.Render(title) + "\n")
	if len(items) == 0 {
		sb.WriteString(subtitleStyle.Render("  nothing here") + "\n")
		return
	}

	for _, item := range items {
		sb.WriteString("  " + itemTitleStyle.Render(formatTitle(item)) + "\n")
		if item.Reason != "" {
			sb.WriteString("    " + item.Reason + "\n")
		}
		if len(item.WhereToWatch) > 0 {
			sb.WriteString("    watch on " + strings.Join(item.WhereToWatch, ", ") + "\n")
		}
	}
}

func formatTitle(item recommend.Recommendation) string {
	parts := []string{item.Title}
	if item.Year != "" {
		parts = append(parts, "("+item.Year.String()+")")
	}
	if item.Type != "" {
		parts = append(parts, "· "+string(item.Type))
	}
	if item.Rating != nil {
		parts = append(parts, fmt.Sprintf("★ %.0f", *item.Rating))
	}
	if !item.HasImage() {
		parts = append(parts, "[no poster]")
	}
	return strings.Join(parts, " ")
}
