package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/deps"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listErrorStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// ChunkListModel - Interactive chunk browser
// =============================================================================

// ChunkListModel is the bubbletea model for browsing a chunk plan. The chunk
// table is shown first; enter opens the module list of the selected chunk.
type ChunkListModel struct {
	Graph  *deps.Graph
	Plan   *chunk.Plan
	Files  map[string]string // Logical chunk name to output file, if built
	Cursor int
	Height int
	Offset int

	// Open is the chunk whose modules are listed, or nil.
	Open      *chunk.Chunk
	ModCursor int
	ModOffset int
}

// NewChunkListModel creates a new chunk browser.
func NewChunkListModel(g *deps.Graph, plan *chunk.Plan, files map[string]string) ChunkListModel {
	return ChunkListModel{
		Graph:  g,
		Plan:   plan,
		Files:  files,
		Height: 15,
	}
}

func (m ChunkListModel) Init() tea.Cmd {
	return nil
}

func (m ChunkListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "backspace":
			if m.Open == nil {
				return m, tea.Quit
			}
			m.Open = nil
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "enter":
			if m.Open == nil && len(m.Plan.Chunks) > 0 {
				m.Open = m.Plan.Chunks[m.Cursor]
				m.ModCursor, m.ModOffset = 0, 0
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

// move shifts the active cursor by delta, scrolling its window.
func (m *ChunkListModel) move(delta int) {
	cursor, offset, n := &m.Cursor, &m.Offset, len(m.Plan.Chunks)
	if m.Open != nil {
		cursor, offset, n = &m.ModCursor, &m.ModOffset, len(m.Open.Modules)
	}
	next := *cursor + delta
	if next < 0 || next >= n {
		return
	}
	*cursor = next
	if *cursor < *offset {
		*offset = *cursor
	}
	if *cursor >= *offset+m.Height {
		*offset = *cursor - m.Height + 1
	}
}

func (m ChunkListModel) View() string {
	if m.Open != nil {
		return m.moduleView()
	}
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Chunks"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ modules  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Plan.Chunks))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		c := m.Plan.Chunks[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		file := m.Files[c.LogicalName()]
		if file == "" {
			file = "—"
		}
		entry := c.Entry
		if entry == "" {
			entry = "—"
		}
		rows = append(rows, []string{cursor, c.LogicalName(), c.Policy, entry, fmt.Sprint(len(c.Modules)), file})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Chunk", "Policy", "Entry", "Modules", "File").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Plan.Chunks) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col == 2 || col == 5 {
				base = base.Foreground(colorGray)
			}
			if idx == m.Cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			if m.Plan.Chunks[idx].IsEntry() {
				return base.Foreground(colorWhite)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Plan.Chunks))))

	return b.String()
}

func (m ChunkListModel) moduleView() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Open.LogicalName()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  esc back  q quit"))
	b.WriteString("\n\n")

	end := min(m.ModOffset+m.Height, len(m.Open.Modules))
	for i := m.ModOffset; i < end; i++ {
		id := m.Open.Modules[i]
		mod, _ := m.Graph.Module(id)

		cursor := "  "
		if i == m.ModCursor {
			cursor = "> "
		}
		detail := ""
		if mod != nil {
			detail = fmt.Sprintf("%s %s", mod.Kind, formatBytes(len(mod.Output)))
		}
		line := fmt.Sprintf("%s%-48s  %s", cursor, id, listDimStyle.Render(detail))

		switch {
		case mod != nil && mod.Failed():
			b.WriteString(listErrorStyle.Render(line))
		case i == m.ModCursor:
			b.WriteString(listSelectedStyle.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")

		if i == m.ModCursor && mod != nil && mod.Failed() {
			b.WriteString("    " + listErrorStyle.Render(mod.Err.Error()) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.ModCursor+1, len(m.Open.Modules))))
	return b.String()
}
