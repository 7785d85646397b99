package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	hitStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("228")).
			Foreground(lipgloss.Color("0"))

	currentHitStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("196")).
			Foreground(lipgloss.Color("15"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(2)
)

// page is one rendered document shown by the pager
type page struct {
	Title string
	Body  string
}

type pagerSearch struct {
	active bool
	input  textinput.Model
	hits   []int
	at     int
}

// pager shows a sequence of pages, one at a time, with incremental search
// inside the current page
type pager struct {
	viewport viewport.Model
	pages    []page
	current  int
	ready    bool
	search   pagerSearch
}

func newPager(pages []page) *pager {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	return &pager{
		pages:  pages,
		search: pagerSearch{input: ti},
	}
}

func (m *pager) Init() tea.Cmd {
	return nil
}

func (m *pager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.search.active {
			switch msg.Type {
			case tea.KeyEscape:
				m.search.active = false
				m.search.input.Reset()
				m.clearHits()
			case tea.KeyEnter:
				if m.search.input.Value() != "" {
					m.runSearch()
				}
				m.search.active = false
			default:
				var cmd tea.Cmd
				m.search.input, cmd = m.search.input.Update(msg)
				return m, cmd
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.search.input.Reset()
			m.clearHits()
		case "tab", "]":
			m.showPage(m.current + 1)
			return m, nil
		case "shift+tab", "[":
			m.showPage(m.current - 1)
			return m, nil
		case "/":
			m.search.active = true
			m.search.input.Focus()
			return m, textinput.Blink
		case "n":
			m.jump(1)
			return m, nil
		case "N":
			m.jump(-1)
			return m, nil
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.Style = lipgloss.NewStyle().PaddingLeft(2).PaddingRight(2)
			m.ready = true
			m.showPage(0)
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *pager) View() string {
	if !m.ready {
		return "\nInitializing..."
	}

	header := ""
	if len(m.pages) > 0 {
		header = titleStyle.Render(fmt.Sprintf("%d/%d  %s", m.current+1, len(m.pages), m.pages[m.current].Title))
	}

	var footer string
	if m.search.active {
		footer = m.search.input.View()
	} else {
		keys := "↑/k ↓/j scroll • tab/] next page • shift+tab/[ previous page • / search • q quit"
		if len(m.search.hits) > 0 {
			keys = fmt.Sprintf("match %d/%d • n next • N previous • ", m.search.at+1, len(m.search.hits)) + keys
		}
		footer = helpStyle.Render(keys)
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m *pager) showPage(i int) {
	if len(m.pages) == 0 {
		return
	}
	m.current = (i + len(m.pages)) % len(m.pages)
	m.search.hits = nil
	m.search.at = 0
	m.viewport.SetContent(m.pages[m.current].Body)
	m.viewport.GotoTop()
}

func (m *pager) body() string {
	if len(m.pages) == 0 {
		return ""
	}
	return m.pages[m.current].Body
}

func (m *pager) runSearch() {
	body := m.body()
	m.search.hits = findMatches(body, m.search.input.Value())
	m.search.at = 0
	if len(m.search.hits) == 0 {
		m.viewport.SetContent(body)
		return
	}

	// Start from the first hit at or below the top of the view
	for i, pos := range m.search.hits {
		if lineOf(body, pos) >= m.viewport.YOffset {
			m.search.at = i
			break
		}
	}
	m.highlight()
}

func (m *pager) jump(dir int) {
	if len(m.search.hits) == 0 {
		return
	}
	n := len(m.search.hits)
	m.search.at = (m.search.at + dir + n) % n
	m.highlight()
}

func (m *pager) highlight() {
	body := m.body()
	queryLen := len(m.search.input.Value())

	var sb strings.Builder
	last := 0
	for i, pos := range m.search.hits {
		if pos < last || pos+queryLen > len(body) {
			continue
		}
		sb.WriteString(body[last:pos])
		match := body[pos : pos+queryLen]
		if i == m.search.at {
			sb.WriteString(currentHitStyle.Render(match))
		} else {
			sb.WriteString(hitStyle.Render(match))
		}
		last = pos + queryLen
	}
	sb.WriteString(body[last:])
	m.viewport.SetContent(sb.String())

	line := lineOf(body, m.search.hits[m.search.at])
	if line < m.viewport.YOffset || line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(max(0, line-m.viewport.Height/2))
	}
}

func (m *pager) clearHits() {
	m.search.hits = nil
	m.search.at = 0
	m.viewport.SetContent(m.body())
}

// findMatches returns the byte offsets of non-overlapping occurrences of
// query in content. A query without upper-case letters matches any case.
func findMatches(content, query string) []int {
	if query == "" {
		return nil
	}
	if strings.ToLower(query) == query {
		content = strings.ToLower(content)
	}

	var hits []int
	for pos := 0; pos <= len(content)-len(query); {
		i := strings.Index(content[pos:], query)
		if i < 0 {
			break
		}
		hits = append(hits, pos+i)
		pos += i + len(query)
	}
	return hits
}

// lineOf returns the zero-based line containing byte offset pos
func lineOf(content string, pos int) int {
	return strings.Count(content[:pos], "\n")
}

// runPager shows pages full-screen until the user quits
func runPager(pages []page) error {
	p := tea.NewProgram(newPager(pages), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
