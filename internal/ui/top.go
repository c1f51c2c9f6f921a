package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// ProjectRow is one row of the top view: a project's catalog entry plus
// whatever QUERY_STATISTICS remarks the daemon will currently return for it.
type ProjectRow struct {
	Name        string
	Root        string
	LastIndexed time.Time
	Records     string
	Symbols     string
}

// TopDataSource supplies the rows TopModel polls for. cmd/ftagsd's `top`
// command implements this against dbfile.Catalog and daemon.Client so
// this package stays free of daemon/dbfile imports.
type TopDataSource interface {
	SocketPath() string
	Rows(ctx context.Context) ([]ProjectRow, error)
}

// TopModel is a bubbletea program showing daemon uptime-adjacent state:
// every project the catalog knows about, refreshed on an interval.
type TopModel struct {
	source TopDataSource
	table  table.Model
	styles Styles
	err    error
	ticks  int
}

type topTickMsg time.Time
type topRowsMsg []ProjectRow
type topErrMsg error

// NewTopModel builds the initial model for `ftagsd top`.
func NewTopModel(source TopDataSource) TopModel {
	columns := []table.Column{
		{Title: "Project", Width: 24},
		{Title: "Root", Width: 36},
		{Title: "Last Indexed", Width: 20},
		{Title: "Records", Width: 10},
		{Title: "Symbols", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(15),
	)
	return TopModel{source: source, table: t, styles: DefaultStyles()}
}

func (m TopModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), topTickCmd())
}

func (m TopModel) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.source.Rows(context.Background())
		if err != nil {
			return topErrMsg(err)
		}
		return topRowsMsg(rows)
	}
}

func topTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return topTickMsg(t)
	})
}

func (m TopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case topTickMsg:
		m.ticks++
		return m, tea.Batch(m.fetchCmd(), topTickCmd())

	case topRowsMsg:
		m.err = nil
		rows := make([]table.Row, 0, len(msg))
		for _, r := range msg {
			last := "never"
			if !r.LastIndexed.IsZero() {
				last = formatTime(r.LastIndexed)
			}
			rows = append(rows, table.Row{r.Name, r.Root, last, r.Records, r.Symbols})
		}
		m.table.SetRows(rows)
		return m, nil

	case topErrMsg:
		m.err = msg
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m TopModel) View() string {
	header := m.styles.Header.Render(fmt.Sprintf("ftagsd top — %s", m.source.SocketPath()))
	if m.err != nil {
		return header + "\n\n" + m.styles.Error.Render(m.err.Error()) + "\n"
	}
	return header + "\n\n" + m.table.View() + "\n\n" + m.styles.Dim.Render("q to quit") + "\n"
}
