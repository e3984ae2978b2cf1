package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/view"
)

// listItem は todo.Item を bubbles/list.Item に合わせる。
type listItem struct {
	todo.Item
}

func (i listItem) Title() string       { return i.Item.Title }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Item.Title }

// 1 行表示の delegate
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}

	box := mutedStyle.Render(boxUnchecked)
	text := it.Item.Title
	if it.IsCompleted {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s\n", prefix, box, text)
}

// refreshedMsg は controller 操作後の状態。
type refreshedMsg struct {
	state view.State
}

// Model は ListController を操作する Bubble Tea のモデル。
// 操作はすべて tea.Cmd として別 goroutine で走る。
type Model struct {
	ctx  context.Context
	ctrl *view.ListController

	list   list.Model
	ti     textinput.Model
	adding bool
	busy   bool
	items  []todo.Item
}

func New(ctx context.Context, ctrl *view.ListController) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = titleStyle.Render("Todos")
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("item", "items")

	binds := []key.Binding{
		key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
	l.AdditionalShortHelpKeys = func() []key.Binding { return binds }
	l.AdditionalFullHelpKeys = func() []key.Binding { return binds }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Add a new task..."
	ti.CharLimit = 200

	return Model{
		ctx:  ctx,
		ctrl: ctrl,
		list: l,
		ti:   ti,
		busy: true,
	}
}

// Run はターミナルを占有して TUI を動かす。
func Run(ctx context.Context, ctrl *view.ListController) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Load(m.ctx)
		return refreshedMsg{state: m.ctrl.Snapshot()}
	}
}

func (m Model) addCmd() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Add(m.ctx)
		return refreshedMsg{state: m.ctrl.Snapshot()}
	}
}

func (m Model) toggleCmd(it todo.Item) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Toggle(m.ctx, it)
		return refreshedMsg{state: m.ctrl.Snapshot()}
	}
}

func (m Model) removeCmd(id string) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Remove(m.ctx, id)
		return refreshedMsg{state: m.ctrl.Snapshot()}
	}
}

func (m Model) selected() (todo.Item, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return todo.Item{}, false
	}
	return it.Item, true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := msg.Height - 4
		if m.adding {
			h -= 4
		}
		m.list.SetSize(msg.Width-4, h)
		return m, nil

	case refreshedMsg:
		m.busy = false
		m.items = msg.state.Items
		li := make([]list.Item, 0, len(msg.state.Items))
		for _, it := range msg.state.Items {
			li = append(li, listItem{Item: it})
		}
		m.list.Title = m.header()
		return m, m.list.SetItems(li)
	}

	// 入力モード
	if m.adding {
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "enter":
				m.ctrl.SetDraft(m.ti.Value())
				m.adding = false
				m.ti.SetValue("")
				m.ti.Blur()
				m.busy = true
				return m, m.addCmd()
			case "esc":
				// draft は残す
				m.ctrl.SetDraft(m.ti.Value())
				m.adding = false
				m.ti.Blur()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.ti, cmd = m.ti.Update(msg)
		m.ctrl.SetDraft(m.ti.Value())
		return m, cmd
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "a":
			m.adding = true
			m.ti.SetValue(m.ctrl.Snapshot().Draft)
			m.ti.CursorEnd()
			return m, m.ti.Focus()
		case " ":
			if it, ok := m.selected(); ok {
				m.busy = true
				return m, m.toggleCmd(it)
			}
			return m, nil
		case "d":
			if it, ok := m.selected(); ok {
				m.busy = true
				return m, m.removeCmd(it.ID)
			}
			return m, nil
		case "r":
			m.busy = true
			return m, m.loadCmd()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) header() string {
	done, pending := 0, 0
	for _, it := range m.items {
		if it.IsCompleted {
			done++
		} else {
			pending++
		}
	}
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), len(m.items),
	)
}

func (m Model) View() string {
	content := m.list.View()
	if m.busy {
		content += "\n" + mutedStyle.Render("loading...")
	}
	if m.adding {
		content += "\n" + panelStyle.Render("Add new item\n"+m.ti.View())
	}
	return panelStyle.Render(content)
}
