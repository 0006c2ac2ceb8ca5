// internal/tui/app.go
//
// This is the interactive menu for managing a dojo repository.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// Every create/delete action is a flow of prompts (see flows.go). When the
// last prompt is answered the flow's manager call runs as a command and its
// step report comes back as an opFinishedMsg.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/kingrea/dojo-manager/internal/dojo"
	"github.com/kingrea/dojo-manager/internal/logbook"
	"github.com/kingrea/dojo-manager/internal/watch"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMenu    appState = iota // One of the menus below
	stateFlow                    // Answering the prompts of a flow
	stateRunning                 // Waiting for the manager call
)

type menuLevel int

const (
	levelMain menuLevel = iota
	levelModules
	levelChallenges
)

const (
	itemInitialize      = "Initialize Dojo"
	itemEditModules     = "Edit Modules"
	itemEditChallenges  = "Edit Challenges"
	itemCreateModule    = "Create Module"
	itemDeleteModule    = "Delete Module"
	itemCreateChallenge = "Create Challenge"
	itemDeleteChallenge = "Delete Challenge"
	itemAddSubmodule    = "Add Submodule"
	itemDeleteSubmodule = "Delete Submodule"
	itemGoBack          = "Go Back"
	itemQuit            = "Quit"
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook shows the journal tail and records menu activity in it.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithWatcher reloads the board whenever manifests change on disk.
func WithWatcher(w *watch.Watcher) AppOption {
	return func(a *App) {
		a.watcher = w
	}
}

// WithLogger attaches a diagnostic logger.
func WithLogger(log zerolog.Logger) AppOption {
	return func(a *App) {
		a.log = log
	}
}

// manifestsChangedMsg is sent when the watcher saw a relevant change.
type manifestsChangedMsg struct {
	event watch.Event
}

type watchStoppedMsg struct {
	err error
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	level   menuLevel
	manager *dojo.Manager
	logbook *logbook.Logbook
	watcher *watch.Watcher
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// UI components
	menu      list.Model
	flow      *flow
	statusMsg string

	// Board data, reloaded after every operation and on disk changes.
	initialized bool
	overview    dojo.Overview
	overviewErr error
	lastReport  *dojo.Report
	lastErr     error

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp creates a new App instance for the repository behind manager.
func NewApp(manager *dojo.Manager, opts ...AppOption) (*App, error) {
	if manager == nil {
		return nil, errors.New("tui: manager is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	menu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	menu.DisableQuitKeybindings()

	app := &App{
		state:   stateMenu,
		level:   levelMain,
		manager: manager,
		log:     zerolog.Nop(),
		ctx:     ctx,
		cancel:  cancel,
		menu:    menu,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.reload()
	app.logInfo("Session opened · %s", manager.Root())
	return app, nil
}

// Close stops the watcher loop.
func (a *App) Close() {
	a.cancel()
}

// reload refreshes the board from disk and rebuilds the current menu.
func (a *App) reload() {
	initialized, err := a.manager.IsInitialized()
	if err != nil {
		a.log.Warn().Err(err).Msg("cannot inspect repository")
	}
	a.initialized = initialized
	if !initialized {
		a.level = levelMain
	}
	a.overview, a.overviewErr = a.manager.Overview()
	a.setMenu(a.level)
}

func (a *App) setMenu(level menuLevel) {
	current := a.menu.Index()
	if level != a.level {
		current = 0
	}
	a.level = level
	items := buildMenu(level, a.initialized)
	a.menu.SetItems(items)
	if current >= len(items) {
		current = 0
	}
	a.menu.Select(current)
	a.menu.Title = menuTitle(level)
}

// buildMenu creates the menu items for a level
func buildMenu(level menuLevel, initialized bool) []list.Item {
	if !initialized {
		return []list.Item{
			menuItem{title: itemInitialize, desc: "Create dojo.yml in this repository"},
			menuItem{title: itemQuit, desc: "Exit the dojo manager"},
		}
	}
	switch level {
	case levelModules:
		return []list.Item{
			menuItem{title: itemCreateModule, desc: "Add a module directory and register it"},
			menuItem{title: itemDeleteModule, desc: "Remove a module and its directory"},
			menuItem{title: itemGoBack, desc: "Return to the main menu"},
		}
	case levelChallenges:
		return []list.Item{
			menuItem{title: itemCreateChallenge, desc: "Add a challenge to a module"},
			menuItem{title: itemDeleteChallenge, desc: "Remove a challenge and its submodules"},
			menuItem{title: itemAddSubmodule, desc: "Add a git submodule to a challenge"},
			menuItem{title: itemDeleteSubmodule, desc: "Remove git submodules from a challenge"},
			menuItem{title: itemGoBack, desc: "Return to the main menu"},
		}
	}
	return []list.Item{
		menuItem{title: itemEditModules, desc: "Create or delete modules"},
		menuItem{title: itemEditChallenges, desc: "Create or delete challenges and submodules"},
		menuItem{title: itemQuit, desc: "Exit the dojo manager"},
	}
}

func menuTitle(level menuLevel) string {
	switch level {
	case levelModules:
		return "Edit Modules"
	case levelChallenges:
		return "Edit Challenges"
	}
	return "⬡ DOJO"
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.waitForChange()
}

func (a *App) waitForChange() tea.Cmd {
	if a.watcher == nil {
		return nil
	}
	w, ctx := a.watcher, a.ctx
	return func() tea.Msg {
		ev, err := w.Next(ctx)
		if err != nil {
			return watchStoppedMsg{err: err}
		}
		return manifestsChangedMsg{event: ev}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.menu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.flow != nil {
			a.flow.resize(max(0, msg.Width-6), max(0, msg.Height-14))
		}
		return a, nil

	case manifestsChangedMsg:
		a.log.Debug().Str("path", msg.event.Path).Msg("manifests changed on disk")
		if a.state == stateMenu {
			a.reload()
		}
		return a, a.waitForChange()

	case watchStoppedMsg:
		if !errors.Is(msg.err, context.Canceled) && !errors.Is(msg.err, watch.ErrClosed) {
			a.log.Warn().Err(msg.err).Msg("file watcher stopped")
		}
		return a, nil

	case opFinishedMsg:
		return a.handleFinished(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "esc":
			if a.state == stateFlow {
				return a.endFlow("Cancelled")
			}
			if a.state == stateMenu && a.level != levelMain {
				a.setMenu(levelMain)
				return a, nil
			}
			return a, nil
		case "q":
			if a.state == stateMenu {
				return a, tea.Quit
			}
		case "enter":
			if a.state == stateMenu {
				return a.handleMenuSelection()
			}
		}
		switch a.state {
		case stateFlow:
			return a.handleFlowKey(msg)
		case stateRunning:
			return a, nil
		}
	}

	if a.state == stateMenu {
		var cmd tea.Cmd
		a.menu, cmd = a.menu.Update(msg)
		return a, cmd
	}
	return a, nil
}

// handleMenuSelection processes menu item selection
func (a *App) handleMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.menu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	a.logInfo("Menu · %s selected", item.title)
	a.statusMsg = ""

	switch item.title {
	case itemInitialize:
		return a.startFlow(a.initFlow())
	case itemEditModules:
		a.setMenu(levelModules)
	case itemEditChallenges:
		a.setMenu(levelChallenges)
	case itemCreateModule:
		return a.startFlow(a.createModuleFlow())
	case itemDeleteModule:
		return a.startFlow(a.deleteModuleFlow())
	case itemCreateChallenge:
		return a.startFlow(a.createChallengeFlow())
	case itemDeleteChallenge:
		return a.startFlow(a.deleteChallengeFlow())
	case itemAddSubmodule:
		return a.startFlow(a.addSubmoduleFlow())
	case itemDeleteSubmodule:
		return a.startFlow(a.deleteSubmoduleFlow())
	case itemGoBack:
		a.setMenu(levelMain)
	case itemQuit:
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) startFlow(f *flow) (tea.Model, tea.Cmd) {
	a.flow = f
	a.state = stateFlow
	a.lastReport = nil
	a.lastErr = nil
	return a.advance()
}

// advance shows the next prompt of the active flow, or runs it when every
// answer is in.
func (a *App) advance() (tea.Model, tea.Cmd) {
	p, err := a.flow.next(a.flow.answers)
	if err != nil {
		return a.endFlow(err.Error())
	}
	if p == nil {
		a.state = stateRunning
		a.flow.current = nil
		run, answers := a.flow.run, a.flow.answers
		return a, func() tea.Msg { return run(answers) }
	}
	a.flow.show(p, max(0, a.width-6), max(0, a.height-14))
	return a, nil
}

func (a *App) handleFlowKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	value, submitted, cmd := a.flow.handleKey(msg)
	if !submitted {
		return a, cmd
	}
	ok, cancelled := a.flow.submit(value)
	if cancelled {
		return a.endFlow("Cancelled")
	}
	if !ok {
		return a, nil
	}
	return a.advance()
}

func (a *App) endFlow(status string) (tea.Model, tea.Cmd) {
	if a.flow != nil {
		a.logInfo("%s · %s", a.flow.title, status)
	}
	a.flow = nil
	a.state = stateMenu
	a.statusMsg = status
	return a, nil
}

func (a *App) handleFinished(msg opFinishedMsg) (tea.Model, tea.Cmd) {
	title := msg.report.Operation
	if a.flow != nil {
		title = a.flow.title
	}
	a.flow = nil
	a.state = stateMenu
	report := msg.report
	a.lastReport = &report
	a.lastErr = msg.err
	switch {
	case msg.err != nil:
		a.statusMsg = fmt.Sprintf("%s failed: %v", title, msg.err)
	case report.Failed():
		a.statusMsg = fmt.Sprintf("%s finished with errors", title)
	default:
		a.statusMsg = fmt.Sprintf("%s finished", title)
	}
	a.reload()
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
	}
	if leftWidth < 20 {
		leftWidth = width
		rightWidth = 0
	}
	var content string
	switch a.state {
	case stateMenu:
		content = a.menu.View()
	case stateFlow, stateRunning:
		if a.flow != nil {
			content = a.flow.View()
		} else {
			content = "Working..."
		}
	}
	return a.renderStatusBoard(content, leftWidth, rightWidth)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(8)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
	return box
}

func (a *App) renderStatusBoard(mainContent string, leftWidth, rightWidth int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render(a.headerText())
	left := lipgloss.JoinVertical(lipgloss.Left,
		a.renderMainArea(mainContent, leftWidth-4),
		a.renderReport(leftWidth-4),
	)
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, leftWidth)).
		Render(left)
	var body string
	if rightWidth > 0 {
		right := a.renderOverviewPanel(rightWidth - 4)
		rightBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(max(20, rightWidth)).
			Render(right)
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	} else {
		body = leftBox
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) headerText() string {
	if a.overview.Dojo == nil {
		return "⬡ DOJO"
	}
	label := fmt.Sprintf("⬡ %s (%s)", a.overview.Dojo.Name(), a.overview.Dojo.ID())
	if t := a.overview.Dojo.Type(); t != "" {
		label += " · " + titleCase(t)
	}
	return label
}

func (a *App) renderMainArea(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		content = "Ready."
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(content)
}

func (a *App) renderReport(width int) string {
	if a.lastReport == nil && a.lastErr == nil {
		return ""
	}
	var rows []string
	if a.lastReport != nil {
		for _, step := range a.lastReport.Steps {
			rows = append(rows, stepStyle(step.Status).Render(step.Line()))
		}
	}
	if a.lastErr != nil {
		rows = append(rows, stepStyle(dojo.StepFailed).Render(a.lastErr.Error()))
	}
	return lipgloss.NewStyle().Width(max(20, width)).MarginTop(1).Render(strings.Join(rows, "\n"))
}

func stepStyle(status dojo.StepStatus) lipgloss.Style {
	switch status {
	case dojo.StepFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	case dojo.StepSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F2C14E"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#7BD88F"))
	}
}

func (a *App) renderOverviewPanel(width int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("Modules (%d)", len(a.overview.Modules)))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	if !a.initialized {
		return lipgloss.JoinVertical(lipgloss.Left, title, muted.Render("Repository is not a dojo yet."))
	}
	if a.overviewErr != nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, muted.Render(fmt.Sprintf("⚠ %v", a.overviewErr)))
	}
	if len(a.overview.Modules) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, muted.Render("No modules yet."))
	}
	var rows []string
	for _, mo := range a.overview.Modules {
		rows = append(rows, lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%s)", mo.Entry.Name, mo.Entry.ID)))
		if mo.Err != nil {
			rows = append(rows, muted.Render(fmt.Sprintf("  ⚠ %v", mo.Err)))
		}
		for _, co := range mo.Challenges {
			line := fmt.Sprintf("  · %s", co.Challenge.Name)
			if n := len(co.Submodules); n > 0 {
				line += fmt.Sprintf(" · %d submodule(s)", n)
			}
			if co.Challenge.AllowPrivileged {
				line += " · privileged"
			}
			rows = append(rows, line)
		}
	}
	body := lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(rows, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func titleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
