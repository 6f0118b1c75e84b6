package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ihontarenko/jmouse-sub007/engine"
	"github.com/ihontarenko/jmouse-sub007/log"
)

type (
	editDoneMsg      struct{ vars map[string]any }
	editCancelledMsg struct{}
	editDeclinedMsg  struct{}
	editErrorMsg     struct{ err error }
)

const (
	evalPrompt = "➜ "
	ctrlPrompt = " :"
)

const helpMessage = `
: Commands (press Esc to toggle mode):

  help               Print this help
  vars               List the session variables
  set NAME EXPR      Evaluate EXPR and store it in NAME
  unset NAME...      Remove variables
  render TEMPLATE    Render a template with the session variables
  edit               Edit the variables as YAML in $EDITOR
  clear              Clear screen
  quit               Exit

Usage:
  Type an expression to evaluate it against the session variables
  Completions follow the cursor: variables and functions, members after
  a dot, filters after "|" and tests after "is"
  Press Tab / Shift-Tab to cycle through candidates
  Press Esc to toggle between eval and command modes
  Use Up/Down for history (the mode follows the entry)
  Use Shift+Up/Shift+Down for history of the current mode only
  Press Ctrl+C on an empty line or Ctrl+D to exit
`

// inputMode is the interpretation of submitted lines.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

var (
	promptStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	ctrlPromptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	inputStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("4"))
	selectedMatchStyle = selectedStyle.Bold(true)
)

// Config configures a REPL session.
type Config struct {
	Engine  *engine.Engine
	Vars    map[string]any
	History string // history file; empty keeps history in memory
	Logger  log.Logger
	Input   io.Reader
	Output  io.Writer
}

// model is the Bubble Tea model of a session. The variable map is shared
// by every copy of the model.
type model struct {
	ctx          context.Context
	input        textinput.Model
	symbols      symbols
	logger       log.Logger
	history      *History
	historyIdx   int
	matches      fuzzy.Matches
	candidates   []string
	wordStart    int
	wordEnd      int
	suggIdx      int
	tabActive    bool
	preTabText   string
	preTabCursor int
	width        int
	quitting     bool
	mode         inputMode
	saved        [2]struct {
		text   string
		cursor int
	}
}

// Run starts an interactive session and returns when the user quits.
func Run(ctx context.Context, cfg Config) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if cfg.Engine == nil {
		return ErrNoEngine
	}

	if cfg.Vars == nil {
		cfg.Vars = make(map[string]any)
	}

	history := NewHistory(cfg.History)
	if err := history.Load(); err != nil {
		cfg.Logger.WarnContext(ctx, "history not loaded",
			slog.String("path", cfg.History),
			slog.Any("error", err))
	}

	cfg.Logger.TraceContext(ctx, "repl start",
		slog.String("history", cfg.History),
		slog.Int("history_entries", history.Len()),
		slog.Int("vars", len(cfg.Vars)))

	opts := []tea.ProgramOption{tea.WithContext(ctx)}

	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}

	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}

	_, err = tea.NewProgram(newModel(ctx, cfg, history), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

const defaultWidth = 80

func newModel(ctx context.Context, cfg Config, history *History) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = defaultWidth

	return model{
		ctx:        ctx,
		input:      ti,
		symbols:    symbols{engine: cfg.Engine, vars: cfg.Vars},
		logger:     cfg.Logger,
		history:    history,
		historyIdx: history.Len(),
		suggIdx:    -1,
		width:      defaultWidth,
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-lipgloss.Width(evalPrompt)-2, 1)

		return m, nil

	case editDoneMsg:
		clear(m.symbols.vars)
		maps.Copy(m.symbols.vars, msg.vars)

		return m, tea.Println(resultStyle.Render("✔ variables updated"))

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editDeclinedMsg:
		m.quitting = true

		return m, tea.Quit

	case editErrorMsg:
		return m, tea.Println(errorStyle.Render("error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	return m.input.View() + "\n" + m.hint() + "\n"
}

// hint renders the line below the input: the history position, a usage
// hint, the signature of the enclosing call, or the completion bar.
func (m model) hint() string {
	input := m.input.Value()

	if m.historyIdx < m.history.Len() {
		pos := lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx + 1))

		return hintStyle.Render(fmt.Sprintf("%s/%d", pos, m.history.Len()))
	}

	if strings.TrimSpace(input) == "" {
		if m.mode == modeEval {
			return hintStyle.Render("Type an expression or press Esc for commands")
		}

		return hintStyle.Render("Type: " + strings.Join(ctrlCommands, ", ") + " (Esc returns)")
	}

	if m.mode == modeEval && len(m.matches) == 0 {
		if call := detectFunctionCall(input, m.input.Position()); call.inCall {
			if params, ok := m.symbols.signature(call); ok {
				return renderSignatureHint(call.name, params, call.argIndex)
			}
		}
	}

	return renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width, m.callable)
}

// callable reports whether a candidate names a function.
func (m model) callable(name string) bool {
	return m.mode == modeEval && m.symbols.engine.Functions().Has(name)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.historyIdx = m.history.Len()
		m.refreshMatches(false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if m.tabActive && len(m.matches) > 0 {
			m.tabActive = false
			m.refreshMatches(true)

			return m, nil
		}

		return m.submit()

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.historyStep(-1, false), nil

	case tea.KeyDown:
		return m.historyStep(1, false), nil

	case tea.KeyShiftUp:
		return m.historyStep(-1, true), nil

	case tea.KeyShiftDown:
		return m.historyStep(1, true), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			m.refreshMatches(false)

			return m, nil
		}

		if m.mode == modeEval {
			return m.switchMode(modeCtrl), nil
		}

		return m.switchMode(modeEval), nil
	}

	var cmd tea.Cmd

	typed := msg.Type == tea.KeyRunes

	if typed && msg.String() == " " || !typed {
		m.tabActive = false
	}

	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	m.refreshMatches(typed)

	return m, cmd
}

// cycle moves the tab selection by step and puts the candidate into the
// input. A single candidate is accepted at once.
func (m model) cycle(step int) model {
	n := len(m.matches)
	if n == 0 {
		return m
	}

	if n == 1 {
		m.replaceWord(m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m
	}

	if !m.tabActive {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()
		m.suggIdx = -1

		if step < 0 {
			m.suggIdx = 0
		}
	}

	m.suggIdx = ((m.suggIdx+step)%n + n) % n
	m.replaceWord(m.matches[m.suggIdx].Str)

	return m
}

// replaceWord replaces the current word with s and moves the cursor past
// it.
func (m *model) replaceWord(s string) {
	input := m.input.Value()

	m.input.SetValue(input[:m.wordStart] + s + input[m.wordEnd:])
	m.input.SetCursor(m.wordStart + len(s))
	m.wordEnd = m.wordStart + len(s)
}

// refreshMatches recomputes the completions. With accept set, a word that
// already equals its only candidate is accepted.
func (m *model) refreshMatches(accept bool) {
	m.matches, m.candidates, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !accept || len(m.matches) != 1 {
		return
	}

	if m.input.Value()[m.wordStart:m.wordEnd] == m.matches[0].Str {
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

// submit runs the input line in the current mode.
func (m model) submit() (model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	if err := m.history.Add(line, m.mode); err != nil {
		m.logger.WarnContext(m.ctx, "history not saved", slog.Any("error", err))
	}

	m.historyIdx = m.history.Len()
	m.saved = [2]struct {
		text   string
		cursor int
	}{}
	m.input.SetValue("")
	m.refreshMatches(false)

	if m.mode == modeCtrl {
		return m.execCommand(line)
	}

	echo := tea.Println(promptStyle.Render(evalPrompt) + inputStyle.Render(line))

	out, err := m.eval(line)
	if err != nil {
		return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
	}

	return m, tea.Sequence(echo, tea.Println(resultStyle.Render(out)))
}

// eval evaluates an expression against the session variables.
func (m model) eval(expr string) (string, error) {
	v, err := m.symbols.engine.Eval(m.ctx, expr, m.symbols.vars)

	m.logger.TraceContext(m.ctx, "repl eval",
		slog.String("expr", expr),
		slog.String("result_type", fmt.Sprintf("%T", v)),
		slog.Bool("ok", err == nil))

	if err != nil {
		return "", err
	}

	if v == nil {
		return "null", nil
	}

	if s, ok := v.(string); ok {
		return strconv.Quote(s), nil
	}

	return engine.ToString(v), nil
}

// execCommand runs a command-mode line.
func (m model) execCommand(line string) (model, tea.Cmd) {
	echo := tea.Println(ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(line))

	name, args, _ := strings.Cut(line, " ")

	m.logger.TraceContext(m.ctx, "repl command",
		slog.String("command", name),
		slog.String("args", args))

	switch name {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echo, tea.Quit)

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echo, m.edit())
	}

	out, err := m.runCommand(name, strings.TrimSpace(args))
	if err != nil {
		return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
	}

	return m, tea.Sequence(echo, tea.Println(out))
}

// runCommand runs the commands that only produce text.
func (m model) runCommand(name, args string) (string, error) {
	switch name {
	case "h", "help":
		return helpMessage, nil

	case "v", "vars":
		return m.listVars(), nil

	case "set":
		target, expr, ok := strings.Cut(args, " ")
		if !ok || strings.TrimSpace(expr) == "" {
			return "", ErrUsage.With(slog.String("command", "set NAME EXPR"))
		}

		v, err := m.symbols.engine.Eval(m.ctx, expr, m.symbols.vars)
		if err != nil {
			return "", err
		}

		m.symbols.vars[target] = v

		return resultStyle.Render(target + " = " + engine.ToString(v)), nil

	case "unset":
		for _, target := range strings.Fields(args) {
			delete(m.symbols.vars, target)
		}

		return "", nil

	case "r", "render":
		if args == "" {
			return "", ErrUsage.With(slog.String("command", "render TEMPLATE"))
		}

		return m.symbols.engine.Render(m.ctx, args, m.symbols.vars)
	}

	return "", ErrUsage.With(slog.String("unknown", name), slog.String("help", "help"))
}

func (m model) listVars() string {
	var b strings.Builder

	for _, name := range slices.Sorted(maps.Keys(m.symbols.vars)) {
		preview := []rune(engine.ToString(m.symbols.vars[name]))
		if len(preview) > 40 {
			preview = append(preview[:37], []rune("...")...)
		}

		fmt.Fprintf(&b, "  %s %s\n", name, hintStyle.Render(string(preview)))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m model) edit() tea.Cmd {
	cmd := &editVarsCommand{ctx: m.ctx, vars: m.symbols.vars, logger: m.logger}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editDeclinedMsg{}
		case err != nil:
			return editErrorMsg{err: err}
		case cmd.updated == nil:
			return editCancelledMsg{}
		default:
			return editDoneMsg{vars: cmd.updated}
		}
	})
}

// historyStep moves through history by dir. Without sameMode the mode
// follows the entry; with it, entries of other modes are skipped. Moving
// past the newest entry clears the input.
func (m model) historyStep(dir int, sameMode bool) model {
	for i := m.historyIdx + dir; i >= 0 && i < m.history.Len(); i += dir {
		entry, err := m.history.Entry(i)
		if err != nil || sameMode && entry.Mode != m.mode {
			continue
		}

		if entry.Mode != m.mode {
			m = m.switchMode(entry.Mode)
		}

		m.historyIdx = i
		m.input.SetValue(entry.Line)
		m.input.SetCursor(len(entry.Line))
		m.refreshMatches(false)

		return m
	}

	if dir > 0 && m.historyIdx < m.history.Len() {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		m.refreshMatches(false)
	}

	return m
}

// switchMode changes the input mode, keeping each mode's unfinished line.
func (m model) switchMode(mode inputMode) model {
	m.saved[m.mode].text = m.input.Value()
	m.saved[m.mode].cursor = m.input.Position()

	m.mode = mode

	if mode == modeEval {
		m.input.Prompt = promptStyle.Render(evalPrompt)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
	}

	m.input.SetValue(m.saved[mode].text)
	m.input.SetCursor(m.saved[mode].cursor)
	m.refreshMatches(false)

	return m
}
