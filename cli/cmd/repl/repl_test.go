package repl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ihontarenko/jmouse-sub007/engine"
)

func newTestModel(t *testing.T, history *History) model {
	t.Helper()

	if history == nil {
		history = NewHistory("")
	}

	e := engine.New(engine.NewMapLoader(map[string]string{"hello": "Hello {{ who }}"}))

	return newModel(context.Background(), Config{
		Engine: e,
		Vars: map[string]any{
			"who":  "world",
			"user": map[string]any{"name": "bo", "nick": "b"},
		},
	}, history)
}

func typeRunes(m model, s string) model {
	m, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})

	return m
}

func key(m model, k tea.KeyType) (model, tea.Cmd) {
	return m.handleKey(tea.KeyMsg{Type: k})
}

func TestRun_NoEngine(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Run(context.Background(), Config{}), ErrNoEngine)
}

func TestModel_Eval(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)

	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"who | upper", `"WORLD"`},
		{"user.name", `"bo"`},
		{"[1, 2]", "[1,2]"},
		{"missing", "null"},
	}

	for _, tt := range tests {
		got, err := m.eval(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}

	_, err := m.eval("1 +")
	require.Error(t, err)
}

func TestModel_Commands(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)

	out, err := m.runCommand("set", "n 20 + 1")
	require.NoError(t, err)
	assert.Contains(t, out, "n = 21")
	assert.EqualValues(t, 21, m.symbols.vars["n"])

	out, err = m.runCommand("set", "who 'jmouse'")
	require.NoError(t, err)
	assert.Contains(t, out, "who = jmouse")

	out, err = m.runCommand("render", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello jmouse", out)

	out, err = m.runCommand("vars", "")
	require.NoError(t, err)
	assert.Contains(t, out, "n")
	assert.Contains(t, out, "user")

	_, err = m.runCommand("unset", "n who")
	require.NoError(t, err)
	assert.NotContains(t, m.symbols.vars, "n")
	assert.NotContains(t, m.symbols.vars, "who")

	out, err = m.runCommand("help", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands")

	for _, bad := range [][2]string{{"set", "n"}, {"set", ""}, {"render", ""}, {"bogus", ""}} {
		_, err := m.runCommand(bad[0], bad[1])
		require.ErrorIs(t, err, ErrUsage, bad)
	}

	_, err = m.runCommand("render", "absent")
	require.ErrorIs(t, err, engine.ErrTemplateNotFound)
}

func TestModel_ListVarsTruncates(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	m.symbols.vars["long"] = "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"

	assert.Contains(t, m.listVars(), "abcdefghijklmnopqrstuvwxyzabcdefghijk...")
}

func TestModel_Submit(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	m = typeRunes(m, "1 + 1")

	m, cmd := key(m, tea.KeyEnter)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, []HistoryEntry{{Line: "1 + 1", Mode: modeEval}}, m.history.Entries())
	assert.Equal(t, 1, m.historyIdx)

	m, cmd = key(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.history.Len())
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	m = typeRunes(m, "x")

	m, _ = key(m, tea.KeyCtrlC)
	assert.False(t, m.quitting)
	assert.Empty(t, m.input.Value())

	m, cmd := key(m, tea.KeyCtrlD)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_CommandCompletion(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)

	m, _ = key(m, tea.KeyEsc)
	require.Equal(t, modeCtrl, m.mode)

	m = typeRunes(m, "qu")
	m, _ = key(m, tea.KeyTab)
	assert.Equal(t, "quit", m.input.Value())
	assert.False(t, m.tabActive)

	m, cmd := key(m, tea.KeyEnter)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Equal(t, []HistoryEntry{{Line: "quit", Mode: modeCtrl}}, m.history.Entries())
}

func TestModel_TabCycle(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	m = typeRunes(m, "user.n")
	require.Len(t, m.matches, 2)

	m, _ = key(m, tea.KeyTab)
	assert.True(t, m.tabActive)
	assert.Equal(t, "user."+m.matches[0].Str, m.input.Value())

	m, _ = key(m, tea.KeyTab)
	assert.Equal(t, "user."+m.matches[1].Str, m.input.Value())

	m, _ = key(m, tea.KeyShiftTab)
	assert.Equal(t, "user."+m.matches[0].Str, m.input.Value())

	m, _ = key(m, tea.KeyEsc)
	assert.False(t, m.tabActive)
	assert.Equal(t, "user.n", m.input.Value())
	assert.Equal(t, modeEval, m.mode)
}

func TestModel_History(t *testing.T) {
	t.Parallel()

	h := NewHistory("")
	require.NoError(t, h.Add("1 + 1", modeEval))
	require.NoError(t, h.Add("vars", modeCtrl))

	m := newTestModel(t, h)

	m = m.historyStep(-1, false)
	assert.Equal(t, "vars", m.input.Value())
	assert.Equal(t, modeCtrl, m.mode)

	m = m.historyStep(-1, false)
	assert.Equal(t, "1 + 1", m.input.Value())
	assert.Equal(t, modeEval, m.mode)

	m = m.historyStep(-1, false)
	assert.Equal(t, "1 + 1", m.input.Value())
	assert.Equal(t, 0, m.historyIdx)

	m = m.historyStep(1, false)
	assert.Equal(t, "vars", m.input.Value())

	m = m.historyStep(1, false)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, 2, m.historyIdx)

	m = m.switchMode(modeEval)
	m = m.historyStep(-1, true)
	assert.Equal(t, "1 + 1", m.input.Value())
	assert.Equal(t, modeEval, m.mode)
}

func TestModel_SwitchModeKeepsInput(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	m = typeRunes(m, "1 +")

	m = m.switchMode(modeCtrl)
	assert.Empty(t, m.input.Value())

	m = typeRunes(m, "he")

	m = m.switchMode(modeEval)
	assert.Equal(t, "1 +", m.input.Value())

	m = m.switchMode(modeCtrl)
	assert.Equal(t, "he", m.input.Value())
}

func TestModel_EditMessages(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	vars := m.symbols.vars

	next, cmd := m.Update(editDoneMsg{vars: map[string]any{"a": 1}})
	assert.NotNil(t, cmd)
	assert.Equal(t, map[string]any{"a": 1}, vars)
	assert.Equal(t, map[string]any{"a": 1}, next.(model).symbols.vars)

	_, cmd = m.Update(editCancelledMsg{})
	assert.NotNil(t, cmd)

	next, cmd = m.Update(editDeclinedMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, next.(model).quitting)
}

func TestModel_View(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, nil)
	assert.Contains(t, m.View(), "Type an expression")

	m = typeRunes(m, "str.repeat(who, ")
	assert.Contains(t, m.View(), "arg2")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Equal(t, 40, next.(model).width)
}
