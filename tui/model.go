package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"monome.org/druid/device"
	"monome.org/druid/proto"
	"monome.org/druid/repl"
)

const (
	// chromeHeight is the rows taken by the capture row, status bar and
	// input line.
	chromeHeight = 3

	// maxScrollback bounds the output log in bytes. Older output is dropped
	// a line at a time.
	maxScrollback = 1 << 20

	historySize = 500
)

// Model is the bubbletea model of the interactive shell: two capture fields
// on top, the output log, a status bar and the input line.
type Model struct {
	ctx        context.Context
	dispatcher *repl.Dispatcher
	keys       KeyMap

	input  textinput.Model
	output viewport.Model

	content  string
	captures [2]string

	state   device.State
	port    string
	notices repl.StateNotices

	history      []string
	historyIndex int

	startup string

	// Lines run one at a time in the order they were submitted. pending
	// holds lines typed while an earlier one is still being dispatched.
	pending []string
	busy    bool

	width  int
	height int
	ready  bool
}

// NewModel returns a Model that dispatches input lines with dispatcher.
// ctx bounds every dispatch.
func NewModel(ctx context.Context, dispatcher *repl.Dispatcher) Model {
	input := textinput.New()
	input.Prompt = repl.Prompt
	input.Focus()

	model := Model{
		ctx:        ctx,
		dispatcher: dispatcher,
		keys:       DefaultKeyMap,
		input:      input,
		output:     viewport.New(80, 20),
		captures:   [2]string{"input[1]", "input[2]"},
	}
	model.appendOutput(repl.Intro)
	return model
}

// WithStartupLine returns a copy of model that dispatches line as soon as
// the program starts, as if it had been typed.
func (model Model) WithStartupLine(line string) Model {
	model.startup = line
	model.busy = true
	return model
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	if model.startup == "" {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, model.dispatch(model.startup))
}

// Update implements tea.Model.
func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.resize(msg.Width, msg.Height)
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(msg)

	case DeviceMsg:
		if msg.Message.Kind == proto.KindCapture {
			index := 0
			if msg.Message.Channel == 2 {
				index = 1
			}
			model.captures[index] = repl.FormatCapture(msg.Message)
		} else {
			model.appendOutput(repl.FormatLog(msg.Message.Text))
		}
		return model, nil

	case StateMsg:
		model.state = msg.Change.State
		if msg.Change.Port != "" {
			model.port = msg.Change.Port
		}
		if notice := model.notices.Notice(msg.Change); notice != "" {
			model.appendOutput(notice)
		}
		return model, nil

	case NoticeMsg:
		model.appendOutput(repl.FormatLog(msg.Text))
		return model, nil

	case resultMsg:
		if text := repl.FormatResult(msg.Result); text != "" {
			model.appendOutput(text)
		}
		if msg.Result.Outcome == repl.OutcomeQuit {
			return model, tea.Quit
		}
		return model, model.next()
	}

	var cmd tea.Cmd
	model.input, cmd = model.input.Update(msg)
	return model, cmd
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(msg, model.keys.Submit):
		line := model.input.Value()
		model.input.Reset()
		model.remember(line)
		model.appendOutput("\n" + repl.Prompt + line + "\n")
		return model, model.enqueue(line)

	case key.Matches(msg, model.keys.HistoryPrev):
		model.recall(-1)
		return model, nil

	case key.Matches(msg, model.keys.HistoryNext):
		model.recall(1)
		return model, nil

	case key.Matches(msg, model.keys.PageUp, model.keys.PageDown):
		var cmd tea.Cmd
		model.output, cmd = model.output.Update(msg)
		return model, cmd
	}

	var cmd tea.Cmd
	model.input, cmd = model.input.Update(msg)
	return model, cmd
}

// enqueue dispatches line now if nothing else is running, otherwise after
// the lines submitted before it.
func (model *Model) enqueue(line string) tea.Cmd {
	if model.busy {
		model.pending = append(model.pending, line)
		return nil
	}
	model.busy = true
	return model.dispatch(line)
}

// next dispatches the oldest pending line, if any.
func (model *Model) next() tea.Cmd {
	if len(model.pending) == 0 {
		model.busy = false
		return nil
	}
	line := model.pending[0]
	model.pending = model.pending[1:]
	return model.dispatch(line)
}

// dispatch runs line off the UI goroutine. Transfers take seconds and must
// not freeze the screen.
func (model Model) dispatch(line string) tea.Cmd {
	ctx := model.ctx
	dispatcher := model.dispatcher
	return func() tea.Msg {
		return resultMsg{Result: dispatcher.Dispatch(ctx, line)}
	}
}

func (model *Model) remember(line string) {
	if strings.TrimSpace(line) != "" {
		model.history = append(model.history, line)
		if len(model.history) > historySize {
			model.history = model.history[len(model.history)-historySize:]
		}
	}
	model.historyIndex = len(model.history)
}

func (model *Model) recall(step int) {
	index := model.historyIndex + step
	if index < 0 || index > len(model.history) {
		return
	}
	model.historyIndex = index
	if index == len(model.history) {
		model.input.SetValue("")
		return
	}
	model.input.SetValue(model.history[index])
	model.input.CursorEnd()
}

func (model *Model) appendOutput(text string) {
	model.content += strings.ReplaceAll(text, "\t", "  ")
	if len(model.content) > maxScrollback {
		cut := len(model.content) - maxScrollback
		if i := strings.IndexByte(model.content[cut:], '\n'); i >= 0 {
			cut += i + 1
		}
		model.content = model.content[cut:]
	}
	model.output.SetContent(model.content)
	model.output.GotoBottom()
}

func (model *Model) resize(width, height int) {
	model.width = width
	model.height = height
	model.ready = true
	model.output.Width = width
	model.output.Height = max(height-chromeHeight, 1)
	model.input.Width = max(width-len(repl.Prompt)-1, 1)
	model.output.GotoBottom()
}

// Output returns everything in the output log.
func (model Model) Output() string {
	return model.content
}

// Captures returns the text of the two capture fields.
func (model Model) Captures() (string, string) {
	return model.captures[0], model.captures[1]
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return ""
	}

	half := model.width / 2
	captures := lipgloss.JoinHorizontal(lipgloss.Top,
		captureStyle.Width(half).Render(model.captures[0]),
		captureStyle.Width(model.width-half).Render(model.captures[1]),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		captures,
		model.output.View(),
		model.statusLine(),
		model.input.View(),
	)
}

func (model Model) statusLine() string {
	state := offlineStyle.Render("disconnected")
	if model.state == device.Connected {
		state = onlineStyle.Render("connected")
	}
	text := "druid " + state
	if model.port != "" {
		text += " " + model.port
	}
	text += "  " + model.keys.Quit.Help().Key + " " + model.keys.Quit.Help().Desc
	return statusStyle.Width(model.width).Render(text)
}
