package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/buffer"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/view"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chromeLines is the number of screen lines used by everything but rows.
const chromeLines = 6

type memviewModel struct {
	err      error
	rt       *runtime.Runtime
	inst     *runtime.Instance
	buf      *buffer.ArrayBuffer
	filename string
	memory   string
	input    textinput.Model
	offset   uint32 // byte offset of the top row, a multiple of rowBytes
	rows     int
	kind     view.Kind
	jumping  bool
}

func newMemviewModel(opts options, rt *runtime.Runtime, inst *runtime.Instance, buf *buffer.ArrayBuffer, rows int) *memviewModel {
	ti := textinput.New()
	ti.Placeholder = "0x0"
	ti.Prompt = "offset: "
	ti.Width = 20

	m := &memviewModel{
		rt:       rt,
		inst:     inst,
		buf:      buf,
		filename: opts.wasmFile,
		memory:   opts.memory,
		input:    ti,
		rows:     max(rows, 1),
		kind:     opts.kind,
	}
	m.seek(uint64(opts.offset) * uint64(opts.kind.Size()))
	return m
}

func (m *memviewModel) Init() tea.Cmd {
	return nil
}

// seek moves the top row to the row containing byte pos, clamped so the
// last page stays full where possible.
func (m *memviewModel) seek(pos uint64) {
	size := uint64(m.buf.ByteLength())
	page := uint64(m.rows * rowBytes)
	if size > page && pos > size-page {
		pos = size - page
	} else if size <= page {
		pos = 0
	}
	m.offset = uint32(pos - pos%rowBytes)
}

func (m *memviewModel) scroll(delta int) {
	pos := int64(m.offset) + int64(delta)
	if pos < 0 {
		pos = 0
	}
	m.seek(uint64(pos))
}

// refresh adopts the memory again to cover growth since the last adoption.
func (m *memviewModel) refresh() {
	buf, err := m.inst.Memory(m.memory)
	if err != nil {
		m.err = err
		return
	}
	m.buf.Close()
	m.buf = buf
	m.err = nil
	m.seek(uint64(m.offset))
}

func (m *memviewModel) close() {
	if m.buf != nil {
		m.buf.Close()
	}
	if m.rt != nil {
		m.rt.Close(context.Background())
	}
}

func (m *memviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.rows = max(msg.Height-chromeLines, 1)
		m.seek(uint64(m.offset))

	case tea.KeyMsg:
		if m.jumping {
			return m.updateJump(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit
		case "up", "k":
			m.scroll(-rowBytes)
		case "down", "j":
			m.scroll(rowBytes)
		case "pgup", "b":
			m.scroll(-m.rows * rowBytes)
		case "pgdown", " ":
			m.scroll(m.rows * rowBytes)
		case "home":
			m.seek(0)
		case "end":
			m.seek(uint64(m.buf.ByteLength()))
		case "tab", "t":
			m.kind = nextKind(m.kind)
		case "r":
			m.refresh()
		case "g":
			m.jumping = true
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *memviewModel) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.close()
		return m, tea.Quit
	case "esc":
		m.jumping = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.jumping = false
		m.input.Blur()
		pos, err := strconv.ParseUint(strings.TrimSpace(m.input.Value()), 0, 32)
		if err != nil {
			m.err = fmt.Errorf("bad offset %q", m.input.Value())
			return m, nil
		}
		m.err = nil
		m.seek(pos)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// page returns the rows currently on screen.
func (m *memviewModel) page() ([]string, error) {
	size := uint32(m.kind.Size())
	end := min(uint64(m.offset)+uint64(m.rows*rowBytes), uint64(m.buf.ByteLength()))
	count := uint32(end-uint64(m.offset)) / size

	v, err := view.New(m.buf, m.kind, m.offset/size, count)
	if err != nil {
		return nil, err
	}
	defer v.Close()

	values, err := v.Values()
	if err != nil {
		return nil, err
	}
	return formatRows(values, m.kind, v.ByteOffset()), nil
}

func (m *memviewModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Memory View"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s  %s  %d bytes\n\n",
		kindStyle.Render(m.kind.String()),
		offsetStyle.Render(fmt.Sprintf("0x%08x", m.offset)),
		m.buf.ByteLength()))

	rows, err := m.page()
	if err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		b.WriteString("\n")
	}
	for _, row := range rows {
		b.WriteString(offsetStyle.Render(row[:8]))
		b.WriteString(row[8:])
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.jumping:
		b.WriteString(m.input.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	default:
		b.WriteString(helpStyle.Render("↑/↓ scroll • pgup/pgdn page • tab kind • g goto • r refresh • q quit"))
	}

	return b.String()
}

func runInteractive(opts options, logger *zap.Logger) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode requires a terminal")
	}
	rows := 24 - chromeLines
	if _, height, err := term.GetSize(fd); err == nil {
		rows = height - chromeLines
	}

	ctx := context.Background()
	rt, _, inst, err := load(ctx, opts, logger)
	if err != nil {
		return err
	}

	if opts.funcName != "" {
		if _, err := inst.Call(ctx, opts.funcName, opts.callArgs()...); err != nil {
			rt.Close(ctx)
			return fmt.Errorf("call %s: %w", opts.funcName, err)
		}
	}

	buf, err := inst.Memory(opts.memory)
	if err != nil {
		rt.Close(ctx)
		return fmt.Errorf("memory: %w", err)
	}

	m := newMemviewModel(opts, rt, inst, buf, rows)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	if err != nil {
		m.close()
	}
	return err
}
