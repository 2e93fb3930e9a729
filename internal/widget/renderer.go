package widget

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/anglenexus/nexus/internal/model/chat"
)

// Renderer is the view a Widget draws into.
type Renderer interface {
	Show()
	Hide()
	// Reset removes every rendered message and shows the welcome text.
	Reset(welcome string)
	HideWelcome()
	RenderMessage(msg chat.Message)
	ShowLoading(label string)
	HideLoading()
	SetInputEnabled(enabled bool)
	// MessageCount is the number of rendered turns, excluding placeholders.
	MessageCount() int
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// TerminalRenderer prints a widget as a running log on a terminal.
type TerminalRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	name        string
	markdown    bool
	interactive bool

	count        int
	welcome      string
	welcomeShown bool
	loading      bool
	inputEnabled bool
}

var _ Renderer = &TerminalRenderer{}

type TerminalOption func(*TerminalRenderer)

// WithMarkdown renders assistant replies through glamour.
func WithMarkdown(enabled bool) TerminalOption {
	return func(r *TerminalRenderer) { r.markdown = enabled }
}

// WithInteractive lets the loading line be erased in place.
func WithInteractive(enabled bool) TerminalOption {
	return func(r *TerminalRenderer) { r.interactive = enabled }
}

func NewTerminalRenderer(out io.Writer, agentName string, opts ...TerminalOption) *TerminalRenderer {
	r := &TerminalRenderer{out: out, name: agentName, inputEnabled: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TerminalRenderer) Show() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, titleStyle.Render(r.name))
	if r.welcomeShown && r.count == 0 {
		fmt.Fprintln(r.out, mutedStyle.Render(r.welcome))
	}
}

func (r *TerminalRenderer) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, mutedStyle.Render(r.name+" closed"))
}

func (r *TerminalRenderer) Reset(welcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
	r.welcome = welcome
	r.welcomeShown = true
}

func (r *TerminalRenderer) HideWelcome() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomeShown = false
}

func (r *TerminalRenderer) RenderMessage(msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLoadingLine()

	label := userStyle.Render("you")
	content := msg.Content
	if msg.Role == chat.RoleAssistant {
		label = assistantStyle.Render(r.name)
		if r.markdown {
			if rendered, err := glamour.Render(content, "dark"); err == nil {
				content = strings.Trim(rendered, "\n")
			}
		}
	}
	fmt.Fprintf(r.out, "%s › %s\n", label, content)
	r.count++
}

func (r *TerminalRenderer) ShowLoading(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = true
	if r.interactive {
		fmt.Fprint(r.out, mutedStyle.Render(label))
		return
	}
	fmt.Fprintln(r.out, mutedStyle.Render(label))
}

func (r *TerminalRenderer) HideLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLoadingLine()
}

func (r *TerminalRenderer) clearLoadingLine() {
	if !r.loading {
		return
	}
	r.loading = false
	if r.interactive {
		fmt.Fprint(r.out, "\r\x1b[2K")
	}
}

func (r *TerminalRenderer) SetInputEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputEnabled = enabled
}

// InputEnabled reports the last state set by the widget.
func (r *TerminalRenderer) InputEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputEnabled
}

func (r *TerminalRenderer) MessageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
