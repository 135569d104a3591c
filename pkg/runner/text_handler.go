package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/dialogue"
	"golang.org/x/term"
)

// ContentRenderer transforms text before it is printed (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader *bufio.Reader
	Writer io.Writer

	// Renderer formats the operator notes. Nil prints them as plain lines.
	Renderer ContentRenderer
	// ShowStatus prints the shard, route and stage after every reply.
	ShowStatus bool
	// ShowNotes prints the operator notes recorded by the turn.
	ShowNotes bool

	out       *termenv.Output
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption configures a TextHandler.
type TextHandlerOption func(*TextHandler)

// WithRenderer sets the operator notes renderer.
func WithRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithStatus enables the status line.
func WithStatus(show bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.ShowStatus = show
	}
}

// WithNotes enables operator notes.
func WithNotes(show bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.ShowNotes = show
	}
}

// NewTextHandler creates a handler for standard text IO. Colors are only
// used when w is a terminal.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	profile := termenv.Ascii
	if isTerminal(w) {
		profile = termenv.EnvColorProfile()
	}
	h := &TextHandler{
		Reader:     bufio.NewReader(r),
		Writer:     w,
		ShowStatus: true,
		out:        termenv.NewOutput(w, termenv.WithProfile(profile)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor ctx.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// FeedInput injects a line as if it was typed.
func (h *TextHandler) FeedInput(text string, err error) {
	h.initPump()
	h.inputChan <- inputResult{text: text, err: err}
}

func (h *TextHandler) Input(ctx context.Context) (Input, error) {
	h.initPump()

	select {
	case <-ctx.Done():
		return Input{}, ctx.Err()
	default:
		fmt.Fprint(h.Writer, "> ")
	}

	select {
	case <-ctx.Done():
		return Input{}, ctx.Err()
	case res, ok := <-h.inputChan:
		if !ok {
			return Input{}, io.EOF
		}
		if res.err != nil {
			return Input{}, res.err
		}
		return Input{Text: strings.TrimSpace(res.text)}, nil
	}
}

func (h *TextHandler) Output(_ context.Context, reply *debitor.Reply) error {
	for _, msg := range reply.Outputs {
		fmt.Fprintln(h.Writer, h.out.String(strings.TrimSpace(msg)).Foreground(h.out.Color("#818cf8")))
	}
	if h.ShowNotes {
		if note, _ := reply.Scratch[dialogue.FieldOpsNote].(string); note != "" {
			fmt.Fprintln(h.Writer, h.renderNotes(note))
		}
	}
	if h.ShowStatus {
		status := fmt.Sprintf("shard=%d route=%s stage=%s", reply.Shard, reply.Route, reply.Stage)
		fmt.Fprintln(h.Writer, h.out.String(status).Faint())
	}
	return nil
}

func (h *TextHandler) renderNotes(note string) string {
	var md strings.Builder
	md.WriteString("**Operator notes**\n\n")
	for _, step := range strings.Split(note, "; ") {
		md.WriteString("- " + step + "\n")
	}
	if h.Renderer != nil {
		if rendered, err := h.Renderer(md.String()); err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return strings.TrimRight(md.String(), "\n")
}

func (h *TextHandler) SystemOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintln(h.Writer, h.out.String("[system] "+msg).Faint())
	return err
}
