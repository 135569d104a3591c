package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pichlex/debitor"
)

// JSONHandler implements IOHandler over JSON Lines.
//
// Each input line is either an object {"text": "...", "meta": {...}}, a JSON
// string, or plain text. Each reply is written as one JSON object.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder

	lines chan inputResult
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

type systemMessage struct {
	System string `json:"system"`
}

func (h *JSONHandler) Input(ctx context.Context) (Input, error) {
	if h.lines == nil {
		h.lines = make(chan inputResult, 1)
		go func() {
			defer close(h.lines)
			for {
				text, err := h.Reader.ReadString('\n')
				if text == "" && err != nil {
					if err != io.EOF {
						h.lines <- inputResult{err: err}
					}
					return
				}
				h.lines <- inputResult{text: text}
			}
		}()
	}

	select {
	case <-ctx.Done():
		return Input{}, ctx.Err()
	case res, ok := <-h.lines:
		if !ok {
			return Input{}, io.EOF
		}
		if res.err != nil {
			return Input{}, res.err
		}
		return decodeLine(strings.TrimSpace(res.text)), nil
	}
}

func decodeLine(line string) Input {
	var in Input
	if strings.HasPrefix(line, "{") && json.Unmarshal([]byte(line), &in) == nil {
		return in
	}
	var s string
	if json.Unmarshal([]byte(line), &s) == nil {
		return Input{Text: s}
	}
	return Input{Text: line}
}

func (h *JSONHandler) Output(_ context.Context, reply *debitor.Reply) error {
	return h.Encoder.Encode(reply)
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.Encoder.Encode(systemMessage{System: msg})
}
