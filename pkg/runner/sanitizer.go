package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Debtor messages arrive from the terminal, HTTP and MCP. Each of them
// passes through CleanMessage before a turn runs.

const (
	// DefaultMessageLimit is the largest debtor message accepted, in bytes.
	DefaultMessageLimit = 4096
	// EnvMessageLimit names the variable that replaces DefaultMessageLimit.
	EnvMessageLimit = "DEBITOR_MAX_MESSAGE_BYTES"
)

var (
	ErrMessageTooLong  = errors.New("message is too long")
	ErrMessageEncoding = errors.New("message is not valid UTF-8")
)

// CleanMessage returns the debtor's message ready for the transcript.
// A message over MessageLimit or with broken UTF-8 is refused whole.
// Terminal escapes and other control runes are dropped; line breaks and
// tabs stay.
func CleanMessage(msg string) (string, error) {
	limit := MessageLimit()
	if n := len(msg); n > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLong, n, limit)
	}
	if !utf8.ValidString(msg) {
		return "", ErrMessageEncoding
	}
	return strings.Map(transcriptRune, msg), nil
}

func transcriptRune(r rune) rune {
	switch {
	case r == '\n', r == '\t', r == '\r':
		return r
	case unicode.IsControl(r):
		return -1
	}
	return r
}

// MessageLimit reads EnvMessageLimit, falling back to DefaultMessageLimit
// when it is unset or not a positive integer.
func MessageLimit() int {
	if n, err := strconv.Atoi(os.Getenv(EnvMessageLimit)); err == nil && n > 0 {
		return n
	}
	return DefaultMessageLimit
}
