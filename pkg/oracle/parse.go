package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedResponse is returned when a provider answer is not a valid classification.
var ErrMalformedResponse = errors.New("malformed oracle response")

const responseSchema = `{
	"type": "object",
	"required": ["route"],
	"properties": {
		"route": {"type": "string", "minLength": 1},
		"notes": {"type": ["string", "null"]},
		"target_date": {"type": ["string", "null"]}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(responseSchema)

// ParseResponse extracts the JSON object from a model answer (tolerating
// code fences and surrounding prose), validates it and decodes it.
// A target_date that is not an ISO date is dropped.
func ParseResponse(text string) (domain.Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return domain.Classification{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(text, 80))
	}
	raw := text[start : end+1]

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return domain.Classification{}, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(problems, "; "))
	}

	var payload struct {
		Route      string  `json:"route"`
		Notes      *string `json:"notes"`
		TargetDate *string `json:"target_date"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := domain.Classification{Route: payload.Route}
	if payload.Notes != nil {
		out.Notes = strings.TrimSpace(*payload.Notes)
	}
	if payload.TargetDate != nil {
		if d := strings.TrimSpace(*payload.TargetDate); isISODate(d) {
			out.TargetDate = d
		}
	}
	return out, nil
}

func isISODate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
