package domain

// Update is the partial update a node returns.
// Zero values mean "leave unchanged".
type Update struct {
	// Messages are outbound assistant texts, in production order.
	Messages []string

	// Route is a routing label; empty means the node made no routing decision.
	Route string

	// Stage replaces the conversation stage when not empty.
	Stage string

	// Scratch carries scratch changes; nil leaves the scratch untouched.
	Scratch *ScratchDelta
}

// ScratchDelta describes changes to the scratch. It has no Path or
// CurrentNode fields: those belong to the tracer.
type ScratchDelta struct {
	Turn     *int
	ResumeAt *string
	Set      map[string]any
	Unset    []string
}

// Say returns an Update with the given messages.
func Say(msgs ...string) Update {
	return Update{Messages: msgs}
}

// ResumeAt returns a delta that sets resume_at to node.
func ResumeAt(node string) *ScratchDelta {
	return &ScratchDelta{ResumeAt: &node}
}

// ClearResume returns a delta that clears resume_at.
func ClearResume() *ScratchDelta {
	empty := ""
	return &ScratchDelta{ResumeAt: &empty}
}

// WithField records a business field on the delta, allocating it if needed.
func (d *ScratchDelta) WithField(key string, value any) *ScratchDelta {
	if d == nil {
		d = &ScratchDelta{}
	}
	if d.Set == nil {
		d.Set = make(map[string]any)
	}
	d.Set[key] = value
	return d
}

// ApplyTo overlays the delta on base and returns the result. base is not modified.
func (d *ScratchDelta) ApplyTo(base Scratch) Scratch {
	out := base.Clone()
	if d == nil {
		return out
	}
	if d.Turn != nil {
		out.Turn = *d.Turn
	}
	if d.ResumeAt != nil {
		out.ResumeAt = *d.ResumeAt
	}
	if len(d.Set) > 0 && out.Fields == nil {
		out.Fields = make(map[string]any, len(d.Set))
	}
	for k, v := range d.Set {
		out.Fields[k] = v
	}
	for _, k := range d.Unset {
		delete(out.Fields, k)
	}
	return out
}

// TurnResult is returned to the caller at the end of a turn.
type TurnResult struct {
	ConversationID string         `json:"thread_id"`
	Outputs        []string       `json:"outputs"`
	Route          string         `json:"route,omitempty"`
	Stage          string         `json:"stage,omitempty"`
	Turn           int            `json:"turn"`
	Path           []string       `json:"path"`
	Scratch        map[string]any `json:"scratch"`
}

// Output returns the last outbound message, or "" when the turn produced none.
func (r *TurnResult) Output() string {
	if len(r.Outputs) == 0 {
		return ""
	}
	return r.Outputs[len(r.Outputs)-1]
}
