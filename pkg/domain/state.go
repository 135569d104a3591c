package domain

import "maps"

// Scratch is the per-conversation side channel carried across turns.
// Path and CurrentNode are owned by the tracer; nodes cannot write them.
type Scratch struct {
	// Turn counts inbound user messages, incremented by the entry node.
	Turn int `json:"turn"`

	// ResumeAt names the node the next turn should continue from.
	// Only names in the graph's resumable whitelist are honored.
	ResumeAt string `json:"resume_at,omitempty"`

	// Path lists the nodes visited during the current turn, in order.
	Path []string `json:"path"`

	// CurrentNode is the most recently entered node.
	CurrentNode string `json:"current_node,omitempty"`

	// Fields holds business data defined by the graph's nodes.
	Fields map[string]any `json:"fields,omitempty"`
}

// Clone returns a deep copy of the scratch.
func (s Scratch) Clone() Scratch {
	out := s
	if s.Path != nil {
		out.Path = append([]string(nil), s.Path...)
	}
	if s.Fields != nil {
		out.Fields = maps.Clone(s.Fields)
	}
	return out
}

// Field returns a business field and whether it is set.
func (s Scratch) Field(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// String returns a business field as a string, or "" if missing or not a string.
func (s Scratch) String(key string) string {
	v, _ := s.Fields[key].(string)
	return v
}

// Snapshot flattens the scratch into a single map, as returned to callers.
func (s Scratch) Snapshot() map[string]any {
	out := make(map[string]any, len(s.Fields)+4)
	maps.Copy(out, s.Fields)
	out[KeyTurn] = s.Turn
	out[KeyResumeAt] = s.ResumeAt
	out[KeyPath] = append([]string(nil), s.Path...)
	out[KeyCurrentNode] = s.CurrentNode
	return out
}

// ConversationState is the checkpointed snapshot of one conversation.
type ConversationState struct {
	// History is append-only across turns.
	History []Message `json:"history"`

	// Route is the last routing label set by a node.
	Route string `json:"route,omitempty"`

	// Stage is a coarse, business-level marker.
	Stage string `json:"stage,omitempty"`

	Scratch Scratch `json:"scratch"`

	// Turn mirrors Scratch.Turn in the persisted layout.
	Turn int `json:"turn"`

	// Meta is supplied fresh with every turn and never persisted.
	Meta map[string]any `json:"-"`
}

// NewConversationState returns the empty state used for unknown conversation ids.
func NewConversationState() *ConversationState {
	return &ConversationState{
		History: []Message{},
		Scratch: Scratch{Path: []string{}},
	}
}

// Clone returns a deep copy of the state. Meta is copied shallowly.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]Message(nil), s.History...)
	out.Scratch = s.Scratch.Clone()
	if s.Meta != nil {
		out.Meta = maps.Clone(s.Meta)
	}
	return &out
}

// LastUserText returns the text of the most recent user message.
func (s *ConversationState) LastUserText() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Text
		}
	}
	return ""
}

// MetaString returns a meta value as a string.
func (s *ConversationState) MetaString(key string) string {
	v, _ := s.Meta[key].(string)
	return v
}
