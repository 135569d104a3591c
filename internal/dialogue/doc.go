// Package dialogue defines the debt-collection conversation: its nodes,
// message templates and the graph that wires them together.
//
// Every turn starts at the entry node, which counts the turn and either
// greets a new caller, resumes at the classifier a previous turn asked to
// continue from, or falls back to identifying the decision maker. Nodes
// that ask the caller a question write resume_at and end the turn through
// telemetry; nodes that close a branch go through finalize.
package dialogue
