package domain

// Route labels shared by every graph.
const (
	// RouteUnknown is the fallback label used when a classification cannot be trusted.
	RouteUnknown = "unknown"
)

// Scratch keys used in snapshots and persisted JSON.
const (
	KeyTurn        = "turn"
	KeyResumeAt    = "resume_at"
	KeyPath        = "path"
	KeyCurrentNode = "current_node"
)
