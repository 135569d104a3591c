package domain

// ClassifyRequest is what a classifier node asks the oracle.
type ClassifyRequest struct {
	// Task describes the decision and the meaning of each label.
	Task    string
	History []Message
	Allowed []string
}

// LastUserText returns the most recent user message of the request history.
func (r ClassifyRequest) LastUserText() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role == RoleUser {
			return r.History[i].Text
		}
	}
	return ""
}

// Classification is the answer of the classification oracle.
type Classification struct {
	Route string `json:"route"`
	Notes string `json:"notes,omitempty"`
	// TargetDate is an ISO date (YYYY-MM-DD) extracted from the user message, if any.
	TargetDate string `json:"target_date,omitempty"`
}
