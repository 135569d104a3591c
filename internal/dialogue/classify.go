package dialogue

import (
	"context"
	"time"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/oracle"
)

// classifierDef describes one oracle-backed decision.
type classifierDef struct {
	task     string
	labels   []string
	notesKey string
	// retryAt is written to resume_at when the answer is unknown, so the
	// next user message gets another chance at the same question.
	retryAt     string
	captureDate bool
	// resetDate drops a payment date left by an earlier turn when the
	// answer names none.
	resetDate bool
	stage     string
}

var lprClassifier = classifierDef{
	task: "Decide whether the person on the line is the decision maker for payments (LPR). " +
		"is_lpr: they confirm they are the director, owner or responsible for payments, or answer \"me\" to \"who can I talk to\". " +
		"not_lpr: they clearly are not (secretary, accountant without authority, operator). " +
		"ask_lpr: the reply is uninformative (\"hello\", \"yes\", silence). When in doubt choose ask_lpr.",
	labels:   []string{RouteAskLPR, RouteIsLPR, RouteNotLPR},
	notesKey: "notes_lpr",
	retryAt:  NodeClassifyLPR,
	stage:    StageIdentifyLPR,
}

var reasonClassifier = classifierDef{
	task: "Classify why the debt has not been paid. " +
		"named_date: the client names a payment date. " +
		"claims_our_side: the problem is on our side (missing or duplicate closing documents, already paid, reconciliation or invoice needed). " +
		"client_issues: the client has financial or internal difficulties. " +
		"no_answer: the client avoids answering.",
	labels:      []string{RouteNamedDate, RouteClaimsOurSide, RouteClientIssues, RouteNoAnswer},
	notesKey:    "notes_reason",
	retryAt:     NodeClassifyReason,
	captureDate: true,
	resetDate:   true,
}

var dateWindowClassifier = classifierDef{
	task: "The client named a payment date. " +
		"named_date_within_week: the date is at most seven days from today. " +
		"named_date_over_week: the date is further away.",
	labels:      []string{RouteWithinWeek, RouteOverWeek},
	notesKey:    "notes_date_window",
	retryAt:     NodeClassifyReason,
	captureDate: true,
}

var agreementClassifier = classifierDef{
	task: "We proposed paying the debt within a week. " +
		"agree: the client accepts. disagree: the client refuses or says it is impossible.",
	labels:      []string{RouteAgree, RouteDisagree},
	notesKey:    "notes_agree",
	retryAt:     NodeClassifyAgreement,
	captureDate: true,
}

var restructuringClassifier = classifierDef{
	task: "We offered to restructure the debt into instalments. " +
		"agree: the client accepts the schedule. disagree: the client refuses.",
	labels:   []string{RouteAgree, RouteDisagree},
	notesKey: "notes_restructuring",
	retryAt:  NodeClassifyRestructuring,
	stage:    StageRestructuring,
}

var claimsClassifier = classifierDef{
	task: "The client says the problem is on our side. " +
		"duplicate_closings: closing documents are missing and need to be sent again. " +
		"already_paid: the client says the debt is already paid. " +
		"needs_reconciliation: the client asks for a reconciliation statement. " +
		"needs_invoice: the client asks for an invoice.",
	labels:   []string{RouteDuplicateClosings, RouteAlreadyPaid, RouteNeedsReconciliation, RouteNeedsInvoice},
	notesKey: "notes_claims_sub",
	retryAt:  NodeClassifyReason,
}

// classifier returns a node that asks the oracle to choose among def.labels.
// Oracle failures do not fail the turn: the node routes unknown and records
// the error in the oracle_error field.
func (f *flow) classifier(def classifierDef) graph.NodeFunc {
	return func(ctx context.Context, state *domain.ConversationState) (domain.Update, error) {
		out, err := f.oracle.Classify(ctx, domain.ClassifyRequest{
			Task:    def.task,
			History: state.History,
			Allowed: def.labels,
		})
		if err != nil && ctx.Err() != nil {
			return domain.Update{}, ctx.Err()
		}
		return f.classified(state, def, out, err), nil
	}
}

func (f *flow) classified(state *domain.ConversationState, def classifierDef, out domain.Classification, err error) domain.Update {
	route := oracle.Normalize(out.Route, def.labels)
	delta := &domain.ScratchDelta{}

	if err != nil {
		f.logger.Warn("Classification failed", "node", state.Scratch.CurrentNode, "route", route, "err", err)
		delta.WithField(FieldOracleError, err.Error())
	} else {
		delta.Unset = append(delta.Unset, FieldOracleError)
	}
	if out.Notes != "" && def.notesKey != "" {
		delta.WithField(def.notesKey, out.Notes)
	}
	switch {
	case def.captureDate && out.TargetDate != "":
		delta.WithField(FieldPaymentDate, out.TargetDate)
	case def.resetDate:
		delta.Unset = append(delta.Unset, FieldPaymentDate)
	}
	if route == domain.RouteUnknown && def.retryAt != "" {
		retry := def.retryAt
		delta.ResumeAt = &retry
	}
	return domain.Update{Route: route, Stage: def.stage, Scratch: delta}
}

// dateWindow decides whether the named payment date falls within a week.
// A date captured by the reason classifier is decided locally; otherwise
// the oracle is asked.
func (f *flow) dateWindow(ctx context.Context, state *domain.ConversationState) (domain.Update, error) {
	if raw := state.Scratch.String(FieldPaymentDate); raw != "" {
		if date, err := time.Parse(time.DateOnly, raw); err == nil {
			route := RouteOverWeek
			if withinWeek(date, f.now()) {
				route = RouteWithinWeek
			}
			return domain.Update{Route: route, Stage: StageNamedDate}, nil
		}
	}
	return f.classifier(dateWindowClassifier)(ctx, state)
}

func withinWeek(date, now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !date.After(today.AddDate(0, 0, 7))
}
