package dialogue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pichlex/debitor/pkg/domain"
)

const (
	restructFirstPaymentDays = 7
	restructTermDays         = 90
	datePlaceholder          = "<DATE>"
)

func (f *flow) entry(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	turn := state.Scratch.Turn + 1
	route := NodeClassifyLPR
	switch {
	case turn == 1:
		route = NodeIntro
	case state.Scratch.ResumeAt != "":
		route = state.Scratch.ResumeAt
	}
	delta := domain.ClearResume()
	delta.Turn = &turn
	return domain.Update{Route: route, Scratch: delta}, nil
}

func (f *flow) intro(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplIntro, StageIntro, nil)
}

func (f *flow) askLPR(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	upd, err := f.say(state, tplAskLPR, StageIdentifyLPR, ops(
		"Identify the decision maker: ask directly, on refusal ask for their contact",
		"Without a phone number ask for an e-mail to duplicate the closing documents",
	))
	upd.Scratch.ResumeAt = ptr(NodeClassifyLPR)
	return upd, err
}

func (f *flow) notLPR(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplNotLPR, StageInfoLetter, ops(
		"Confirm the name and role of the person on the line",
		"Ask for the decision maker's number, otherwise an e-mail for the closing documents",
		"Send the information letter with the closing documents",
		"Move the case to the information letter stage",
		"CRM: record the result of the first overdue notice task and close it",
		"Schedule a payment check for the next day if a date was named",
		"Register risk, status, reason and stage",
	))
}

func (f *flow) lprPrompt(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	upd, err := f.say(state, tplLPRPrompt, StageIdentifyLPR, nil)
	upd.Scratch.ResumeAt = ptr(NodeClassifyReason)
	return upd, err
}

func (f *flow) namedDateWithinWeek(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	date := paymentDate(state)
	return f.sayDated(state, tplWithinWeek, StageNamedDate, date, ops(
		"Stage: payment date named",
		"Expect payment on "+date,
	))
}

func (f *flow) namedDateOverWeek(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	date := paymentDate(state)
	return f.sayDated(state, tplOverWeek, StageNamedDate, date, ops(
		"Agree the postponed date (more than 7 days) and record the SLA",
		"Check in 3 days; target date "+date,
		"Escalate to legal on violation",
	))
}

func (f *flow) proposePayWithinWeek(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	upd, err := f.say(state, tplPayWithinWeek, "", ops(
		"Proposed: payment within a week",
		"Next: classify the agreement",
	))
	upd.Scratch.ResumeAt = ptr(NodeClassifyAgreement)
	return upd, err
}

func (f *flow) agreeNamedDate(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	date := state.Scratch.String(FieldPaymentDate)
	if date == "" {
		date = f.now().AddDate(0, 0, 7).Format(time.DateOnly)
	}
	upd, err := f.sayDated(state, tplAgreeNamedDate, StageNamedDate, date, ops(
		"Stage: payment date named",
		"Expect payment on "+date,
	))
	upd.Scratch.WithField(FieldPaymentDate, date)
	return upd, err
}

func (f *flow) restructuring(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	now := f.now()
	first := now.AddDate(0, 0, restructFirstPaymentDays).Format(time.DateOnly)
	last := now.AddDate(0, 0, restructTermDays).Format(time.DateOnly)

	caller, err := DecodeCaller(state.Meta)
	if err != nil {
		return domain.Update{}, err
	}
	msg, err := render(tplRestructOffer, view{CallerInfo: caller, FirstDate: first, LastDate: last})
	if err != nil {
		return domain.Update{}, err
	}
	delta := ops(
		"Move the case to the restructuring stage",
		"Record the payment schedule in writing",
	).
		WithField(FieldOfferedRestruct, true).
		WithField(FieldFirstDate, first).
		WithField(FieldLastDate, last)
	delta.ResumeAt = ptr(NodeClassifyRestructuring)
	return domain.Update{Messages: []string{msg}, Stage: StageRestructuring, Scratch: delta}, nil
}

func (f *flow) restructuringConfirm(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplRestructConfirm, StageRestructuring, ops(
		"Send the instalment schedule for signature",
		"Schedule payment checks on every instalment date",
	))
}

func (f *flow) pretrialNotice(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplPretrialNotice, StagePretrialNotice, ops(
		"Stage: pre-trial claim notice",
		"Prepare and send the claim",
	))
}

func (f *flow) noAnswerLetter(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplFirstDebtorLetter, StageInfoLetter, ops(
		"Send the first debtor letter",
		"Schedule a call in 3 days",
		"Register: information letter",
	))
}

func (f *flow) sendClosings(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	upd, err := f.say(state, tplDuplicateClosings, "", ops(
		"File the request to duplicate the closing documents",
		"E-mail the documents to the client",
		"Return to asking for the payment date",
	))
	upd.Scratch.ResumeAt = ptr(NodeClassifyReason)
	return upd, err
}

func (f *flow) alreadyPaid(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplAlreadyPaid, "", ops(
		"Request the payment order",
		"Hand over to billing to locate and allocate the payment",
		"Check in 3 days",
	))
}

func (f *flow) needRecon(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	upd, err := f.say(state, tplNeedRecon, "", ops(
		"Prepare and send the reconciliation statement",
		"Return to asking for the payment date",
	))
	upd.Scratch.ResumeAt = ptr(NodeClassifyReason)
	return upd, err
}

func (f *flow) needInvoice(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplNeedInvoiceExplain, "", ops(
		"Explain that an invoice is not required",
		"Offer the closing documents and bank details",
	))
}

func (f *flow) createDuplicateRequest(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplDuplicateRequest, StageNamedDate, ops(
		"File the request using the form",
		"Schedule a payment check 3 days after the named date",
		"Move the case to the payment date named stage",
	))
}

// agent answers routes the graph could not classify.
func (f *flow) agent(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	return f.say(state, tplEscalation, "", ops("Hand the conversation over to a specialist"))
}

// finalize closes a branch without speaking: the previous node's message
// stays the last output and the next turn starts from the default route.
func (f *flow) finalize(_ context.Context, state *domain.ConversationState) (domain.Update, error) {
	upd := domain.Update{Scratch: domain.ClearResume()}
	if state.Stage == "" {
		upd.Stage = StageFinalized
	}
	return upd, nil
}

// telemetry emits one structured record per turn.
func (f *flow) telemetry(ctx context.Context, state *domain.ConversationState) (domain.Update, error) {
	attrs := []any{
		"turn", state.Scratch.Turn,
		"route", state.Route,
		"stage", state.Stage,
		"path", strings.Join(state.Scratch.Path, ">"),
	}
	if date := state.Scratch.String(FieldPaymentDate); date != "" {
		attrs = append(attrs, FieldPaymentDate, date)
	}
	if resume := state.Scratch.ResumeAt; resume != "" {
		attrs = append(attrs, "resume_at", resume)
	}
	keys := make([]string, 0, len(state.Meta))
	for k := range state.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, "meta."+k, fmt.Sprint(state.Meta[k]))
	}
	f.logger.InfoContext(ctx, "Dialogue turn", attrs...)
	return domain.Update{}, nil
}

// say renders a template with the caller metadata. The returned update
// always carries a non-nil scratch delta.
func (f *flow) say(state *domain.ConversationState, tpl, stage string, delta *domain.ScratchDelta) (domain.Update, error) {
	return f.sayDated(state, tpl, stage, "", delta)
}

func (f *flow) sayDated(state *domain.ConversationState, tpl, stage, date string, delta *domain.ScratchDelta) (domain.Update, error) {
	if delta == nil {
		delta = &domain.ScratchDelta{}
	}
	upd := domain.Update{Stage: stage, Scratch: delta}
	caller, err := DecodeCaller(state.Meta)
	if err != nil {
		return upd, err
	}
	msg, err := render(tpl, view{CallerInfo: caller, TargetDate: date})
	if err != nil {
		return upd, err
	}
	upd.Messages = []string{msg}
	return upd, nil
}

// ops records the back-office steps for the current node.
func ops(steps ...string) *domain.ScratchDelta {
	return (&domain.ScratchDelta{}).WithField(FieldOpsNote, strings.Join(steps, "; "))
}

func paymentDate(state *domain.ConversationState) string {
	if d := state.Scratch.String(FieldPaymentDate); d != "" {
		return d
	}
	return datePlaceholder
}

func ptr(s string) *string {
	return &s
}
