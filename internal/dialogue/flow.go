package dialogue

import (
	"errors"
	"log/slog"
	"time"

	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/oracle"
	"github.com/pichlex/debitor/pkg/ports"
)

// Deps are the collaborators of the dialogue nodes.
type Deps struct {
	// Oracle classifies user messages. It is wrapped in an oracle.Guard
	// with default settings unless it already is one.
	Oracle ports.Oracle

	// Logger receives the per-turn telemetry record. Defaults to a no-op logger.
	Logger *slog.Logger

	// Now is the clock used for payment dates. Defaults to time.Now.
	Now func() time.Time
}

type flow struct {
	oracle ports.Oracle
	logger *slog.Logger
	now    func() time.Time
}

// Build compiles the debt-collection graph.
func Build(deps Deps) (*graph.Graph, error) {
	if deps.Oracle == nil {
		return nil, errors.New("dialogue: oracle is required")
	}
	f := &flow{oracle: deps.Oracle, logger: deps.Logger, now: deps.Now}
	if f.logger == nil {
		f.logger = logging.NewNop()
	}
	if _, guarded := f.oracle.(*oracle.Guard); !guarded {
		f.oracle = oracle.NewGuard(f.oracle, oracle.WithLogger(f.logger))
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f.builder().Compile()
}

func (f *flow) builder() *graph.Builder {
	b := graph.New()

	b.AddNode(NodeEntry, f.entry)
	b.AddConditionalEdge(NodeEntry, nil, map[string]string{
		NodeIntro:                 NodeIntro,
		NodeClassifyLPR:           NodeClassifyLPR,
		NodeClassifyReason:        NodeClassifyReason,
		NodeClassifyAgreement:     NodeClassifyAgreement,
		NodeClassifyRestructuring: NodeClassifyRestructuring,
	})
	b.SetEntry(NodeEntry)
	b.SetResumable(Resumable...)

	// Turn 1: greeting, then wait.
	b.AddNode(NodeIntro, f.intro)
	b.AddEdge(NodeIntro, NodeTelemetry)

	// Decision maker.
	b.AddNode(NodeClassifyLPR, f.classifier(lprClassifier), graph.WritesResume(NodeClassifyLPR))
	b.AddConditionalEdge(NodeClassifyLPR, nil, map[string]string{
		RouteAskLPR:         NodeAskLPR,
		RouteIsLPR:          NodeLPRPrompt,
		RouteNotLPR:         NodeNotLPR,
		domain.RouteUnknown: NodeAgent,
	})
	b.AddNode(NodeAskLPR, f.askLPR, graph.WritesResume(NodeClassifyLPR))
	b.AddEdge(NodeAskLPR, NodeTelemetry)
	b.AddNode(NodeNotLPR, f.notLPR)
	b.AddEdge(NodeNotLPR, NodeFinalize)
	b.AddNode(NodeLPRPrompt, f.lprPrompt, graph.WritesResume(NodeClassifyReason))
	b.AddEdge(NodeLPRPrompt, NodeTelemetry)

	// Reason for the missing payment.
	b.AddNode(NodeClassifyReason, f.classifier(reasonClassifier), graph.WritesResume(NodeClassifyReason))
	b.AddConditionalEdge(NodeClassifyReason, nil, map[string]string{
		RouteNamedDate:      NodeNamedDateWindow,
		RouteClaimsOurSide:  NodeClassifyClaimsSub,
		RouteClientIssues:   NodeProposePayWithinWeek,
		RouteNoAnswer:       NodeNoAnswerLetter,
		domain.RouteUnknown: NodeAgent,
	})

	b.AddNode(NodeNamedDateWindow, f.dateWindow, graph.WritesResume(NodeClassifyReason))
	b.AddConditionalEdge(NodeNamedDateWindow, nil, map[string]string{
		RouteWithinWeek:     NodeNamedDateWithinWeek,
		RouteOverWeek:       NodeNamedDateOverWeek,
		domain.RouteUnknown: NodeAgent,
	})
	b.AddNode(NodeNamedDateWithinWeek, f.namedDateWithinWeek)
	b.AddEdge(NodeNamedDateWithinWeek, NodeFinalize)
	b.AddNode(NodeNamedDateOverWeek, f.namedDateOverWeek)
	b.AddEdge(NodeNamedDateOverWeek, NodeFinalize)

	// Client-side problems: one week, then restructuring, then claim.
	b.AddNode(NodeProposePayWithinWeek, f.proposePayWithinWeek, graph.WritesResume(NodeClassifyAgreement))
	b.AddEdge(NodeProposePayWithinWeek, NodeTelemetry)
	b.AddNode(NodeClassifyAgreement, f.classifier(agreementClassifier), graph.WritesResume(NodeClassifyAgreement))
	b.AddConditionalEdge(NodeClassifyAgreement, nil, map[string]string{
		RouteAgree:          NodeAgreeNamedDate,
		RouteDisagree:       NodeRestructuring,
		domain.RouteUnknown: NodeAgent,
	})
	b.AddNode(NodeAgreeNamedDate, f.agreeNamedDate)
	b.AddEdge(NodeAgreeNamedDate, NodeFinalize)
	b.AddNode(NodeRestructuring, f.restructuring, graph.WritesResume(NodeClassifyRestructuring))
	b.AddEdge(NodeRestructuring, NodeTelemetry)
	b.AddNode(NodeClassifyRestructuring, f.classifier(restructuringClassifier), graph.WritesResume(NodeClassifyRestructuring))
	b.AddConditionalEdge(NodeClassifyRestructuring, nil, map[string]string{
		RouteAgree:          NodeRestructuringConfirm,
		RouteDisagree:       NodePretrialNotice,
		domain.RouteUnknown: NodeAgent,
	})
	b.AddNode(NodeRestructuringConfirm, f.restructuringConfirm)
	b.AddEdge(NodeRestructuringConfirm, NodeFinalize)
	b.AddNode(NodePretrialNotice, f.pretrialNotice)
	b.AddEdge(NodePretrialNotice, NodeFinalize)

	b.AddNode(NodeNoAnswerLetter, f.noAnswerLetter)
	b.AddEdge(NodeNoAnswerLetter, NodeFinalize)

	// Problems on our side.
	b.AddNode(NodeClassifyClaimsSub, f.classifier(claimsClassifier), graph.WritesResume(NodeClassifyReason))
	b.AddConditionalEdge(NodeClassifyClaimsSub, nil, map[string]string{
		RouteDuplicateClosings:   NodeSendClosings,
		RouteAlreadyPaid:         NodeAlreadyPaid,
		RouteNeedsReconciliation: NodeNeedRecon,
		RouteNeedsInvoice:        NodeNeedInvoice,
		domain.RouteUnknown:      NodeAgent,
	})
	b.AddNode(NodeSendClosings, f.sendClosings, graph.WritesResume(NodeClassifyReason))
	b.AddEdge(NodeSendClosings, NodeTelemetry)
	b.AddNode(NodeAlreadyPaid, f.alreadyPaid)
	b.AddEdge(NodeAlreadyPaid, NodeFinalize)
	b.AddNode(NodeNeedRecon, f.needRecon, graph.WritesResume(NodeClassifyReason))
	b.AddEdge(NodeNeedRecon, NodeTelemetry)
	b.AddNode(NodeNeedInvoice, f.needInvoice)
	b.AddEdge(NodeNeedInvoice, NodeCreateDuplicateRequest)
	b.AddNode(NodeCreateDuplicateRequest, f.createDuplicateRequest)
	b.AddEdge(NodeCreateDuplicateRequest, NodeTelemetry)

	// Unknown routes, closing and reporting.
	b.AddNode(NodeAgent, f.agent)
	b.AddEdge(NodeAgent, NodeTelemetry)
	b.AddNode(NodeFinalize, f.finalize)
	b.AddEdge(NodeFinalize, NodeTelemetry)
	b.AddNode(NodeTelemetry, f.telemetry)
	b.AddEdge(NodeTelemetry, graph.End)

	return b
}
