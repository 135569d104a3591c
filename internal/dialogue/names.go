package dialogue

// Node names.
const (
	NodeEntry                  = "entry"
	NodeIntro                  = "intro"
	NodeAskLPR                 = "ask_lpr"
	NodeClassifyLPR            = "classify_lpr"
	NodeNotLPR                 = "not_lpr"
	NodeLPRPrompt              = "lpr_prompt"
	NodeClassifyReason         = "classify_reason"
	NodeNamedDateWindow        = "named_date_window"
	NodeNamedDateWithinWeek    = "named_date_within_week"
	NodeNamedDateOverWeek      = "named_date_over_week"
	NodeProposePayWithinWeek   = "propose_pay_within_week"
	NodeClassifyAgreement      = "classify_agreement"
	NodeAgreeNamedDate         = "agree_named_date"
	NodeRestructuring          = "restructuring"
	NodeClassifyRestructuring  = "classify_restructuring_agreement"
	NodeRestructuringConfirm   = "restructuring_confirm"
	NodePretrialNotice         = "pretrial_notice"
	NodeNoAnswerLetter         = "no_answer_letter"
	NodeClassifyClaimsSub      = "classify_claims_sub"
	NodeSendClosings           = "send_closings"
	NodeAlreadyPaid            = "already_paid"
	NodeNeedRecon              = "need_recon"
	NodeNeedInvoice            = "need_invoice"
	NodeCreateDuplicateRequest = "create_duplicate_request"
	NodeAgent                  = "agent"
	NodeFinalize               = "finalize"
	NodeTelemetry              = "telemetry"
)

// Route labels produced by the classifiers.
const (
	RouteAskLPR              = "ask_lpr"
	RouteIsLPR               = "is_lpr"
	RouteNotLPR              = "not_lpr"
	RouteNamedDate           = "named_date"
	RouteClaimsOurSide       = "claims_our_side"
	RouteClientIssues        = "client_issues"
	RouteNoAnswer            = "no_answer"
	RouteWithinWeek          = "named_date_within_week"
	RouteOverWeek            = "named_date_over_week"
	RouteAgree               = "agree"
	RouteDisagree            = "disagree"
	RouteDuplicateClosings   = "duplicate_closings"
	RouteAlreadyPaid         = "already_paid"
	RouteNeedsReconciliation = "needs_reconciliation"
	RouteNeedsInvoice        = "needs_invoice"
)

// Stages.
const (
	StageIntro          = "intro"
	StageIdentifyLPR    = "identify_decision_maker"
	StageInfoLetter     = "info_letter"
	StageNamedDate      = "named_date"
	StageRestructuring  = "restructuring"
	StagePretrialNotice = "pretrial_notice"
	StageFinalized      = "finalized"
)

// Scratch fields written by the nodes.
const (
	FieldPaymentDate     = "payment_date"
	FieldOpsNote         = "ops_note"
	FieldOracleError     = "oracle_error"
	FieldOfferedRestruct = "offered_restruct"
	FieldFirstDate       = "first_date"
	FieldLastDate        = "last_date"
)

// Resumable lists the nodes a conversation may continue from on its next turn.
var Resumable = []string{
	NodeClassifyLPR,
	NodeClassifyReason,
	NodeClassifyAgreement,
	NodeClassifyRestructuring,
}
