package dialogue

import (
	"fmt"
	"strings"
	"text/template"
)

// Template names.
const (
	tplIntro              = "intro"
	tplAskLPR             = "ask_lpr"
	tplNotLPR             = "not_lpr"
	tplLPRPrompt          = "lpr_prompt"
	tplWithinWeek         = "named_date_within_week"
	tplOverWeek           = "named_date_over_week"
	tplPayWithinWeek      = "pay_within_week"
	tplAgreeNamedDate     = "agree_named_date"
	tplRestructOffer      = "restruct_offer"
	tplRestructConfirm    = "restruct_confirm"
	tplPretrialNotice     = "pretrial_notice"
	tplFirstDebtorLetter  = "first_debtor_letter"
	tplDuplicateClosings  = "duplicate_closings"
	tplAlreadyPaid        = "already_paid"
	tplNeedRecon          = "need_recon"
	tplNeedInvoiceExplain = "need_invoice_explain"
	tplDuplicateRequest   = "duplicate_request"
	tplEscalation         = "escalation"
)

var templateText = map[string]string{
	tplIntro: "Good afternoon! My name is {{.AgentName}}, I am calling about the outstanding balance of {{.Company}}. " +
		"Who can I speak to about the debt?",
	tplAskLPR: "Could you tell me who I can discuss the debt of {{.Company}} with? " +
		"Are you the person who makes payment decisions?",
	tplNotLPR: "Who could I discuss the payment with? Could you share the decision maker's contact? " +
		"If there is no phone number, an e-mail works too and I will send the documents there.",
	tplLPRPrompt: "Under the act of {{.ActDate}} there is an unpaid amount of {{.ActAmount}}. " +
		"When can we expect the payment, or what is holding it up?",
	tplWithinWeek:     "Thank you, noted: we expect the payment on {{.TargetDate}}. I will follow up on that day.",
	tplOverWeek:       "Payment on {{.TargetDate}} is more than a week away. Let's fix that date and I will check in with you in three days.",
	tplPayWithinWeek:  "I understand. Could you settle the debt within a week?",
	tplAgreeNamedDate: "Great, thank you! We will expect the payment by {{.TargetDate}}.",
	tplRestructOffer: "We can offer a restructuring: payments in instalments from {{.FirstDate}} to {{.LastDate}}. " +
		"Would that work for you?",
	tplRestructConfirm: "Thank you! I will send the instalment schedule by e-mail for your confirmation.",
	tplPretrialNotice: "Unfortunately, without a payment we will have to send a pre-trial claim for {{.DebtSum}}. " +
		"You can still avoid it by paying before the claim is sent.",
	tplFirstDebtorLetter: "I will send you a letter with the details of the debt and the payment instructions. " +
		"I will call you back in three days.",
	tplDuplicateClosings: "I will request duplicates of the closing documents and send them by e-mail. " +
		"When can we expect the payment?",
	tplAlreadyPaid: "Thank you! Please send the payment order so that we can locate and allocate the payment.",
	tplNeedRecon: "I will prepare and send you a reconciliation statement. " +
		"Once it is agreed, when can we expect the payment?",
	tplNeedInvoiceExplain: "An invoice is not required for the payment: the closing documents and our bank details are sufficient. " +
		"I can send them again if needed.",
	tplDuplicateRequest: "We will file the request for duplicate closing documents and confirm it by e-mail.",
	tplEscalation: "I want to make sure I understood you correctly. " +
		"A specialist will review our conversation and get back to you shortly.",
}

var templates = parseTemplates(templateText)

func parseTemplates(src map[string]string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(src))
	for name, text := range src {
		out[name] = template.Must(template.New(name).Option("missingkey=error").Parse(text))
	}
	return out
}

// view is the data a template is rendered with.
type view struct {
	CallerInfo
	TargetDate string
	FirstDate  string
	LastDate   string
}

func render(name string, data view) (string, error) {
	tpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}
