// Package keyword is a deterministic, offline oracle driven by keyword rules.
//
// It understands English and Russian phrasing well enough for demos, local
// development and tests, and is the fallback when no model API key is set.
package keyword

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/pichlex/debitor/pkg/domain"
)

// Rule maps a route label to the keywords that select it.
//
// A keyword containing a space is matched as a phrase anywhere in the text
// (a trailing '*' is ignored there). Otherwise a keyword ending in '*'
// matches any word with that prefix and any other keyword must equal a
// whole word.
type Rule struct {
	Label    string
	Keywords []string
}

// Date-related labels resolved from the message rather than from keywords.
const (
	LabelNamedDate        = "named_date"
	LabelWithinWeek       = "named_date_within_week"
	LabelOverWeek         = "named_date_over_week"
	withinWeekHorizonDays = 7
)

// DefaultRules are evaluated in order; the first allowed label with a match wins.
var DefaultRules = []Rule{
	{Label: "not_lpr", Keywords: []string{"secretary", "accountant", "operator", "assistant", "not me", "секретарь", "бухгалтер", "оператор", "не я"}},
	{Label: "is_lpr", Keywords: []string{"director", "owner", "ceo", "with me", "i decide", "in charge", "speaking", "директор", "руковож*", "со мной", "я лпр", "принимаю решения", "отвечаю за оплату"}},
	{Label: "ask_lpr", Keywords: []string{"hello", "hi", "hey", "yes", "алло", "да", "слушаю"}},

	{Label: "already_paid", Keywords: []string{"already paid", "paid already", "we paid", "уже оплатил*", "оплатили"}},
	{Label: "needs_reconciliation", Keywords: []string{"reconciliation", "reconcile", "сверк*"}},
	{Label: "needs_invoice", Keywords: []string{"invoice", "bill", "счет", "счёт", "счета"}},
	{Label: "duplicate_closings", Keywords: []string{"closing documents", "duplicate", "didn't receive", "did not receive", "закрывающ*", "дубл*", "не получили"}},
	{Label: "claims_our_side", Keywords: []string{"already paid", "invoice", "reconciliation", "documents", "didn't receive", "did not receive", "your side", "уже оплатил*", "счет", "счёт", "сверк*", "закрывающ*", "документ*", "не получили"}},
	{Label: "client_issues", Keywords: []string{"no money", "cash", "difficult*", "problem*", "can't pay", "cannot pay", "нет денег", "трудност*", "проблем*", "не можем оплатить"}},
	{Label: "no_answer", Keywords: []string{"don't know", "do not know", "no idea", "can't say", "не знаю", "не могу сказать"}},

	{Label: "disagree", Keywords: []string{"no", "not", "can't", "cannot", "won't", "refuse", "нет", "не соглас*", "не можем", "не сможем", "отказ*"}},
	{Label: "agree", Keywords: []string{"yes", "agree*", "ok", "okay", "sure", "fine", "deal", "да", "соглас*", "хорошо", "ок", "договорились"}},
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithRules replaces the rule set.
func WithRules(rules []Rule) Option {
	return func(o *Oracle) {
		o.rules = rules
	}
}

// WithClock sets the time source used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		o.now = now
	}
}

// Oracle implements ports.Oracle with keyword rules.
type Oracle struct {
	rules []Rule
	now   func() time.Time
}

// New creates a keyword oracle with DefaultRules.
func New(opts ...Option) *Oracle {
	o := &Oracle{rules: DefaultRules, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Model names the oracle in logs.
func (o *Oracle) Model() string {
	return "keyword"
}

// Classify implements ports.Oracle.
func (o *Oracle) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}
	text := normalize(req.LastUserText())
	today := o.now()

	if slices.Contains(req.Allowed, LabelWithinWeek) || slices.Contains(req.Allowed, LabelOverWeek) {
		date, ok := latestDate(req.History, today)
		if !ok {
			return domain.Classification{Route: domain.RouteUnknown, Notes: "no payment date found"}, nil
		}
		label := LabelOverWeek
		if withinWeek(date, today) {
			label = LabelWithinWeek
		}
		return domain.Classification{Route: label, Notes: "payment date " + date.Format(time.DateOnly), TargetDate: date.Format(time.DateOnly)}, nil
	}

	date, hasDate := findDate(text, today)
	if hasDate && slices.Contains(req.Allowed, LabelNamedDate) {
		return domain.Classification{Route: LabelNamedDate, Notes: "named a payment date", TargetDate: date.Format(time.DateOnly)}, nil
	}

	words := tokenize(text)
	for _, rule := range o.rules {
		if !slices.Contains(req.Allowed, rule.Label) {
			continue
		}
		if kw, ok := match(text, words, rule.Keywords); ok {
			out := domain.Classification{Route: rule.Label, Notes: fmt.Sprintf("matched %q", kw)}
			if hasDate {
				out.TargetDate = date.Format(time.DateOnly)
			}
			return out, nil
		}
	}
	return domain.Classification{Route: domain.RouteUnknown, Notes: "no rule matched"}, nil
}

func match(text string, words []string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		switch {
		case strings.Contains(kw, " "):
			if strings.Contains(text, strings.TrimSuffix(kw, "*")) {
				return kw, true
			}
		case strings.HasSuffix(kw, "*"):
			prefix := strings.TrimSuffix(kw, "*")
			for _, w := range words {
				if strings.HasPrefix(w, prefix) {
					return kw, true
				}
			}
		default:
			if slices.Contains(words, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "’", "'")
	return strings.Join(strings.Fields(s), " ")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

var (
	isoDate    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dottedDate = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})[./](\d{4})\b`)
)

func findDate(text string, today time.Time) (time.Time, bool) {
	if m := isoDate.FindString(text); m != "" {
		if d, err := time.Parse(time.DateOnly, m); err == nil {
			return d, true
		}
	}
	if m := dottedDate.FindStringSubmatch(text); m != nil {
		if d, err := time.Parse("2.1.2006", m[1]+"."+m[2]+"."+m[3]); err == nil {
			return d, true
		}
	}
	words := tokenize(text)
	day := func(offset int) time.Time {
		y, mo, d := today.Date()
		return time.Date(y, mo, d+offset, 0, 0, 0, 0, time.UTC)
	}
	switch {
	case slices.Contains(words, "today") || slices.Contains(words, "сегодня"):
		return day(0), true
	case slices.Contains(words, "tomorrow") || slices.Contains(words, "завтра"):
		return day(1), true
	case strings.Contains(text, "next week") || strings.Contains(text, "на следующей неделе"):
		return day(7), true
	case strings.Contains(text, "next month") || strings.Contains(text, "в следующем месяце"):
		return day(30), true
	}
	return time.Time{}, false
}

func latestDate(history []domain.Message, today time.Time) (time.Time, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleUser {
			continue
		}
		if d, ok := findDate(normalize(history[i].Text), today); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func withinWeek(date, today time.Time) bool {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !date.After(start.AddDate(0, 0, withinWeekHorizonDays))
}
