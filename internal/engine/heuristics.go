package engine

import (
	"strings"

	"intentbot/internal/domain"
	"intentbot/internal/lexicon"
)

// heuristicInput carries everything the rules inspect, computed once
// per call so each rule stays a cheap predicate.
type heuristicInput struct {
	padded   string // " token token ... " for boundary-safe phrase checks
	tokens   []string
	endsQ    bool
	hasDigit bool

	contactWord string
	faqWord     string
	priceCue    string
	product     string
	wishVerb    string
	orderVerb   string
	interrog    string
}

type heuristicRule struct {
	name string
	eval func(in *heuristicInput) (domain.Match, bool)
}

type dictEntry struct {
	intent     domain.Intent
	confidence float64
}

// HeuristicRuleEngine is the last rule-based stage: a strict priority
// cascade where the first firing rule wins. The priority order is the
// rules slice, data rather than control flow.
type HeuristicRuleEngine struct {
	contactWords []string
	faqKeywords  []string
	priceCues    []string
	products     []string
	wishVerbs    []string

	orderVerbs     map[string]bool
	interrogatives map[string]bool
	priceWords     map[string]bool
	dictionary     map[string]dictEntry

	rules []heuristicRule
}

func NewHeuristicRuleEngine(lex *lexicon.Lexicon) *HeuristicRuleEngine {
	e := &HeuristicRuleEngine{
		contactWords:   lex.ContactWords,
		faqKeywords:    lex.FAQKeywords,
		priceCues:      lex.PriceCues,
		products:       append(append([]string(nil), lex.Products...), lex.Categories...),
		wishVerbs:      lex.WishVerbs,
		orderVerbs:     toSet(lex.OrderVerbs),
		interrogatives: toSet(lex.Interrogatives),
		priceWords:     map[string]bool{"quanto": true, "prezzo": true, "prezzi": true, "costo": true, "costi": true},
		dictionary:     make(map[string]dictEntry, len(lex.Dictionary)),
	}
	for _, d := range lex.Dictionary {
		in, err := domain.ParseIntent(d.Intent)
		if err != nil {
			continue
		}
		e.dictionary[strings.ToLower(strings.TrimSpace(d.Token))] = dictEntry{intent: in, confidence: d.Confidence}
	}
	e.rules = []heuristicRule{
		{"contact-keyword", e.ruleContact},
		{"faq-keyword", e.ruleFAQ},
		{"price-and-product", e.rulePriceProduct},
		{"wish-verb", e.ruleWishVerb},
		{"order-verb", e.ruleOrderVerb},
		{"product-token", e.ruleProductToken},
		{"single-token-dictionary", e.ruleDictionary},
		{"two-token", e.ruleTwoToken},
		{"interrogative-fallback", e.ruleInterrogative},
	}
	return e
}

// Match walks the rule table in order; the first rule that fires
// short-circuits the rest.
func (e *HeuristicRuleEngine) Match(text string) (domain.Match, bool) {
	in := e.inspect(text)
	for _, r := range e.rules {
		if m, ok := r.eval(in); ok {
			m.Reason = "heuristic " + r.name
			return m, true
		}
	}
	return domain.Match{}, false
}

func (e *HeuristicRuleEngine) inspect(text string) *heuristicInput {
	tokens := Tokenize(text)
	in := &heuristicInput{
		padded:   " " + strings.Join(tokens, " ") + " ",
		tokens:   tokens,
		endsQ:    strings.HasSuffix(strings.TrimSpace(text), "?"),
		hasDigit: hasDigit(text),
	}
	in.contactWord = firstPhrase(in.padded, e.contactWords)
	in.faqWord = firstPhrase(in.padded, e.faqKeywords)
	in.priceCue = firstPhrase(in.padded, e.priceCues)
	in.product = firstPhrase(in.padded, e.products)
	in.wishVerb = firstPhrase(in.padded, e.wishVerbs)
	for _, t := range tokens {
		if in.orderVerb == "" && e.orderVerbs[t] {
			in.orderVerb = t
		}
		if in.interrog == "" && e.interrogatives[t] {
			in.interrog = t
		}
	}
	return in
}

func (e *HeuristicRuleEngine) ruleContact(in *heuristicInput) (domain.Match, bool) {
	if in.contactWord == "" || strings.Contains(in.padded, " tracking ") {
		return domain.Match{}, false
	}
	return domain.Match{Intent: domain.IntentContact, Confidence: 0.90, Tokens: []string{in.contactWord}}, true
}

func (e *HeuristicRuleEngine) ruleFAQ(in *heuristicInput) (domain.Match, bool) {
	if in.faqWord == "" {
		return domain.Match{}, false
	}
	// Price question about a concrete product beats the FAQ keyword,
	// unless the question is about shipping itself.
	if in.priceCue != "" && in.product != "" && !mentionsShipping(in.tokens) {
		return domain.Match{Intent: domain.IntentSearch, Confidence: 0.85, Tokens: []string{in.priceCue, in.product}}, true
	}
	return domain.Match{Intent: domain.IntentFAQ, Confidence: 0.85, Tokens: []string{in.faqWord}}, true
}

func (e *HeuristicRuleEngine) rulePriceProduct(in *heuristicInput) (domain.Match, bool) {
	if in.priceCue == "" || in.product == "" {
		return domain.Match{}, false
	}
	return domain.Match{Intent: domain.IntentSearch, Confidence: 0.88, Tokens: []string{in.priceCue, in.product}}, true
}

func (e *HeuristicRuleEngine) ruleWishVerb(in *heuristicInput) (domain.Match, bool) {
	if in.wishVerb == "" {
		return domain.Match{}, false
	}
	switch {
	case in.product != "":
		return domain.Match{Intent: domain.IntentOrder, Confidence: 0.90, Tokens: []string{in.wishVerb, in.product}}, true
	case in.hasDigit:
		return domain.Match{Intent: domain.IntentOrder, Confidence: 0.75, Tokens: []string{in.wishVerb}}, true
	default:
		return domain.Match{Intent: domain.IntentSearch, Confidence: 0.70, Tokens: []string{in.wishVerb}}, true
	}
}

func (e *HeuristicRuleEngine) ruleOrderVerb(in *heuristicInput) (domain.Match, bool) {
	if in.orderVerb == "" {
		return domain.Match{}, false
	}
	return domain.Match{Intent: domain.IntentOrder, Confidence: 0.85, Tokens: []string{in.orderVerb}}, true
}

func (e *HeuristicRuleEngine) ruleProductToken(in *heuristicInput) (domain.Match, bool) {
	if in.product == "" {
		return domain.Match{}, false
	}
	if in.endsQ {
		return domain.Match{Intent: domain.IntentSearch, Confidence: 0.80, Tokens: []string{in.product}}, true
	}
	if len(in.tokens) <= 2 {
		return domain.Match{Intent: domain.IntentSearch, Confidence: 0.75, Tokens: []string{in.product}}, true
	}
	return domain.Match{}, false
}

func (e *HeuristicRuleEngine) ruleDictionary(in *heuristicInput) (domain.Match, bool) {
	if len(in.tokens) != 1 {
		return domain.Match{}, false
	}
	d, ok := e.dictionary[in.tokens[0]]
	if !ok {
		return domain.Match{}, false
	}
	return domain.Match{Intent: d.intent, Confidence: d.confidence, Tokens: []string{in.tokens[0]}}, true
}

func (e *HeuristicRuleEngine) ruleTwoToken(in *heuristicInput) (domain.Match, bool) {
	if len(in.tokens) != 2 {
		return domain.Match{}, false
	}
	first := in.tokens[0]
	switch {
	case e.orderVerbs[first]:
		return domain.Match{Intent: domain.IntentOrder, Confidence: 0.80, Tokens: []string{first}}, true
	case e.priceWords[first]:
		return domain.Match{Intent: domain.IntentSearch, Confidence: 0.78, Tokens: []string{first}}, true
	case e.interrogatives[first]:
		return domain.Match{Intent: domain.IntentFAQ, Confidence: 0.72, Tokens: []string{first}}, true
	}
	return domain.Match{}, false
}

func (e *HeuristicRuleEngine) ruleInterrogative(in *heuristicInput) (domain.Match, bool) {
	if in.interrog != "" {
		return domain.Match{Intent: domain.IntentFAQ, Confidence: 0.75, Tokens: []string{in.interrog}}, true
	}
	if in.endsQ {
		return domain.Match{Intent: domain.IntentSearch, Confidence: 0.70}, true
	}
	return domain.Match{}, false
}

func mentionsShipping(tokens []string) bool {
	for _, t := range tokens {
		if strings.HasPrefix(t, "spedizion") || strings.HasPrefix(t, "consegn") {
			return true
		}
	}
	return false
}

func firstPhrase(padded string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return p
		}
	}
	return ""
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
