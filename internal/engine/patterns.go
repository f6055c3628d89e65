package engine

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"intentbot/internal/domain"
)

const (
	patternBase        = 0.70
	patternSpanWeight  = 0.20
	greetingShortBonus = 0.15
	orderVerbBonus     = 0.10
	questionBonus      = 0.05
	patternFloor       = 0.30
	patternCeil        = 0.95
)

// DefaultPatternRules returns the built-in rule table. Order within an
// intent matters for tie-breaking only: the best-scoring match across
// all intents wins.
func DefaultPatternRules() []domain.PatternRule {
	return []domain.PatternRule{
		{Intent: domain.IntentList, Expr: `^(?:lista|listino|catalogo)[.!?]*$`},
		{Intent: domain.IntentList, Expr: `\b(?:mandami|manda|mandi|mostrami|mostra|dammi|dai|inviami|invia|passami)\b.*\b(?:lista|listino|catalogo)\b`},
		{Intent: domain.IntentList, Expr: `\b(?:voglio|vorrei)\b.*\b(?:lista|listino|catalogo)\b`},
		{Intent: domain.IntentList, Expr: `\b(?:vedere|vedo|guardare)\b.*\b(?:lista|listino|catalogo)\b`},
		{Intent: domain.IntentList, Expr: `\bche\s+prodotti\b`},

		{Intent: domain.IntentGreeting, Expr: `^(?:ciao|salve|buongiorno|buonasera|buonanotte|hey|ehi|hello|hi)\b`},
		{Intent: domain.IntentGreeting, Expr: `\bcome\s+(?:va|stai|state)\b`},

		{Intent: domain.IntentOrder, Expr: `\b(?:vorrei|voglio|devo)\s+(?:fare\s+)?(?:un\s+)?ordin\w+`},
		{Intent: domain.IntentOrder, Expr: `\b(?:vorrei|voglio)\s+(?:comprare|acquistare|prenotare)\b`},
		{Intent: domain.IntentOrder, Expr: `\b(?:ordino|prenoto|acquisto|compro)\b`},
		{Intent: domain.IntentOrder, Expr: `\bconferm\w*\b.*\bordine\b`},
		{Intent: domain.IntentOrder, Expr: `\bprocedo\s+con\b`},

		{Intent: domain.IntentFAQ, Expr: `\bspedizion\w*\b`},
		{Intent: domain.IntentFAQ, Expr: `\bconsegn\w*\b`},
		{Intent: domain.IntentFAQ, Expr: `\bpagament\w*\b`},
		{Intent: domain.IntentFAQ, Expr: `\bordine\s+minimo\b`},
		{Intent: domain.IntentFAQ, Expr: `\bscont\w*\b`},
		{Intent: domain.IntentFAQ, Expr: `\btracking\b`},
		{Intent: domain.IntentFAQ, Expr: `\b(?:reso|resi|rimborso|rimborsi)\b`},
		{Intent: domain.IntentFAQ, Expr: `\bquanto\s+tempo\b`},
		{Intent: domain.IntentFAQ, Expr: `\bcome\s+(?:funziona|si\s+ordina|si\s+paga)\b`},

		{Intent: domain.IntentSearch, Expr: `\b(?:cerco|cercavo|sto\s+cercando)\b`},
		{Intent: domain.IntentSearch, Expr: `\b(?:avete|vendete|tenete|trattate)\b`},
		{Intent: domain.IntentSearch, Expr: `\bdisponibil\w*\b`},
		{Intent: domain.IntentSearch, Expr: `\bmi\s+interess\w*\b`},

		{Intent: domain.IntentContact, Expr: `\b(?:telefono|whatsapp|telegram|email|e-mail)\b`},
		{Intent: domain.IntentContact, Expr: `\bcontatt\w*\b`},
	}
}

type compiledPattern struct {
	intent domain.Intent
	expr   string
	re     *regexp.Regexp
}

// PatternMatcher evaluates every rule and keeps the best match across
// all intents. Side-effect-free; safe for concurrent use once built.
type PatternMatcher struct {
	rules      []compiledPattern
	orderVerbs map[string]bool
}

func NewPatternMatcher(rules []domain.PatternRule, orderVerbs []string) (*PatternMatcher, error) {
	m := &PatternMatcher{orderVerbs: make(map[string]bool, len(orderVerbs))}
	for _, v := range orderVerbs {
		m.orderVerbs[v] = true
	}
	for _, r := range rules {
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q for %s: %w", r.Expr, r.Intent, err)
		}
		m.rules = append(m.rules, compiledPattern{intent: r.Intent, expr: r.Expr, re: re})
	}
	return m, nil
}

// Rules returns the table in data form for snapshot persistence.
func (m *PatternMatcher) Rules() []domain.PatternRule {
	out := make([]domain.PatternRule, len(m.rules))
	for i, r := range m.rules {
		out[i] = domain.PatternRule{Intent: r.intent, Expr: r.expr}
	}
	return out
}

// Match scores text against every rule. Confidence is
// base + matchedSpan/totalLength * weight, plus intent bonuses, clamped
// to [0.30, 0.95]. Ties keep the earlier rule.
func (m *PatternMatcher) Match(text string) (domain.Match, bool) {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return domain.Match{}, false
	}
	tokens := Tokenize(text)
	endsQuestion := len(text) > 0 && text[len(text)-1] == '?'

	var best domain.Match
	found := false
	for _, r := range m.rules {
		loc := r.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		span := utf8.RuneCountInString(text[loc[0]:loc[1]])
		conf := patternBase + float64(span)/float64(total)*patternSpanWeight

		switch r.intent {
		case domain.IntentGreeting:
			if len(tokens) <= 2 {
				conf += greetingShortBonus
			}
		case domain.IntentOrder:
			if m.hasOrderVerb(tokens) {
				conf += orderVerbBonus
			}
		case domain.IntentSearch, domain.IntentFAQ:
			if endsQuestion {
				conf += questionBonus
			}
		}

		if conf < patternFloor {
			conf = patternFloor
		}
		if conf > patternCeil {
			conf = patternCeil
		}

		if !found || conf > best.Confidence {
			best = domain.Match{
				Intent:     r.intent,
				Confidence: conf,
				Reason:     fmt.Sprintf("pattern %s", r.expr),
				Tokens:     []string{text[loc[0]:loc[1]]},
			}
			found = true
		}
	}
	return best, found
}

func (m *PatternMatcher) hasOrderVerb(tokens []string) bool {
	for _, t := range tokens {
		if m.orderVerbs[t] {
			return true
		}
	}
	return false
}
