package domain

import "fmt"

// Intent is the closed set of business categories a message can resolve to.
type Intent string

const (
	IntentOrder    Intent = "order"
	IntentSearch   Intent = "search"
	IntentFAQ      Intent = "faq"
	IntentList     Intent = "list"
	IntentGreeting Intent = "greeting"
	IntentContact  Intent = "contact"
	IntentFallback Intent = "fallback"
)

// Intents returns the full label set in stable order. Fallback is last:
// it is the terminal "could not classify" label, never a trained class.
func Intents() []Intent {
	return []Intent{
		IntentOrder,
		IntentSearch,
		IntentFAQ,
		IntentList,
		IntentGreeting,
		IntentContact,
		IntentFallback,
	}
}

func (i Intent) Valid() bool {
	switch i {
	case IntentOrder, IntentSearch, IntentFAQ, IntentList, IntentGreeting, IntentContact, IntentFallback:
		return true
	}
	return false
}

func (i Intent) String() string { return string(i) }

func ParseIntent(s string) (Intent, error) {
	in := Intent(s)
	if !in.Valid() {
		return "", fmt.Errorf("unknown intent %q", s)
	}
	return in, nil
}

// Stage identifies which cascade stage produced a classification.
type Stage string

const (
	StagePattern     Stage = "pattern"
	StageStatistical Stage = "statistical"
	StageHeuristic   Stage = "heuristic"
	StageFallback    Stage = "fallback"
)
