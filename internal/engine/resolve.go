package engine

import "strings"

// vagueRefs are the Italian demonstratives a follow-up message uses in
// place of the product it is about.
var vagueRefs = []string{
	"quello", "quella", "quel", "quelli", "quelle",
	"precedente", "stesso", "stessa",
}

// ResolveReferences substitutes vague references with the product the
// previous message in the chat was about, so "quanto costa quello?"
// classifies like "quanto costa <product>?". With no prior product, or
// no vague reference, the text passes through untouched.
func ResolveReferences(text, lastProduct string) string {
	if lastProduct == "" {
		return text
	}
	tokens := Tokenize(text)
	padded := " " + strings.Join(tokens, " ") + " "
	resolved := text
	for _, ref := range vagueRefs {
		if strings.Contains(padded, " "+ref+" ") {
			resolved = replaceToken(resolved, ref, lastProduct)
		}
	}
	return resolved
}

// replaceToken swaps whole-word occurrences only, case-insensitively,
// leaving surrounding punctuation in place.
func replaceToken(text, token, replacement string) string {
	var out strings.Builder
	lower := strings.ToLower(text)
	for i := 0; i < len(text); {
		j := strings.Index(lower[i:], token)
		if j < 0 {
			out.WriteString(text[i:])
			break
		}
		start := i + j
		end := start + len(token)
		boundedLeft := start == 0 || !isWordByte(lower[start-1])
		boundedRight := end == len(text) || !isWordByte(lower[end])
		out.WriteString(text[i:start])
		if boundedLeft && boundedRight {
			out.WriteString(replacement)
		} else {
			out.WriteString(text[start:end])
		}
		i = end
	}
	return out.String()
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// FindProduct reports the first product or category token present in
// text, used for entity extraction on the chat-memory path.
func (e *HeuristicRuleEngine) FindProduct(text string) string {
	tokens := Tokenize(text)
	padded := " " + strings.Join(tokens, " ") + " "
	return firstPhrase(padded, e.products)
}
