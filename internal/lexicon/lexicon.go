package lexicon

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"intentbot/internal/domain"
)

// Lexicon holds the keyword tables the rule-based stages match against.
// The built-in defaults cover the fixed rule set; a YAML file can extend
// them (admin additions land there, never in code).
type Lexicon struct {
	Products       []string          `yaml:"products" json:"products"`
	Categories     []string          `yaml:"categories" json:"categories"`
	FAQKeywords    []string          `yaml:"faq_keywords" json:"faq_keywords"`
	ContactWords   []string          `yaml:"contact_keywords" json:"contact_keywords"`
	WishVerbs      []string          `yaml:"wish_verbs" json:"wish_verbs"`
	OrderVerbs     []string          `yaml:"order_verbs" json:"order_verbs"`
	PriceCues      []string          `yaml:"price_cues" json:"price_cues"`
	Greetings      []string          `yaml:"greetings" json:"greetings"`
	Interrogatives []string          `yaml:"interrogatives" json:"interrogatives"`
	Dictionary     []DictionaryEntry `yaml:"dictionary" json:"dictionary"`
}

// DictionaryEntry maps a single exact token to an intent with a fixed
// confidence (the single-token lookup table of the heuristic engine).
type DictionaryEntry struct {
	Token      string  `yaml:"token" json:"token"`
	Intent     string  `yaml:"intent" json:"intent"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// Table names accepted by AppendTerm.
const (
	TableProducts   = "products"
	TableCategories = "categories"
	TableFAQ        = "faq_keywords"
)

func Default() *Lexicon {
	return &Lexicon{
		Products: []string{
			"anavar", "integratore", "integratori", "proteine", "creatina",
			"vitamina c", "collagene", "miele", "tisana", "siero",
			"olio essenziale", "crema viso", "shampoo",
		},
		Categories: []string{
			"cosmetici", "vitamine", "creme", "oli", "prodotti",
		},
		FAQKeywords: []string{
			"spedizione", "spedizioni", "consegna", "tempi di consegna",
			"pagamento", "metodo di pagamento", "metodi di pagamento",
			"ordine minimo", "sconto", "sconti", "tracking", "reso", "rimborso",
		},
		ContactWords: []string{
			"telefono", "whatsapp", "telegram", "email", "contatto",
			"contatti", "contattare", "numero di telefono",
		},
		WishVerbs: []string{
			"voglio", "vorrei", "mi serve", "mi servono", "ho bisogno", "desidero",
		},
		OrderVerbs: []string{
			"ordino", "ordinare", "ordina", "ordine", "prenota", "prenotare",
			"prenoto", "compra", "comprare", "compro", "acquista",
			"acquistare", "acquisto",
		},
		PriceCues: []string{
			"quanto costa", "quanto costano", "quanto viene", "quanto vengono",
			"a quanto", "prezzo", "prezzi", "costo", "costi",
		},
		Greetings: []string{
			"ciao", "salve", "buongiorno", "buonasera", "buonanotte",
			"hey", "hello", "hi", "ehi",
		},
		Interrogatives: []string{
			"quando", "dove", "come", "when", "where", "how",
		},
		Dictionary: []DictionaryEntry{
			{Token: "lista", Intent: string(domain.IntentList), Confidence: 0.90},
			{Token: "listino", Intent: string(domain.IntentList), Confidence: 0.90},
			{Token: "catalogo", Intent: string(domain.IntentList), Confidence: 0.90},
			{Token: "catalog", Intent: string(domain.IntentList), Confidence: 0.90},
			{Token: "ok", Intent: string(domain.IntentOrder), Confidence: 0.80},
			{Token: "okay", Intent: string(domain.IntentOrder), Confidence: 0.80},
			{Token: "ciao", Intent: string(domain.IntentGreeting), Confidence: 0.95},
			{Token: "salve", Intent: string(domain.IntentGreeting), Confidence: 0.95},
			{Token: "hello", Intent: string(domain.IntentGreeting), Confidence: 0.95},
			{Token: "info", Intent: string(domain.IntentFAQ), Confidence: 0.75},
			{Token: "aiuto", Intent: string(domain.IntentFAQ), Confidence: 0.80},
			{Token: "help", Intent: string(domain.IntentFAQ), Confidence: 0.80},
		},
	}
}

// Load returns the defaults extended with the terms stored at path.
// A missing file is not an error: the defaults alone are a complete
// lexicon. Reserved tokens (greetings, dictionary entries) found in the
// file's product/category tables are dropped so a hand-edited file can
// never shadow the greeting lookup.
func Load(path string) (*Lexicon, error) {
	lex := Default()
	if path == "" {
		return lex, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lex, nil
		}
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var extra Lexicon
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse lexicon yaml: %w", err)
	}
	reserved := lex.reservedTokens()
	lex.Products = mergeTerms(lex.Products, extra.Products, reserved)
	lex.Categories = mergeTerms(lex.Categories, extra.Categories, reserved)
	lex.FAQKeywords = mergeTerms(lex.FAQKeywords, extra.FAQKeywords, nil)
	lex.ContactWords = mergeTerms(lex.ContactWords, extra.ContactWords, nil)
	lex.WishVerbs = mergeTerms(lex.WishVerbs, extra.WishVerbs, nil)
	lex.OrderVerbs = mergeTerms(lex.OrderVerbs, extra.OrderVerbs, nil)
	lex.PriceCues = mergeTerms(lex.PriceCues, extra.PriceCues, nil)
	lex.Greetings = mergeTerms(lex.Greetings, extra.Greetings, nil)
	lex.Interrogatives = mergeTerms(lex.Interrogatives, extra.Interrogatives, nil)
	for _, e := range extra.Dictionary {
		if !lex.hasDictionaryToken(e.Token) {
			lex.Dictionary = append(lex.Dictionary, e)
		}
	}
	return lex, nil
}

// AppendTerm persists one admin-supplied term into the lexicon file at
// path. Only the named table grows; duplicates are a no-op. Product and
// category terms colliding with a greeting or dictionary token are
// rejected so short greetings keep resolving as greetings.
func AppendTerm(path, table, term string) error {
	term = normalizeToken(term)
	if term == "" {
		return nil
	}
	if path == "" {
		return fmt.Errorf("no lexicon file configured")
	}

	if table == TableProducts || table == TableCategories {
		if Default().isReserved(term) {
			return fmt.Errorf("term %q is reserved by the greeting or dictionary table", term)
		}
	}

	var stored Lexicon
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("parse existing lexicon: %w", err)
		}
	}

	var list *[]string
	switch table {
	case TableProducts:
		list = &stored.Products
	case TableCategories:
		list = &stored.Categories
	case TableFAQ:
		list = &stored.FAQKeywords
	default:
		return fmt.Errorf("unknown lexicon table %q", table)
	}
	for _, t := range *list {
		if normalizeToken(t) == term {
			return nil // already present
		}
	}
	*list = append(*list, term)
	return save(path, &stored)
}

func save(path string, lex *Lexicon) error {
	data, err := yaml.Marshal(lex)
	if err != nil {
		return fmt.Errorf("marshal lexicon: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func mergeTerms(base, extra []string, reserved map[string]bool) []string {
	seen := make(map[string]bool, len(base))
	for _, t := range base {
		seen[normalizeToken(t)] = true
	}
	for _, t := range extra {
		n := normalizeToken(t)
		if n == "" || seen[n] || reserved[n] {
			continue
		}
		seen[n] = true
		base = append(base, n)
	}
	return base
}

func (l *Lexicon) reservedTokens() map[string]bool {
	r := make(map[string]bool, len(l.Greetings)+len(l.Dictionary))
	for _, g := range l.Greetings {
		r[normalizeToken(g)] = true
	}
	for _, e := range l.Dictionary {
		r[normalizeToken(e.Token)] = true
	}
	return r
}

func (l *Lexicon) isReserved(term string) bool {
	return l.reservedTokens()[normalizeToken(term)]
}

func (l *Lexicon) hasDictionaryToken(token string) bool {
	n := normalizeToken(token)
	for _, e := range l.Dictionary {
		if normalizeToken(e.Token) == n {
			return true
		}
	}
	return false
}
