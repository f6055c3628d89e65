package engine

import "testing"

func TestResolveReferences(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		product string
		want    string
	}{
		{"pronoun resolved", "quanto costa quello?", "creatina", "quanto costa creatina?"},
		{"no prior product", "quanto costa quello?", "", "quanto costa quello?"},
		{"no vague reference", "quanto costa la creatina?", "miele", "quanto costa la creatina?"},
		{"plural form", "vorrei quelli", "proteine", "vorrei proteine"},
		{"same-again form", "ordino lo stesso", "collagene", "ordino lo collagene"},
		{"prefix not replaced", "quella quercia", "miele", "miele quercia"},
		{"case insensitive", "Quanto costa QUELLO", "siero", "Quanto costa siero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveReferences(tt.text, tt.product); got != tt.want {
				t.Errorf("ResolveReferences(%q, %q) = %q, want %q", tt.text, tt.product, got, tt.want)
			}
		})
	}
}

func TestResolveReferencesLeavesEmbeddedWordsAlone(t *testing.T) {
	// "quelli" contains "quel" but only whole tokens are replaced;
	// "quelli" itself is a vague reference and resolves as one.
	got := ResolveReferences("quelli vanno bene", "tisana")
	if got != "tisana vanno bene" {
		t.Errorf("got %q, want %q", got, "tisana vanno bene")
	}
}
