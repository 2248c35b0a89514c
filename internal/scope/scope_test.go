package scope

import (
	"testing"
)

// =============================================================================
// Policy Tests
// =============================================================================

func TestPolicy_Accept_Default(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		href string
		want bool
	}{
		{"/wiki/Dog", true},
		{"/wiki/Mario", true},
		{"/wiki/Sheriff_(disambiguation)", true},
		{"/wiki/Everybody%27s_Golf_(1997_video_game)", true},
		{"/wiki/COVID-19", true},
		{"/wiki/Help:Contents", true},
		{"/wiki/Special:Random", false},
		{"/wiki/Special:Search", false},
		{"/wiki/Template:Infobox", false},
		{"/wiki/Category:Mario_characters", false},
		{"/wiki/File:Mario.png", false},
		{"/wiki/Portal:Video_games", false},
		{"/wiki/Mario#Early_life", false},
		{"/wiki/", false},
		{"/w/index.php?title=Mario", false},
		{"https://example.com/wiki/Dog", false},
		{"#cite_note-1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := p.Accept(tt.href); got != tt.want {
				t.Errorf("Accept(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}

func TestPolicy_Accept_Strict(t *testing.T) {
	p, err := NewPolicy(NewRuleBuilder().Strict().Build())
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}

	if p.Accept("/wiki/Help:Contents") {
		t.Error("strict policy should reject Help:Contents")
	}
	if !p.Accept("/wiki/Dog") {
		t.Error("strict policy should accept Dog")
	}
}

func TestPolicy_Patterns(t *testing.T) {
	rules := NewRuleBuilder().
		WithIncludePatterns(`^/wiki/Super_`).
		WithExcludePatterns(`_\(disambiguation\)$`).
		Build()

	p, err := NewPolicy(rules)
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}

	tests := []struct {
		href string
		want bool
	}{
		{"/wiki/Super_Mario_Bros.", true},
		{"/wiki/Super_(disambiguation)", false},
		{"/wiki/Luigi", false},
	}
	for _, tt := range tests {
		if got := p.Accept(tt.href); got != tt.want {
			t.Errorf("Accept(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

func TestPolicy_ExtraNamespaces(t *testing.T) {
	p, _ := NewPolicy(NewRuleBuilder().WithExcludedNamespaces("Talk:").Build())
	if p.Accept("/wiki/Talk:Mario") {
		t.Error("Talk: should be excluded")
	}
	if !p.Accept("/wiki/Help:Contents") {
		t.Error("Help: should still be accepted")
	}
}

func TestNewPolicy_InvalidPattern(t *testing.T) {
	if _, err := NewPolicy(Rules{IncludePatterns: []string{"("}}); err == nil {
		t.Error("expected error for invalid include pattern")
	}
	if _, err := NewPolicy(Rules{ExcludePatterns: []string{"[z-a]"}}); err == nil {
		t.Error("expected error for invalid exclude pattern")
	}
}

func TestPolicy_Reason(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		href string
		want string
	}{
		{"/wiki/Dog", ""},
		{"/wiki/Mario#Early_life", "fragment"},
		{"/wiki/Special:Random", "excluded namespace Special"},
		{"/talk", "not an article path"},
		{"/wiki/", "empty title"},
	}
	for _, tt := range tests {
		if got := p.Reason(tt.href); got != tt.want {
			t.Errorf("Reason(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestDefaultRules_IsCopy(t *testing.T) {
	r := DefaultRules()
	r.ExcludedNamespaces[0] = "Changed:"
	if DefaultExcludedNamespaces[0] != "Special:" {
		t.Error("DefaultRules must not alias the package defaults")
	}
}
