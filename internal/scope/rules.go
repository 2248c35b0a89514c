package scope

// DefaultExcludedNamespaces are the namespace prefixes never followed.
var DefaultExcludedNamespaces = []string{
	"Special:",
	"Template:",
	"Category:",
	"File:",
	"Portal:",
}

// ArticlePathPrefix is the path prefix every followed link must carry.
const ArticlePathPrefix = "/wiki/"

// Rules configures which hrefs count as crawlable article links.
type Rules struct {
	// ExcludedNamespaces are rejected when the title starts with them.
	ExcludedNamespaces []string `yaml:"excluded_namespaces" json:"excluded_namespaces"`

	// StrictNamespaces rejects any title containing ':' instead of only
	// the excluded prefixes. Help:, Talk: and friends are then dropped too.
	StrictNamespaces bool `yaml:"strict_namespaces" json:"strict_namespaces"`

	// IncludePatterns, when set, must match the href for it to be accepted.
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns"`

	// ExcludePatterns reject matching hrefs. They win over includes.
	ExcludePatterns []string `yaml:"exclude_patterns" json:"exclude_patterns"`
}

// DefaultRules returns the standard article-link rules.
func DefaultRules() Rules {
	ns := make([]string, len(DefaultExcludedNamespaces))
	copy(ns, DefaultExcludedNamespaces)
	return Rules{ExcludedNamespaces: ns}
}

// RuleBuilder assembles Rules fluently.
type RuleBuilder struct {
	rules Rules
}

// NewRuleBuilder starts from DefaultRules.
func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{rules: DefaultRules()}
}

// WithExcludedNamespaces adds namespace prefixes to reject.
func (b *RuleBuilder) WithExcludedNamespaces(ns ...string) *RuleBuilder {
	b.rules.ExcludedNamespaces = append(b.rules.ExcludedNamespaces, ns...)
	return b
}

// Strict rejects every namespaced title.
func (b *RuleBuilder) Strict() *RuleBuilder {
	b.rules.StrictNamespaces = true
	return b
}

// WithIncludePatterns adds include regexes.
func (b *RuleBuilder) WithIncludePatterns(patterns ...string) *RuleBuilder {
	b.rules.IncludePatterns = append(b.rules.IncludePatterns, patterns...)
	return b
}

// WithExcludePatterns adds exclude regexes.
func (b *RuleBuilder) WithExcludePatterns(patterns ...string) *RuleBuilder {
	b.rules.ExcludePatterns = append(b.rules.ExcludePatterns, patterns...)
	return b
}

// Build returns the assembled rules.
func (b *RuleBuilder) Build() Rules {
	return b.rules
}
