// Package scope decides which hrefs found on a page are followed.
//
// The accepted form is /wiki/<title> where <title> is non-empty, has no
// fragment, and does not start with an excluded namespace. Other namespaces
// such as Help: are accepted unless StrictNamespaces is set.
package scope

import (
	"fmt"
	"regexp"
	"strings"
)

// Policy is a compiled Rules set. It is immutable and safe for concurrent use.
type Policy struct {
	rules    Rules
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

// NewPolicy compiles rules.
func NewPolicy(rules Rules) (*Policy, error) {
	p := &Policy{rules: rules}

	for _, pattern := range rules.IncludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		p.includes = append(p.includes, re)
	}
	for _, pattern := range rules.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		p.excludes = append(p.excludes, re)
	}

	return p, nil
}

// DefaultPolicy returns the policy for DefaultRules.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(DefaultRules())
	return p
}

// Rules returns the rules the policy was built from.
func (p *Policy) Rules() Rules {
	return p.rules
}

// Accept reports whether a raw href should be followed.
func (p *Policy) Accept(href string) bool {
	title, ok := strings.CutPrefix(href, ArticlePathPrefix)
	if !ok || title == "" {
		return false
	}
	if strings.Contains(title, "#") {
		return false
	}
	if p.rules.StrictNamespaces && strings.Contains(title, ":") {
		return false
	}
	for _, ns := range p.rules.ExcludedNamespaces {
		if strings.HasPrefix(title, ns) {
			return false
		}
	}

	for _, re := range p.excludes {
		if re.MatchString(href) {
			return false
		}
	}
	if len(p.includes) == 0 {
		return true
	}
	for _, re := range p.includes {
		if re.MatchString(href) {
			return true
		}
	}
	return false
}

// Reason explains why href is rejected, or returns "" if it is accepted.
func (p *Policy) Reason(href string) string {
	title, ok := strings.CutPrefix(href, ArticlePathPrefix)
	switch {
	case !ok:
		return "not an article path"
	case title == "":
		return "empty title"
	case strings.Contains(title, "#"):
		return "fragment"
	case p.rules.StrictNamespaces && strings.Contains(title, ":"):
		return "namespaced title"
	}
	for _, ns := range p.rules.ExcludedNamespaces {
		if strings.HasPrefix(title, ns) {
			return "excluded namespace " + strings.TrimSuffix(ns, ":")
		}
	}
	if !p.Accept(href) {
		return "pattern"
	}
	return ""
}
