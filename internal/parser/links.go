// Package parser extracts links and article structure from wiki HTML.
package parser

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/PentesterFlow/WikiCrawler/internal/scope"
)

// DefaultBaseURL is prefixed to accepted relative hrefs.
const DefaultBaseURL = "http://en.wikipedia.org"

// LinkExtractor pulls followable article links out of raw HTML.
type LinkExtractor struct {
	baseURL string
	policy  *scope.Policy
}

// NewLinkExtractor creates an extractor. An empty baseURL falls back to
// DefaultBaseURL and a nil policy to scope.DefaultPolicy.
func NewLinkExtractor(baseURL string, policy *scope.Policy) *LinkExtractor {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if policy == nil {
		policy = scope.DefaultPolicy()
	}
	return &LinkExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		policy:  policy,
	}
}

// BaseURL returns the prefix applied to accepted hrefs.
func (e *LinkExtractor) BaseURL() string {
	return e.baseURL
}

// ExtractLinks returns the absolute URLs of every accepted anchor href, each
// once, in document order. Empty or nil content yields nil.
func (e *LinkExtractor) ExtractLinks(content []byte) []string {
	if len(content) == 0 {
		return nil
	}

	var (
		links []string
		seen  = make(map[string]struct{})
		z     = html.NewTokenizer(bytes.NewReader(content))
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if len(name) != 1 || name[0] != 'a' || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					href := string(val)
					if e.policy.Accept(href) {
						abs := e.baseURL + href
						if _, dup := seen[abs]; !dup {
							seen[abs] = struct{}{}
							links = append(links, abs)
						}
					}
					break
				}
				if !more {
					break
				}
			}
		}
	}
}
