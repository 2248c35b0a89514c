package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Article is the structured view of one wiki page.
type Article struct {
	Title         string            `json:"title"`
	URL           string            `json:"url"`
	Infobox       map[string]string `json:"infobox"`
	Categories    []string          `json:"categories"`
	LeadText      string            `json:"lead_text"`
	InternalLinks []string          `json:"internal_links"`
}

// ArticleParser parses wiki article HTML with goquery.
type ArticleParser struct {
	links *LinkExtractor
}

// NewArticleParser creates a parser that resolves internal links with links.
// A nil extractor uses the defaults.
func NewArticleParser(links *LinkExtractor) *ArticleParser {
	if links == nil {
		links = NewLinkExtractor("", nil)
	}
	return &ArticleParser{links: links}
}

// Parse extracts title, infobox, categories, lead text and internal links.
// The title falls back to TitleFromURL when the page has no first heading.
func (p *ArticleParser) Parse(content []byte, articleURL string) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	title := collapseSpace(doc.Find("h1#firstHeading").First().Text())
	if title == "" {
		title = TitleFromURL(articleURL)
	}

	return &Article{
		Title:         title,
		URL:           articleURL,
		Infobox:       extractInfobox(doc),
		Categories:    extractCategories(doc),
		LeadText:      extractLead(doc),
		InternalLinks: p.links.ExtractLinks(content),
	}, nil
}

func extractInfobox(doc *goquery.Document) map[string]string {
	data := make(map[string]string)

	table := doc.Find("table.infobox").First()
	if table.Length() == 0 {
		return data
	}

	rows := table.ChildrenFiltered("tbody").ChildrenFiltered("tr")
	rows = rows.AddSelection(table.ChildrenFiltered("tr"))
	rows.Each(func(_ int, row *goquery.Selection) {
		th := row.ChildrenFiltered("th").First()
		td := row.ChildrenFiltered("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}

		key := collapseSpace(th.Text())
		if key == "" {
			return
		}
		value := td.Clone()
		value.Find("sup.reference").Remove()
		data[key] = collapseSpace(value.Text())
	})

	return data
}

func extractCategories(doc *goquery.Document) []string {
	var cats []string
	doc.Find("#mw-normal-catlinks ul li a").Each(func(_ int, a *goquery.Selection) {
		if name := collapseSpace(a.Text()); name != "" {
			cats = append(cats, name)
		}
	})
	return cats
}

// extractLead collects the paragraphs of the article body that come before
// the first section heading.
func extractLead(doc *goquery.Document) string {
	body := doc.Find(".mw-parser-output").First()
	if body.Length() == 0 {
		return ""
	}

	var paras []string
	body.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "h2" || s.HasClass("mw-heading") {
			return false
		}
		if goquery.NodeName(s) != "p" {
			return true
		}
		p := s.Clone()
		p.Find("sup.reference").Remove()
		if text := collapseSpace(p.Text()); text != "" {
			paras = append(paras, text)
		}
		return true
	})

	return strings.Join(paras, "\n\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
