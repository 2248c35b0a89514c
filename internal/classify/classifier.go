package classify

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
	"github.com/PentesterFlow/WikiCrawler/internal/parser"
)

// Unclassified is the label of pages with no inferred topic.
const Unclassified = "unclassified"

var errEmptyContent = errors.New("empty content")

// Category is the classification stored with a page record.
type Category struct {
	Label      string   `json:"label"`
	Topics     []string `json:"topics"`
	Categories []string `json:"categories,omitempty"`
}

// UnclassifiedCategory is the degraded result used when classification fails.
func UnclassifiedCategory() Category {
	return Category{Label: Unclassified, Topics: []string{}}
}

// DefaultTopicMap maps Wikipedia category names onto canonical topics.
var DefaultTopicMap = map[string]string{
	"Video game characters": "Gaming",
	"Fictional characters":  "Fiction",
	"American singers":      "Music",
	"Pop musicians":         "Music",
	"Historical figures":    "History",
	"Scientists":            "Science",
	"Flora":                 "Biology/Nature",
	"Fauna":                 "Biology/Nature",
	"Computer science":      "Technology",
	"Programming languages": "Technology",
	"Countries":             "Geography",
	"Cities":                "Geography",
	"Diseases":              "Health/Medicine",
	"Anatomy":               "Health/Medicine",
	"Films":                 "Film",
	"Albums":                "Music",
	"Battles":               "History",
	"Wars":                  "History",
	"Philosophers":          "Philosophy",
	"Religions":             "Religion",
	"Sportspeople":          "Sports",
	"Companies":             "Business",
	"Organisations":         "Organizations",
	"Education":             "Education",
	"Mathematics":           "Mathematics",
	"Literature":            "Literature",
	"Art":                   "Art",
}

// infoboxRule adds topic when all of allOf and any of anyOf are present.
type infoboxRule struct {
	anyOf []string
	allOf []string
	topic string
}

var infoboxRules = []infoboxRule{
	{anyOf: []string{"occupation"}, topic: "Person"},
	{anyOf: []string{"genre"}, topic: "Art & Culture"},
	{anyOf: []string{"developer", "publisher"}, topic: "Technology"},
	{anyOf: []string{"country", "capital"}, topic: "Geography"},
	{allOf: []string{"director", "starring"}, topic: "Film"},
	{allOf: []string{"artist", "album"}, topic: "Music"},
	{anyOf: []string{"scientific_name"}, topic: "Biology"},
	{anyOf: []string{"president", "party"}, topic: "Politics"},
	{allOf: []string{"author", "genre"}, topic: "Literature"},
	{allOf: []string{"sport", "league"}, topic: "Sports"},
	{allOf: []string{"type", "manufacturer"}, topic: "Product/Technology"},
	{anyOf: []string{"diseases", "medical_condition"}, topic: "Health/Medicine"},
	{anyOf: []string{"discovery", "element"}, topic: "Science"},
}

func (r infoboxRule) matches(keys map[string]struct{}) bool {
	for _, k := range r.allOf {
		if _, ok := keys[k]; !ok {
			return false
		}
	}
	if len(r.anyOf) == 0 {
		return true
	}
	for _, k := range r.anyOf {
		if _, ok := keys[k]; ok {
			return true
		}
	}
	return false
}

// Classifier infers topics for article HTML.
type Classifier struct {
	articles      *parser.ArticleParser
	resolver      *Resolver
	topicMap      map[string]string
	ancestorDepth int
}

// New creates a classifier. A nil resolver disables ancestor expansion.
func New(articles *parser.ArticleParser, resolver *Resolver) *Classifier {
	if articles == nil {
		articles = parser.NewArticleParser(nil)
	}
	return &Classifier{
		articles:      articles,
		resolver:      resolver,
		topicMap:      DefaultTopicMap,
		ancestorDepth: DefaultAncestorDepth,
	}
}

// Classify parses content and returns its category. On failure the
// unclassified category is returned together with the error.
func (c *Classifier) Classify(content []byte, title string) (Category, error) {
	if len(content) == 0 {
		return UnclassifiedCategory(), crawlerrors.NewClassificationError(title, errEmptyContent)
	}

	article, err := c.articles.Parse(content, "")
	if err != nil {
		return UnclassifiedCategory(), crawlerrors.NewClassificationError(title, err)
	}

	topics := c.CanonicalTopics(article.Categories, article.Infobox, title)
	category := Category{
		Label:      Unclassified,
		Topics:     topics,
		Categories: article.Categories,
	}
	if len(topics) > 0 {
		category.Label = topics[0]
	}
	return category, nil
}

// CanonicalTopics combines infobox heuristics, resolved categories and the
// topic map into a sorted topic list.
func (c *Classifier) CanonicalTopics(rawCategories []string, infobox map[string]string, title string) []string {
	topics := make(map[string]struct{})
	add := func(t string) { topics[t] = struct{}{} }
	has := func(t string) bool { _, ok := topics[t]; return ok }

	keys := normalizeInfobox(infobox)
	for _, rule := range infoboxRules {
		if rule.matches(keys) {
			add(rule.topic)
		}
	}

	if c.resolver != nil {
		for _, cat := range c.resolver.Resolve(rawCategories, c.ancestorDepth) {
			add(cat)
		}
	} else {
		for _, cat := range rawCategories {
			if cleaned := cleanCategory(cat); cleaned != "" {
				add(cleaned)
			}
		}
	}

	for _, cat := range rawCategories {
		if topic, ok := c.topicMap[cleanCategory(cat)]; ok {
			add(topic)
		}
	}

	// Prefer specific topics over their generic parent.
	if has("Gaming") || has("Software") || has("Engineering") {
		delete(topics, "Technology")
	}
	if (has("Film") || has("Music") || has("Literature")) && has("Art & Culture") {
		delete(topics, "Art & Culture")
	}
	if has("Biology") || has("Physics") || has("Chemistry") {
		delete(topics, "Science")
	}

	for _, word := range strings.Fields(cases.Fold().String(title)) {
		switch word {
		case "history":
			add("History")
		case "science":
			add("Science")
		}
	}

	if _, ok := keys["occupation"]; ok {
		add("People")
	}

	out := make([]string, 0, len(topics))
	for t := range topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// normalizeInfobox turns display labels like "Scientific name" or
// "Developer(s)" into lookup keys like "scientific_name" and "developer".
func normalizeInfobox(infobox map[string]string) map[string]struct{} {
	keys := make(map[string]struct{}, len(infobox))
	for label := range infobox {
		k := cases.Fold().String(strings.TrimSpace(label))
		k = strings.ReplaceAll(k, "(s)", "")
		k = strings.Join(strings.Fields(k), "_")
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}
