package sink

import (
	"strings"
	"testing"

	"github.com/PentesterFlow/WikiCrawler/internal/classify"
	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

func TestBuildPageQuery(t *testing.T) {
	record := &store.PageRecord{
		URL:      "http://en.wikipedia.org/wiki/Mario",
		Title:    "Mario",
		Links:    []string{"http://en.wikipedia.org/wiki/Luigi", "http://en.wikipedia.org/wiki/Peach"},
		Depth:    1,
		Category: classify.Category{Label: "Gaming"},
	}

	query, params := buildPageQuery(record)

	for _, fragment := range []string{"MERGE (p:Page {url: $url})", "UNWIND $links AS link", "MERGE (p)-[:LINKS_TO]->(t)"} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query missing %q: %s", fragment, query)
		}
	}
	if params["url"] != record.URL || params["title"] != "Mario" || params["label"] != "Gaming" {
		t.Errorf("unexpected params: %v", params)
	}
	if params["depth"] != int64(1) {
		t.Errorf("depth param = %#v, want int64(1)", params["depth"])
	}
	if links, ok := params["links"].([]any); !ok || len(links) != 2 {
		t.Errorf("links param = %#v", params["links"])
	}
}
