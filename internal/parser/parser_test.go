package parser

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/PentesterFlow/WikiCrawler/internal/scope"
)

const marioPage = `<!DOCTYPE html>
<html><head><title>Mario - Wikipedia</title></head>
<body>
<h1 id="firstHeading" class="firstHeading">Mario</h1>
<div id="mw-content-text"><div class="mw-parser-output">
<table class="infobox">
<tbody>
<tr><th colspan="2">Mario</th></tr>
<tr><th>Developer</th><td>Nintendo<sup class="reference">[1]</sup></td></tr>
<tr><th>Occupation</th><td>Plumber,
   adventurer</td></tr>
<tr><td>orphan value</td></tr>
</tbody>
</table>
<p>Mario is a character<sup class="reference">[2]</sup> created by Nintendo.</p>
<p></p>
<p>He first appeared in <a href="/wiki/Donkey_Kong_(1981_video_game)">Donkey Kong</a>.</p>
<div class="mw-heading mw-heading2"><h2 id="History">History</h2></div>
<p>Later text not in the lead.</p>
<a href="/wiki/Luigi">Luigi</a>
<a href="/wiki/Luigi">Luigi again</a>
<a href="/wiki/Special:Random">Random</a>
<a href="/wiki/Mario#Early_life">Early life</a>
<a href="/wiki/Help:Contents">Help</a>
<a href="https://www.nintendo.com/">Nintendo</a>
<a href="/wiki/Princess_Peach">Peach</a>
<a name="anchor-without-href">x</a>
</div></div>
<div id="catlinks"><div id="mw-normal-catlinks">
<a href="/wiki/Help:Category">Categories</a>:
<ul><li><a href="/wiki/Category:Mario_characters">Mario characters</a></li>
<li><a href="/wiki/Category:Video_game_characters">Video game characters</a></li></ul>
</div></div>
</body></html>`

// =============================================================================
// LinkExtractor Tests
// =============================================================================

func TestLinkExtractor_ExtractLinks(t *testing.T) {
	e := NewLinkExtractor("", nil)
	got := e.ExtractLinks([]byte(marioPage))

	want := []string{
		"http://en.wikipedia.org/wiki/Donkey_Kong_(1981_video_game)",
		"http://en.wikipedia.org/wiki/Luigi",
		"http://en.wikipedia.org/wiki/Help:Contents",
		"http://en.wikipedia.org/wiki/Princess_Peach",
		"http://en.wikipedia.org/wiki/Help:Category",
	}
	sortedGot := append([]string(nil), got...)
	sortedWant := append([]string(nil), want...)
	sort.Strings(sortedGot)
	sort.Strings(sortedWant)
	if !reflect.DeepEqual(sortedGot, sortedWant) {
		t.Errorf("ExtractLinks() = %v, want %v", got, want)
	}
	if got[0] != want[0] {
		t.Errorf("links should keep document order, first = %s", got[0])
	}
}

func TestLinkExtractor_Empty(t *testing.T) {
	e := NewLinkExtractor("", nil)
	if links := e.ExtractLinks(nil); links != nil {
		t.Errorf("ExtractLinks(nil) = %v, want nil", links)
	}
	if links := e.ExtractLinks([]byte("<html><body>no anchors</body></html>")); len(links) != 0 {
		t.Errorf("ExtractLinks() = %v, want none", links)
	}
}

func TestLinkExtractor_CustomBaseAndPolicy(t *testing.T) {
	policy, err := scope.NewPolicy(scope.NewRuleBuilder().Strict().Build())
	if err != nil {
		t.Fatal(err)
	}
	e := NewLinkExtractor("http://127.0.0.1:8080/", policy)

	got := e.ExtractLinks([]byte(`<a href="/wiki/Dog">d</a><a href="/wiki/Help:Contents">h</a>`))
	want := []string{"http://127.0.0.1:8080/wiki/Dog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractLinks() = %v, want %v", got, want)
	}
	if e.BaseURL() != "http://127.0.0.1:8080" {
		t.Errorf("BaseURL() = %q", e.BaseURL())
	}
}

func TestLinkExtractor_UnescapesEntities(t *testing.T) {
	e := NewLinkExtractor("", nil)
	got := e.ExtractLinks([]byte(`<a href="/wiki/AT&amp;T">AT&amp;T</a>`))
	if len(got) != 1 || got[0] != "http://en.wikipedia.org/wiki/AT&T" {
		t.Errorf("ExtractLinks() = %v", got)
	}
}

// =============================================================================
// Title Tests
// =============================================================================

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://en.wikipedia.org/wiki/Mario", "Mario"},
		{"http://en.wikipedia.org/wiki/Super_Mario_Bros.", "Super Mario Bros."},
		{"http://en.wikipedia.org/wiki/Everybody%27s_Golf", "Everybody%27s Golf"},
		{"http://en.wikipedia.org/wiki/", UnknownTitle},
		{"", UnknownTitle},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := TitleFromURL(tt.url); got != tt.want {
				t.Errorf("TitleFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestTitleToPath(t *testing.T) {
	if got := TitleToPath(" Super Mario Bros. "); got != "Super_Mario_Bros." {
		t.Errorf("TitleToPath() = %q", got)
	}
}

// =============================================================================
// ArticleParser Tests
// =============================================================================

func TestArticleParser_Parse(t *testing.T) {
	p := NewArticleParser(nil)
	a, err := p.Parse([]byte(marioPage), "http://en.wikipedia.org/wiki/Mario")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if a.Title != "Mario" {
		t.Errorf("Title = %q, want Mario", a.Title)
	}
	if a.URL != "http://en.wikipedia.org/wiki/Mario" {
		t.Errorf("URL = %q", a.URL)
	}

	wantInfobox := map[string]string{
		"Developer":  "Nintendo",
		"Occupation": "Plumber, adventurer",
	}
	if !reflect.DeepEqual(a.Infobox, wantInfobox) {
		t.Errorf("Infobox = %v, want %v", a.Infobox, wantInfobox)
	}

	wantCats := []string{"Mario characters", "Video game characters"}
	if !reflect.DeepEqual(a.Categories, wantCats) {
		t.Errorf("Categories = %v, want %v", a.Categories, wantCats)
	}

	if !strings.HasPrefix(a.LeadText, "Mario is a character created by Nintendo.") {
		t.Errorf("LeadText = %q", a.LeadText)
	}
	if strings.Contains(a.LeadText, "Later text") {
		t.Error("LeadText should stop at the first heading")
	}
	if strings.Contains(a.LeadText, "[2]") {
		t.Error("LeadText should drop reference markers")
	}

	if len(a.InternalLinks) != 5 {
		t.Errorf("InternalLinks = %v, want 5 entries", a.InternalLinks)
	}
}

func TestArticleParser_TitleFallback(t *testing.T) {
	p := NewArticleParser(nil)
	a, err := p.Parse([]byte(`<html><body><p>bare</p></body></html>`), "http://en.wikipedia.org/wiki/Bowser_Jr.")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if a.Title != "Bowser Jr." {
		t.Errorf("Title = %q, want Bowser Jr.", a.Title)
	}
	if len(a.Infobox) != 0 || len(a.Categories) != 0 || a.LeadText != "" {
		t.Errorf("expected empty article fields, got %+v", a)
	}
}
