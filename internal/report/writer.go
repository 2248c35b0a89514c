package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// Format selects a report renderer.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts json, markdown or md.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json or markdown)", s)
	}
}

// Writer renders a report.
type Writer interface {
	Write(r *Report) error
}

// NewWriter returns the writer for format. Unknown formats get JSON.
func NewWriter(w io.Writer, format Format) Writer {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(w)
	default:
		return NewJSONWriter(w)
	}
}

// JSONWriter writes an indented JSON document.
type JSONWriter struct {
	out io.Writer
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{out: w}
}

// Write encodes r followed by a newline.
func (j *JSONWriter) Write(r *Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// MarkdownWriter writes a human-readable report with a topic pie chart.
type MarkdownWriter struct {
	out io.Writer
}

// NewMarkdownWriter creates a Markdown writer.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{out: w}
}

// maxChartSlices keeps the pie chart readable; the rest is folded into "Other".
const maxChartSlices = 8

// Write renders r.
func (m *MarkdownWriter) Write(r *Report) error {
	md := markdown.NewMarkdown(m.out)

	m.writeHeader(md, r)
	m.writeTopics(md, r)
	m.writeDepths(md, r)
	m.writeErrors(md, r)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by WikiCrawler on %s*", r.FinishedAt.Format("2006-01-02 15:04:05 MST"))

	return md.Build()
}

func (m *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Report) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{}
	if r.Seed != "" {
		rows = append(rows, []string{"Seed", "`" + r.Seed + "`"})
	}
	if r.Duration > 0 {
		rows = append(rows, []string{"Duration", r.Duration.Round(time.Second).String()})
	}
	rows = append(rows,
		[]string{"Pages Crawled", strconv.FormatInt(r.PagesCrawled, 10)},
		[]string{"Pages Failed", strconv.FormatInt(r.PagesFailed, 10)},
		[]string{"Links Queued", strconv.FormatInt(r.LinksQueued, 10)},
	)
	if r.RequestsTotal > 0 {
		rows = append(rows, []string{"Requests", fmt.Sprintf("%d (%d retries)", r.RequestsTotal, r.RetriesTotal)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if r.Interrupted {
		md.Warningf("Crawl was interrupted; %d page(s) were stored before shutdown.", r.PagesCrawled)
		md.PlainText("")
	}
}

func (m *MarkdownWriter) writeTopics(md *markdown.Markdown, r *Report) {
	md.H2("Topics")
	md.PlainText("")

	if len(r.Topics) == 0 {
		md.PlainText("No pages were classified.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(r.Topics))
	for i, t := range r.Topics {
		rows[i] = []string{t.Label, strconv.FormatInt(t.Count, 10)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Topic", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Topic Distribution"),
		piechart.WithShowData(true),
	)
	var other int64
	for i, t := range r.Topics {
		if i >= maxChartSlices {
			other += t.Count
			continue
		}
		chart.LabelAndIntValue(t.Label, uint64(t.Count))
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", uint64(other))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (m *MarkdownWriter) writeDepths(md *markdown.Markdown, r *Report) {
	if len(r.Depths) == 0 {
		return
	}
	md.H2("Depth")
	md.PlainText("")

	rows := make([][]string, len(r.Depths))
	for i, d := range r.Depths {
		rows[i] = []string{strconv.Itoa(d.Depth), strconv.FormatInt(d.Count, 10)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (m *MarkdownWriter) writeErrors(md *markdown.Markdown, r *Report) {
	if len(r.ErrorCounts) == 0 {
		if r.PagesFailed == 0 && r.PagesCrawled > 0 {
			md.Tip("Every queued page was fetched and stored.")
			md.PlainText("")
		}
		return
	}

	md.H2("Fetch Errors")
	md.PlainText("")

	items := make([]string, 0, len(r.ErrorCounts))
	for _, class := range sortedKeys(r.ErrorCounts) {
		items = append(items, fmt.Sprintf("%s: %d", class, r.ErrorCounts[class]))
	}
	md.BulletList(items...)
	md.PlainText("")
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
