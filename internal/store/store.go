// Package store persists crawled page records.
//
// Every backend keys records by page title. The file and S3 backends map
// titles onto object names with SanitizeFilename; the database backends use
// the title as-is.
package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/PentesterFlow/WikiCrawler/internal/classify"
	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
)

// PageRecord is the persisted form of one crawled page.
type PageRecord struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Links       []string          `json:"links"`
	CrawledAt   float64           `json:"crawled_at"` // Unix seconds
	Category    classify.Category `json:"category"`
	Depth       int               `json:"depth"`
	ContentHash string            `json:"content_hash,omitempty"`
}

// NewPageRecord builds a record stamped with the current time.
func NewPageRecord(url, title string, depth int, links []string, category classify.Category, content []byte) *PageRecord {
	if links == nil {
		links = []string{}
	}
	return &PageRecord{
		URL:         url,
		Title:       title,
		Links:       links,
		CrawledAt:   float64(time.Now().UnixNano()) / float64(time.Second),
		Category:    category,
		Depth:       depth,
		ContentHash: ContentHash(content),
	}
}

// CrawledTime returns CrawledAt as a time.Time.
func (r *PageRecord) CrawledTime() time.Time {
	sec := int64(r.CrawledAt)
	nsec := int64((r.CrawledAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// ContentHash returns the hex SHA3-256 digest of content, or "" for none.
func ContentHash(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Store saves and loads page records.
type Store interface {
	// Save writes record under title, replacing any previous record.
	Save(ctx context.Context, title string, record *PageRecord) error
	// Load returns crawlerrors.ErrNotFound when title has no record.
	Load(ctx context.Context, title string) (*PageRecord, error)
	// List returns every stored record.
	List(ctx context.Context) ([]*PageRecord, error)
	Close() error
}

const (
	maxFilenameLength = 200
	untitledFilename  = "untitled_page"
)

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFilename replaces path-unsafe characters with '_' and caps the
// result at 200 characters.
func SanitizeFilename(title string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(title, "_")
	if sanitized == "" {
		sanitized = untitledFilename
	}
	if r := []rune(sanitized); len(r) > maxFilenameLength {
		sanitized = string(r[:maxFilenameLength])
	}
	return sanitized
}

// encodeRecord renders a record with 4-space indentation and without HTML
// escaping, the on-disk format shared by the file and S3 backends.
func encodeRecord(record *PageRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, key string) (*PageRecord, error) {
	var record PageRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, crawlerrors.NewParseError(key, "decode_record", err)
	}
	return &record, nil
}

func notFound(title string) error {
	return fmt.Errorf("page %q: %w", title, crawlerrors.ErrNotFound)
}
