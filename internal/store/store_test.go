package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"

	"github.com/PentesterFlow/WikiCrawler/internal/classify"
	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
)

func sampleRecord(title string) *PageRecord {
	return &PageRecord{
		URL:       "http://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_"),
		Title:     title,
		Links:     []string{"http://en.wikipedia.org/wiki/Luigi"},
		CrawledAt: 1700000000.25,
		Category: classify.Category{
			Label:  "Gaming",
			Topics: []string{"Gaming", "Video game characters"},
		},
		Depth:       1,
		ContentHash: ContentHash([]byte(title)),
	}
}

// testStoreContract exercises the behaviour every backend shares.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, "Mario"); !errors.Is(err, crawlerrors.ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	mario := sampleRecord("Mario")
	if err := s.Save(ctx, "Mario", mario); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, "Mario")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, mario) {
		t.Errorf("Load() = %+v, want %+v", got, mario)
	}

	// Overwrite.
	mario.Depth = 2
	if err := s.Save(ctx, "Mario", mario); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ = s.Load(ctx, "Mario")
	if got.Depth != 2 {
		t.Errorf("Depth after overwrite = %d, want 2", got.Depth)
	}

	if err := s.Save(ctx, "Luigi", sampleRecord("Luigi")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	titles := make([]string, 0, len(all))
	for _, r := range all {
		titles = append(titles, r.Title)
	}
	sort.Strings(titles)
	if !reflect.DeepEqual(titles, []string{"Luigi", "Mario"}) {
		t.Errorf("List() titles = %v", titles)
	}
}

// =============================================================================
// Helpers Tests
// =============================================================================

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Mario", "Mario"},
		{"AC/DC", "AC_DC"},
		{`a\b:c*d?e"f<g>h|i`, "a_b_c_d_e_f_g_h_i"},
		{"", "untitled_page"},
		{"Pokémon", "Pokémon"},
		{strings.Repeat("é", 250), strings.Repeat("é", 200)},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.title); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash(nil) != "" {
		t.Error("empty content should have no hash")
	}
	h := ContentHash([]byte("mario"))
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h != ContentHash([]byte("mario")) || h == ContentHash([]byte("luigi")) {
		t.Error("hash should be deterministic and content-dependent")
	}
}

func TestNewPageRecord(t *testing.T) {
	before := time.Now()
	r := NewPageRecord("u", "T", 2, nil, classify.UnclassifiedCategory(), []byte("x"))

	if r.Links == nil {
		t.Error("Links should be an empty slice, not nil")
	}
	if r.CrawledTime().Before(before.Add(-time.Second)) {
		t.Errorf("CrawledTime() = %v, want about now", r.CrawledTime())
	}
	if r.Depth != 2 || r.ContentHash == "" {
		t.Errorf("record = %+v", r)
	}
}

// =============================================================================
// FileStore Tests
// =============================================================================

func TestFileStore_Contract(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStoreContract(t, s)
}

func TestFileStore_Format(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	record := sampleRecord("Pokémon <Red>")
	if err := s.Save(context.Background(), "Pokémon <Red>", record); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "Pokémon _Red_.json")
	if s.Path("Pokémon <Red>") != path {
		t.Errorf("Path() = %s, want %s", s.Path("Pokémon <Red>"), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
	content := string(data)
	if !strings.Contains(content, "\n    \"url\": ") {
		t.Errorf("expected 4-space indentation, got:\n%s", content)
	}
	if !strings.Contains(content, "Pokémon <Red>") {
		t.Errorf("expected unescaped non-ASCII and angle brackets, got:\n%s", content)
	}
}

func TestFileStore_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	ctx := context.Background()

	if err := s.Save(ctx, "Mario", sampleRecord("Mario")); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{"pages_crawled": 1}`), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644)

	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].Title != "Mario" {
		t.Errorf("List() = %v, want only Mario", records)
	}
}

func TestFileStore_CanceledContext(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Save(ctx, "Mario", sampleRecord("Mario")); err == nil {
		t.Error("Save() should fail on a canceled context")
	}
}

// =============================================================================
// BoltStore and SQLiteStore Tests
// =============================================================================

func TestBoltStore_Contract(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "nested", "pages.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)
}

func TestSQLiteStore_Contract(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "pages.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)

	counts, err := s.CountByLabel(context.Background())
	if err != nil {
		t.Fatalf("CountByLabel() error = %v", err)
	}
	if counts["Gaming"] != 2 {
		t.Errorf("CountByLabel() = %v, want Gaming=2", counts)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.sqlite")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "Mario", sampleRecord("Mario")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Load(ctx, "Mario"); err != nil {
		t.Errorf("Load() after reopen error = %v", err)
	}
}

// =============================================================================
// MemoryStore Tests
// =============================================================================

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_CopiesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := sampleRecord("Mario")
	s.Save(ctx, "Mario", r)
	r.Links[0] = "mutated"

	got, _ := s.Load(ctx, "Mario")
	if got.Links[0] == "mutated" {
		t.Error("store should not alias caller slices")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

// =============================================================================
// RedisStore Tests
// =============================================================================

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisStore_Contract(t *testing.T) {
	testStoreContract(t, newRedisStore(newFakeRedis(), "wiki:", 0))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	fake := newFakeRedis()
	s := newRedisStore(fake, "wiki:", time.Hour)

	if err := s.Save(context.Background(), "Mario", sampleRecord("Mario")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.data["wiki:Mario"]; !ok {
		t.Errorf("keys = %v, want wiki:Mario", fake.data)
	}
	if fake.ttls["wiki:Mario"] != time.Hour {
		t.Errorf("ttl = %v, want 1h", fake.ttls["wiki:Mario"])
	}

	fake.data["other:Luigi"] = "{}"
	records, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("List() returned %d records, want keys outside the prefix ignored", len(records))
	}
}

// =============================================================================
// S3Store Tests
// =============================================================================

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var contents []types.Object
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			contents = append(contents, types.Object{Key: aws.String(k)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func TestS3Store_Contract(t *testing.T) {
	testStoreContract(t, newS3Store(&fakeS3{objects: map[string][]byte{}}, "wiki", ""))
}

func TestS3Store_KeyLayout(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newS3Store(fake, "wiki", "/crawl/")

	if err := s.Save(context.Background(), "AC/DC", sampleRecord("AC/DC")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["crawl/AC_DC.json"]; !ok {
		t.Errorf("objects = %v, want crawl/AC_DC.json", fake.objects)
	}
}

// =============================================================================
// Open Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file default", DefaultConfig("/tmp/x"), false},
		{"file without dir", Config{Backend: BackendFile}, true},
		{"redis without addr", Config{Backend: BackendRedis}, true},
		{"redis", Config{Backend: BackendRedis, RedisAddr: "localhost:6379"}, false},
		{"s3 without bucket", Config{Backend: BackendS3}, true},
		{"memory", Config{Backend: BackendMemory}, false},
		{"unknown", Config{Backend: "cassandra"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, crawlerrors.ErrInvalidConfig) {
				t.Errorf("Validate() error should wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestOpen_LocalBackends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, backend := range []string{BackendFile, BackendBolt, BackendSQLite, BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig(filepath.Join(dir, backend))
			cfg.Backend = backend
			s, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()
			if err := s.Save(ctx, "Mario", sampleRecord("Mario")); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		})
	}
}
