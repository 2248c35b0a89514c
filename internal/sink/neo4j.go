package sink

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

// SessionRunner abstracts neo4j.SessionWithContext.
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner abstracts neo4j.DriverWithContext.
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return d.driver.NewSession(ctx, config)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Neo4jSink merges each page and its outgoing links into a graph of
// (:Page)-[:LINKS_TO]->(:Page).
type Neo4jSink struct {
	driver   DriverSessioner
	database string
}

// NewNeo4jSink connects with basic auth.
func NewNeo4jSink(uri, user, password, database string) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver error: %w", err)
	}
	return NewNeo4jSinkWithDriver(&neo4jDriver{driver: driver}, database), nil
}

// NewNeo4jSinkWithDriver builds a sink using a custom driver (tests).
func NewNeo4jSinkWithDriver(driver DriverSessioner, database string) *Neo4jSink {
	return &Neo4jSink{driver: driver, database: database}
}

func (s *Neo4jSink) Name() string { return "neo4j" }

func (s *Neo4jSink) Publish(ctx context.Context, record *store.PageRecord) error {
	query, params := buildPageQuery(record)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

func (s *Neo4jSink) Close() error {
	return s.driver.Close(context.Background())
}

func buildPageQuery(record *store.PageRecord) (string, map[string]any) {
	query := "MERGE (p:Page {url: $url}) " +
		"SET p.title = $title, p.label = $label, p.depth = $depth, p.crawled_at = $crawled_at " +
		"WITH p " +
		"UNWIND $links AS link " +
		"MERGE (t:Page {url: link}) " +
		"MERGE (p)-[:LINKS_TO]->(t)"

	links := make([]any, 0, len(record.Links))
	for _, l := range record.Links {
		links = append(links, l)
	}

	params := map[string]any{
		"url":        record.URL,
		"title":      record.Title,
		"label":      record.Category.Label,
		"depth":      int64(record.Depth),
		"crawled_at": record.CrawledAt,
		"links":      links,
	}
	return query, params
}
