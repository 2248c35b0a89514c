// Package sink publishes stored page records to downstream systems.
// Sinks run after the primary store; a sink failure is treated like a
// persistence failure for the page.
package sink

//go:generate mockgen -destination=../mocks/mock_sink.go -package=mocks github.com/PentesterFlow/WikiCrawler/internal/sink MessageWriter,SessionRunner,DriverSessioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/PentesterFlow/WikiCrawler/internal/store"
)

// Sink receives each page record after it has been stored.
type Sink interface {
	Name() string
	Publish(ctx context.Context, record *store.PageRecord) error
	Close() error
}

// Config enables the optional sinks. Empty fields leave a sink disabled.
type Config struct {
	KafkaBrokers  []string `yaml:"kafka_brokers,omitempty" json:"kafka_brokers,omitempty"`
	KafkaTopic    string   `yaml:"kafka_topic,omitempty" json:"kafka_topic,omitempty"`
	Neo4jURI      string   `yaml:"neo4j_uri,omitempty" json:"neo4j_uri,omitempty"`
	Neo4jUser     string   `yaml:"neo4j_user,omitempty" json:"neo4j_user,omitempty"`
	Neo4jPassword string   `yaml:"neo4j_password,omitempty" json:"neo4j_password,omitempty"`
	Neo4jDatabase string   `yaml:"neo4j_database,omitempty" json:"neo4j_database,omitempty"`
}

// DefaultKafkaTopic is used when brokers are set without a topic.
const DefaultKafkaTopic = "wikicrawler.pages"

// Open builds every sink enabled in cfg.
func Open(cfg Config) ([]Sink, error) {
	var sinks []Sink

	if len(cfg.KafkaBrokers) > 0 {
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = DefaultKafkaTopic
		}
		sinks = append(sinks, NewKafkaSink(cfg.KafkaBrokers, topic))
	}

	if cfg.Neo4jURI != "" {
		s, err := NewNeo4jSink(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

// PublishAll sends record to every sink and joins their errors.
func PublishAll(ctx context.Context, sinks []Sink, record *store.PageRecord) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every sink and joins their errors.
func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
