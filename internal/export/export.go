// Package export writes JSON snapshots of the family graph to blob storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"famgraph/internal/blob"
	"famgraph/internal/core"
	"famgraph/pkg/domain"
)

// DefaultPrefix is the key prefix for graph exports.
const DefaultPrefix = "exports/"

// ContentType of every export document.
const ContentType = "application/json"

// GraphSource supplies a consistent graph read.
type GraphSource interface {
	Graph(ctx context.Context) (core.Graph, error)
}

// Document is the stored export format.
type Document struct {
	ExportedAt        time.Time                   `json:"exported_at"`
	MemberCount       int                         `json:"member_count"`
	RelationshipCount int                         `json:"relationship_count"`
	Members           []domain.Member             `json:"members"`
	Relationships     []domain.RelationshipRecord `json:"relationships"`
}

// Exporter serialises graph snapshots into a blob store.
type Exporter struct {
	source GraphSource
	store  blob.Store
	prefix string
	now    func() time.Time
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithPrefix changes the key prefix.
func WithPrefix(prefix string) Option {
	return func(e *Exporter) {
		if prefix != "" {
			e.prefix = strings.TrimSuffix(prefix, "/") + "/"
		}
	}
}

// WithNow overrides the export timestamp source.
func WithNow(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an exporter.
func New(source GraphSource, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prefix returns the key prefix exports are written under.
func (e *Exporter) Prefix() string { return e.prefix }

// Export reads the graph and stores it under a new key.
func (e *Exporter) Export(ctx context.Context) (blob.Info, error) {
	g, err := e.source.Graph(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	doc := Document{
		ExportedAt:        e.now(),
		MemberCount:       len(g.Members),
		RelationshipCount: len(g.Relationships),
		Members:           g.Members,
		Relationships:     g.Relationships,
	}
	if doc.Members == nil {
		doc.Members = []domain.Member{}
	}
	if doc.Relationships == nil {
		doc.Relationships = []domain.RelationshipRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return blob.Info{}, fmt.Errorf("encode graph export: %w", err)
	}
	key := fmt.Sprintf("%sgraph-%s-%s.json", e.prefix, doc.ExportedAt.Format("20060102T150405Z"), uuid.NewString()[:8])
	info, err := e.store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"member-count":       strconv.Itoa(doc.MemberCount),
			"relationship-count": strconv.Itoa(doc.RelationshipCount),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store graph export: %w", err)
	}
	return info, nil
}

// List returns the stored exports, oldest key first.
func (e *Exporter) List(ctx context.Context) ([]blob.Info, error) {
	return e.store.List(ctx, e.prefix)
}

// Load reads and decodes a stored export.
func (e *Exporter) Load(ctx context.Context, key string) (Document, error) {
	if !strings.HasPrefix(key, e.prefix) {
		return Document{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	_, rc, err := e.store.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode graph export %s: %w", key, err)
	}
	return doc, nil
}
