// Package index ties the schema, analysis, document-preparer, segment
// store, term dictionary and query engine packages into the single-writer,
// multi-reader per-index object spec.md §2 and §5 describe, plus the
// Registry that owns a directory of such indices. Grounded on the
// teacher's cmd/index and cmd/query mains, which wired these same
// collaborators by hand per invocation; here they are wired once, at
// Open/Create time, behind one long-lived type.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scampagna/ftsearch/analysis"
	"github.com/scampagna/ftsearch/document"
	"github.com/scampagna/ftsearch/kvstore"
	"github.com/scampagna/ftsearch/metrics"
	"github.com/scampagna/ftsearch/query"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/storage"
	"github.com/scampagna/ftsearch/termdict"
)

// FieldSpec declares one schema field plus its mapping at index-create
// time (spec.md §3 "Field", "Mapping").
type FieldSpec struct {
	Name          string
	Type          schema.FieldType
	Indexed       bool
	Stored        bool
	IndexAnalyzer string // defaults to "standard" if empty and Indexed
	QueryAnalyzer string // defaults to IndexAnalyzer if empty
	PositionGap   uint32 // defaults to document.DefaultPositionGap if zero
}

// DocResult is one document's outcome within a BulkIndex call (spec.md §7:
// "the batch response lists per-document outcomes", supplementing §9's
// rusticsearch-grounded per-line bulk result).
type DocResult struct {
	Key string
	Err error
}

// Index is one named, open full-text index: its schema, analyzers, term
// dictionary, segment store and document-key index, plus a query engine
// compiled against all of them. Safe for concurrent Put/BulkIndex/Query
// calls; writes are serialized internally (spec.md §5).
type Index struct {
	Name string

	schema    *schema.Schema
	mapping   *schema.Mapping
	analyzers *analysis.Registry
	preparer  *document.Preparer

	kv       kvstore.Store
	dict     *termdict.Dictionary
	segStore *storage.SegmentStore
	docKeys  *termdict.DocKeyIndex
	engine   *query.Engine
	parser   *query.Parser

	metrics *metrics.Metrics
	logger  *slog.Logger

	writeMu sync.Mutex
}

// open builds an Index over an already-opened kv store and field list.
// Shared by Registry.Create (fresh store) and Registry.Open (reopened
// store, per spec.md §8's crash-recovery scenario).
func open(ctx context.Context, name string, kv kvstore.Store, fields []FieldSpec, m *metrics.Metrics, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := schema.New()
	mapping := schema.NewMapping()
	analyzers := analysis.NewRegistry()

	for _, f := range fields {
		var flags schema.Flags
		if f.Indexed {
			flags |= schema.Indexed
		}
		if f.Stored {
			flags |= schema.Stored
		}
		ref, err := s.AddField(f.Name, f.Type, flags)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}

		indexAnalyzer := f.IndexAnalyzer
		if indexAnalyzer == "" && f.Indexed {
			indexAnalyzer = "standard"
		}
		queryAnalyzer := f.QueryAnalyzer
		if indexAnalyzer != "" {
			if _, err := analyzers.Get(indexAnalyzer); err != nil {
				return nil, fmt.Errorf("%w: field %q: %v", ErrSchema, f.Name, err)
			}
		}
		mapping.Bind(f.Name, schema.FieldMapping{
			Field:         ref,
			IndexAnalyzer: indexAnalyzer,
			QueryAnalyzer: queryAnalyzer,
			PositionGap:   f.PositionGap,
		})
	}

	dict, err := termdict.Load(ctx, kv)
	if err != nil {
		return nil, fmt.Errorf("%w: load term dictionary: %v", ErrStorage, err)
	}
	segStore := storage.NewSegmentStore(kv, dict)
	docKeys := termdict.NewDocKeyIndex(kv, segStore)

	idx := &Index{
		Name:      name,
		schema:    s,
		mapping:   mapping,
		analyzers: analyzers,
		preparer:  document.NewPreparer(s, mapping, analyzers),
		kv:        kv,
		dict:      dict,
		segStore:  segStore,
		docKeys:   docKeys,
		engine:    &query.Engine{Schema: s, Dict: dict, Store: segStore},
		parser:    &query.Parser{Schema: s, Mapping: mapping, Analyzers: analyzers},
		metrics:   m,
		logger:    logger.With("index", name),
	}
	return idx, nil
}

// Put prepares src and flushes it as a new, immediately-visible
// one-document segment, overwriting any previous document at the same key
// (spec.md §3's overwrite invariant, §8's "Overwrite semantics" scenario).
func (idx *Index) Put(ctx context.Context, src document.Source) error {
	analyzed, err := idx.preparer.Prepare(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	builder := storage.NewSegmentBuilder()
	if _, err := builder.AddDocument(analyzed); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	segID, _, err := idx.segStore.WriteSegment(ctx, builder)
	if err != nil {
		return fmt.Errorf("%w: write segment: %v", ErrStorage, err)
	}
	if err := idx.docKeys.InsertOrReplace(ctx, analyzed.Key, termdict.DocRef{SegmentID: segID, Ordinal: 0}); err != nil {
		return fmt.Errorf("%w: update document key index: %v", ErrStorage, err)
	}

	if idx.metrics != nil {
		idx.metrics.DocumentsIndexed.WithLabelValues(idx.Name).Inc()
		idx.metrics.SegmentsFlushed.Inc()
	}
	idx.logger.Debug("put document", "key", analyzed.Key, "segment_id", segID)
	return nil
}

// Delete removes key, clearing its DocRef's live bit if one exists
// (spec.md §4.4: "Deletion of a single document: flip the bit ...").
func (idx *Index) Delete(ctx context.Context, key string) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	if err := idx.docKeys.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// BulkIndex prepares and flushes srcs, returning one DocResult per input in
// order. A FieldCoercion error aborts only its own document (spec.md §7);
// remaining documents are still attempted. Documents are grouped into
// segments of up to storage.MaxDocumentsPerSegment.
func (idx *Index) BulkIndex(ctx context.Context, srcs []document.Source) []DocResult {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	results := make([]DocResult, len(srcs))

	type pendingDoc struct {
		resultIdx int
		key       string
	}

	builder := storage.NewSegmentBuilder()
	var pending []pendingDoc

	flush := func() {
		if len(pending) == 0 {
			return
		}
		segID, _, err := idx.segStore.WriteSegment(ctx, builder)
		if err != nil {
			for _, p := range pending {
				results[p.resultIdx] = DocResult{Key: p.key, Err: fmt.Errorf("%w: write segment: %v", ErrStorage, err)}
			}
			builder = storage.NewSegmentBuilder()
			pending = nil
			return
		}
		if idx.metrics != nil {
			idx.metrics.SegmentsFlushed.Inc()
		}
		for ord, p := range pending {
			ref := termdict.DocRef{SegmentID: segID, Ordinal: uint16(ord)}
			if err := idx.docKeys.InsertOrReplace(ctx, p.key, ref); err != nil {
				results[p.resultIdx] = DocResult{Key: p.key, Err: fmt.Errorf("%w: update document key index: %v", ErrStorage, err)}
				continue
			}
			results[p.resultIdx] = DocResult{Key: p.key}
			if idx.metrics != nil {
				idx.metrics.DocumentsIndexed.WithLabelValues(idx.Name).Inc()
			}
		}
		builder = storage.NewSegmentBuilder()
		pending = nil
	}

	for i, src := range srcs {
		analyzed, err := idx.preparer.Prepare(src)
		if err != nil {
			results[i] = DocResult{Key: src.Key, Err: fmt.Errorf("%w: %v", ErrSchema, err)}
			continue
		}

		if _, err := builder.AddDocument(analyzed); errors.Is(err, storage.ErrSegmentFull) {
			flush()
			if _, err := builder.AddDocument(analyzed); err != nil {
				results[i] = DocResult{Key: analyzed.Key, Err: fmt.Errorf("%w: %v", ErrStorage, err)}
				continue
			}
		} else if err != nil {
			results[i] = DocResult{Key: analyzed.Key, Err: fmt.Errorf("%w: %v", ErrStorage, err)}
			continue
		}

		pending = append(pending, pendingDoc{resultIdx: i, key: analyzed.Key})
	}
	flush()

	return results
}

// Query parses raw as the JSON query DSL and returns the top-size scored
// hits (spec.md §4.6, §6's response envelope).
func (idx *Index) Query(ctx context.Context, raw json.RawMessage, size int) (*query.Response, error) {
	runID := uuid.NewString()
	tree, err := idx.parser.Parse(raw)
	if err != nil {
		idx.logger.Debug("query parse failed", "run_id", runID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	start := time.Now()
	resp, err := idx.engine.Execute(ctx, tree, query.Options{Size: size})
	if idx.metrics != nil {
		idx.metrics.ObserveQuery(idx.Name, start, err)
	}
	if err != nil {
		idx.logger.Debug("query execution failed", "run_id", runID, "error", err)
		if errors.Is(err, query.ErrCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	idx.logger.Debug("query executed", "run_id", runID, "total", resp.Hits.Total, "elapsed", time.Since(start))
	return resp, nil
}

// Schema exposes the index's field registry, e.g. for an HTTP façade's
// mapping-introspection endpoint.
func (idx *Index) Schema() *schema.Schema { return idx.schema }

// Close releases the index's underlying kv store.
func (idx *Index) Close() error {
	return idx.kv.Close()
}
