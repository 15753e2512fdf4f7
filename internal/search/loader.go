// Package search owns the ticket document index: schema bootstrap and
// bulk upserts.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// maxReportedErrors bounds the per-document error list carried back to the
// caller; the full failure count is always reported.
const maxReportedErrors = 5

// BulkResult summarizes one bulk upsert pass.
type BulkResult struct {
	Indexed int64
	Failed  int64
	Skipped int
	Errors  []string
}

// Loader writes ticket documents into the search index.
type Loader struct {
	client  *elasticsearch.Client
	logger  ectologger.Logger
	index   string
	workers int
}

// NewLoader creates a Loader targeting one index name. An empty name turns
// every operation into a logged no-op.
func NewLoader(client *elasticsearch.Client, logger ectologger.Logger, index string, workers int) *Loader {
	if workers <= 0 {
		workers = 1
	}
	return &Loader{
		client:  client,
		logger:  logger,
		index:   index,
		workers: workers,
	}
}

// EnsureIndex creates the index with the fixed mapping when it does not
// exist yet. An existing index is left untouched, whatever its mapping.
func (l *Loader) EnsureIndex(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "search.Loader.EnsureIndex")
	defer span.End()

	if l.index == "" {
		l.logger.WithContext(ctx).Error("Search index name is not configured")
		return nil
	}

	res, err := l.client.Indices.Exists([]string{l.index}, l.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "failed to check index existence")
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return errors.Errorf("unexpected status %d checking index %s", res.StatusCode, l.index)
	}

	l.logger.WithContext(ctx).WithField("index", l.index).Info("Creating search index")

	createRes, err := l.client.Indices.Create(
		l.index,
		l.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		l.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create index")
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return errors.Errorf("index creation returned %s", createRes.Status())
	}
	return nil
}

// upsertEnvelope is the bulk "update" body: merge the document into the
// existing one, or insert it whole when absent.
type upsertEnvelope struct {
	Doc         models.TicketDocument `json:"doc"`
	DocAsUpsert bool                  `json:"doc_as_upsert"`
}

func encodeUpsert(doc models.TicketDocument) ([]byte, error) {
	return json.Marshal(upsertEnvelope{Doc: doc, DocAsUpsert: true})
}

// BulkUpsert sends the documents through a bulk indexer. Documents without
// an id are skipped and counted, not fatal; per-document failures are
// collected up to maxReportedErrors.
func (l *Loader) BulkUpsert(ctx context.Context, docs []models.TicketDocument) (*BulkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "search.Loader.BulkUpsert")
	defer span.End()

	result := &BulkResult{}

	if l.index == "" {
		l.logger.WithContext(ctx).Error("Search index name is not configured, skipping bulk upsert")
		return result, nil
	}
	if len(docs) == 0 {
		return result, nil
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     l.client,
		Index:      l.index,
		NumWorkers: l.workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bulk indexer")
	}

	var mu sync.Mutex
	for _, doc := range docs {
		if doc.TicketID == "" {
			result.Skipped++
			l.logger.WithContext(ctx).Warn("Skipping document without ticket id")
			continue
		}

		body, err := encodeUpsert(doc)
		if err != nil {
			result.Skipped++
			l.logger.WithContext(ctx).WithError(err).WithField("ticket_id", doc.TicketID).
				Warn("Skipping document that failed to encode")
			continue
		}

		item := esutil.BulkIndexerItem{
			Action:     "update",
			DocumentID: doc.TicketID,
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if len(result.Errors) >= maxReportedErrors {
					return
				}
				reason := res.Error.Reason
				if err != nil {
					reason = err.Error()
				}
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", item.DocumentID, reason))
			},
		}
		if err := indexer.Add(ctx, item); err != nil {
			return nil, errors.Wrap(err, "failed to enqueue bulk item")
		}
	}

	if err := indexer.Close(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to flush bulk indexer")
	}

	stats := indexer.Stats()
	result.Indexed = int64(stats.NumFlushed)
	result.Failed = int64(stats.NumFailed)

	if result.Failed > 0 {
		l.logger.WithContext(ctx).WithFields(map[string]any{
			"failed": result.Failed,
			"errors": result.Errors,
		}).Error("Bulk upsert finished with failures")
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"indexed": result.Indexed,
		"skipped": result.Skipped,
	}).Info("Bulk upsert complete")

	return result, nil
}
