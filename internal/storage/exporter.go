package storage

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"time"

	"github.com/graph-analysis/internal/centrality"
	"github.com/graph-analysis/pkg/compression"
	"github.com/graph-analysis/pkg/config"
	apperrors "github.com/graph-analysis/pkg/errors"
	"github.com/graph-analysis/pkg/utils"
	"github.com/graph-analysis/pkg/writer"
)

// ExportFileName is the base name of an exported score file before the
// compression suffix.
const ExportFileName = "scores.json"

// Export is the document written for a finished run.
type Export struct {
	RunUUID    string                 `json:"run_uuid"`
	Algorithm  string                 `json:"algorithm"`
	NodeCount  int64                  `json:"node_count"`
	EdgeCount  int64                  `json:"edge_count"`
	Directed   bool                   `json:"directed"`
	DurationMs int64                  `json:"duration_ms"`
	ExportedAt time.Time              `json:"exported_at"`
	Stats      centrality.Stats       `json:"stats"`
	Scores     []centrality.NodeScore `json:"scores"`
}

// Exporter writes full results to storage as compressed JSON.
type Exporter struct {
	storage     Storage
	compression compression.Type
	writer      *writer.JSONWriter[*Export]
	prefix      string
	logger      utils.Logger
}

// NewExporter creates an exporter from the export configuration.
func NewExporter(s Storage, cfg *config.ExportConfig, logger utils.Logger) (*Exporter, error) {
	t, err := compression.ParseType(cfg.Compression)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "invalid export compression", err)
	}
	return &Exporter{
		storage:     s,
		compression: t,
		writer:      writer.NewCompressedJSONWriter[*Export](t),
		prefix:      cfg.Prefix,
		logger:      utils.OrGlobal(logger),
	}, nil
}

// Key returns the storage key of a run's export.
func (e *Exporter) Key(runUUID string) string {
	return path.Join(e.prefix, runUUID, ExportFileName+e.compression.Extension())
}

// Export streams every score of result to storage and returns the key.
// A failed upload removes any partial object.
func (e *Exporter) Export(ctx context.Context, runUUID string, result *centrality.Result) (string, error) {
	key := e.Key(runUUID)
	doc := &Export{
		RunUUID:    runUUID,
		Algorithm:  result.Algorithm,
		DurationMs: result.Duration.Milliseconds(),
		ExportedAt: time.Now().UTC(),
		Stats:      result.Stats,
		Scores:     result.All(),
	}
	if g := result.Graph(); g != nil {
		doc.NodeCount = g.NodeCount()
		doc.EdgeCount = g.EdgeCount()
		doc.Directed = g.Directed()
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(e.writer.Write(doc, pw))
	}()

	err := e.storage.Upload(ctx, key, pr)
	pr.CloseWithError(err)
	if err != nil {
		if delErr := e.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			e.logger.Warn("failed to remove partial export %s: %v", key, delErr)
		}
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to export scores", err)
	}

	e.logger.Info("exported %d scores to %s", len(doc.Scores), e.storage.GetURL(key))
	return key, nil
}

// ReadExport downloads and decodes an export. The compression is detected
// from the content.
func ReadExport(ctx context.Context, s Storage, key string) (*Export, error) {
	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, _, err := compression.NewReader(rc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to open export", err)
	}
	defer r.Close()

	var doc Export
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeParseError, "failed to decode export", err)
	}
	return &doc, nil
}
