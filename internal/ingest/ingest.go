// Package ingest loads scraped job listings from a file and stores them as postings.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/config"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/metrics"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/normalize"
)

type (
	Store interface {
		Ingest(ctx context.Context, ownerID uint64, rec normalize.Record) (uint64, bool, error)
	}

	SystemUsers interface {
		EnsureSystemUser(ctx context.Context, email string) (uint64, error)
	}

	Stats struct {
		Inserted  int
		Duplicate int
		Failed    int
	}

	Runner struct {
		store       Store
		users       SystemUsers
		systemEmail string
		metrics     *metrics.Metrics
		logger      *zap.SugaredLogger
	}
)

func NewRunner(cfg *config.Config, store Store, users SystemUsers, m *metrics.Metrics, l *zap.SugaredLogger) *Runner {
	return &Runner{
		store:       store,
		users:       users,
		systemEmail: cfg.SystemUserEmail,
		metrics:     m,
		logger:      l,
	}
}

func (s Stats) Total() int {
	return s.Inserted + s.Duplicate + s.Failed
}

// Decode reads a JSON array of flat objects. Non-string scalars are kept in
// their JSON text form and string arrays are joined with commas.
func Decode(r io.Reader) ([]normalize.RawRecord, error) {
	var items []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}

	records := make([]normalize.RawRecord, 0, len(items))
	for _, item := range items {
		raw := normalize.RawRecord{}
		for key, value := range item {
			if s, ok := flatten(value); ok {
				raw[key] = s
			}
		}
		records = append(records, raw)
	}
	return records, nil
}

func flatten(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", false
	case string:
		return vv, true
	case []interface{}:
		parts := make([]string, 0, len(vv))
		for _, p := range vv {
			if s, ok := flatten(p); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), true
	case map[string]interface{}:
		return "", false
	default:
		return fmt.Sprint(vv), true
	}
}

func (r *Runner) RunFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, errors.Wrap(err, "open records file")
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return Stats{}, err
	}
	return r.Run(ctx, records)
}

// Run normalizes and stores every record under the system user. A record that
// fails is logged and counted, it does not stop the batch.
func (r *Runner) Run(ctx context.Context, records []normalize.RawRecord) (Stats, error) {
	stats := Stats{}

	ownerID, err := r.users.EnsureSystemUser(ctx, r.systemEmail)
	if err != nil {
		return stats, errors.Wrap(err, "ensure system user")
	}

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := normalize.Normalize(raw)
		if err != nil {
			r.fail(&stats, i, err)
			continue
		}

		id, inserted, err := r.store.Ingest(ctx, ownerID, rec)
		if err != nil {
			r.fail(&stats, i, err)
			continue
		}
		if !inserted {
			stats.Duplicate++
			r.metrics.IngestRecords.WithLabelValues(metrics.IngestDuplicate).Inc()
			r.logger.Debugw("duplicate posting skipped", "index", i, "link", rec.Link)
			continue
		}
		stats.Inserted++
		r.metrics.IngestRecords.WithLabelValues(metrics.IngestInserted).Inc()
		r.logger.Debugw("posting stored", "index", i, "id", id,
			"lastModified", normalize.FormatDate(rec.LastModified))
	}

	r.logger.Infow("ingest finished",
		"total", stats.Total(),
		"inserted", stats.Inserted,
		"duplicate", stats.Duplicate,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (r *Runner) fail(stats *Stats, index int, err error) {
	stats.Failed++
	r.metrics.IngestRecords.WithLabelValues(metrics.IngestFailed).Inc()
	r.logger.Warnw("record skipped", "index", index, "err", err)
}
