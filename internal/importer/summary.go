package importer

import (
	"context"
	"fmt"

	"targetdb/internal/ctxlog"
	"targetdb/pkg/domain"
)

// maxErrorSample caps the per-file error detail carried in a summary; the
// full skip count is always exact.
const maxErrorSample = 10

// ImportSummary reports the outcome of one import operation.
type ImportSummary struct {
	File     string   `json:"file"`
	Entity   string   `json:"entity"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func newSummary(file string, entity domain.EntityType) *ImportSummary {
	return &ImportSummary{File: file, Entity: string(entity)}
}

// skip records a skipped row with a line-qualified reason, keeping only the
// first maxErrorSample details.
func (s *ImportSummary) skip(ctx context.Context, line int, reason string) {
	s.Skipped++
	detail := fmt.Sprintf("%s:%d: %s", s.File, line, reason)
	if len(s.Errors) < maxErrorSample {
		s.Errors = append(s.Errors, detail)
	}
	ctxlog.FromContext(ctx).Warn("row skipped",
		"file", s.File, "line", line, "reason", reason)
}

// finish validates the ≥1-row success rule and logs the outcome.
func (s *ImportSummary) finish(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("import finished",
		"file", s.File, "entity", s.Entity,
		"imported", s.Imported, "skipped", s.Skipped)
	if s.Imported == 0 {
		return domain.ValidationError{
			File:   s.File,
			Reason: "no rows imported",
			Fatal:  true,
		}
	}
	return nil
}
