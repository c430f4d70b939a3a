package qualification

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

type recordKey struct{}

// WithRecord attaches the host's document of the record being evaluated. System-field
// rules read their operands from it through ContextRecords.
func WithRecord(ctx context.Context, record map[string]any) context.Context {
	return context.WithValue(ctx, recordKey{}, record)
}

// ContextRecords is the SystemFieldSource of processes that do not own system records.
// Without an attached document every system field is absent.
type ContextRecords struct{}

func (ContextRecords) GetRecord(ctx context.Context, _ string, _ models.EntityKind, _ string) (map[string]any, error) {
	record, _ := ctx.Value(recordKey{}).(map[string]any)
	return record, nil
}
