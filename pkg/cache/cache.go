// Package cache keeps tenant definition lists close to the services that read
// them on every value write and record view. A cache failure is logged and
// treated as a miss; it never fails the caller.
package cache

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// DefinitionCache is read through. A miss reports the generation of the key,
// and Set stores only while that generation is current, so a list read before
// an Invalidate is never cached after it.
type DefinitionCache interface {
	Get(ctx context.Context, tenantID string, kind models.EntityKind) (definitions []models.FieldDefinition, generation uint64, ok bool)
	Set(ctx context.Context, tenantID string, kind models.EntityKind, generation uint64, definitions []models.FieldDefinition)
	Invalidate(ctx context.Context, tenantID string, kind models.EntityKind)
}

const keyPrefix = "clover:definitions"

func definitionsKey(tenantID string, kind models.EntityKind) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, tenantID, kind)
}

func generationKey(tenantID string, kind models.EntityKind) string {
	return definitionsKey(tenantID, kind) + ":generation"
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, string, models.EntityKind) ([]models.FieldDefinition, uint64, bool) {
	return nil, 0, false
}
func (Noop) Set(context.Context, string, models.EntityKind, uint64, []models.FieldDefinition) {}
func (Noop) Invalidate(context.Context, string, models.EntityKind)                            {}
