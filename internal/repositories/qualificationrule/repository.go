package qualificationrule

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type QualificationRuleRepository interface {
	Upsert(ctx context.Context, rule models.QualificationRule) (models.QualificationRule, error)
	Get(ctx context.Context, tenantID, id string) (models.QualificationRule, error)
	List(ctx context.Context, tenantID string) ([]models.QualificationRule, error)
	ListActive(ctx context.Context, tenantID string) ([]models.QualificationRule, error)
	SetActive(ctx context.Context, tenantID, id string, active bool, updatedBy string) error
	Delete(ctx context.Context, tenantID, id string) error
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Repository) Upsert(ctx context.Context, rule models.QualificationRule) (models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "QualificationRuleRepository.Upsert", tracing.TenantAttr(rule.TenantID))
	defer span.End()

	now := r.now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	row := FromQualificationRule(rule)
	ib := qualificationRuleStruct.InsertInto(qualificationRuleTable, row)
	ub := ib.OnConflict("id")
	ub.Set(
		ub.Assign("entity_kind", database.Excluded("entity_kind")),
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("description", database.Excluded("description")),
		ub.Assign("field_reference", database.Excluded("field_reference")),
		ub.Assign("field_key", database.Excluded("field_key")),
		ub.Assign("operator", database.Excluded("operator")),
		ub.Assign("comparison_value", database.Excluded("comparison_value")),
		ub.Assign("comparison_values", database.Excluded("comparison_values")),
		ub.Assign("active", database.Excluded("active")),
		ub.Assign("display_order", database.Excluded("display_order")),
		ub.Assign("updated_by", database.Excluded("updated_by")),
		ub.Assign("updated_at", now),
	)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return models.QualificationRule{}, err
	}
	defer tx.Rollback(ctx)

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        rule.ID,
		"tenant_id": rule.TenantID,
		"operator":  rule.Operator,
	})

	log.Info("Upserting qualification rule")
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("error upserting qualification rule")
		return models.QualificationRule{}, httperror.NewHTTPError(http.StatusInternalServerError, "error upserting qualification rule")
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QualificationRule{}, err
	}
	return rule, nil
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "QualificationRuleRepository.Get", tracing.TenantAttr(tenantID))
	defer span.End()

	sb := qualificationRuleStruct.SelectFrom(qualificationRuleTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()

	var row QualificationRuleRow
	err := r.db.Querier(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"id":        id,
				"tenant_id": tenantID,
			}).Warn("Qualification rule not found")
			return models.QualificationRule{}, httperror.NewHTTPError(http.StatusNotFound, "qualification rule not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("error getting qualification rule")
		return models.QualificationRule{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting qualification rule")
	}

	return ToQualificationRule(&row), nil
}

// List returns every rule of the tenant in display order.
func (r *Repository) List(ctx context.Context, tenantID string) ([]models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "QualificationRuleRepository.List", tracing.TenantAttr(tenantID))
	defer span.End()

	return r.list(ctx, tenantID, false)
}

// ListActive returns the active rules of the tenant in display order.
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "QualificationRuleRepository.ListActive", tracing.TenantAttr(tenantID))
	defer span.End()

	return r.list(ctx, tenantID, true)
}

func (r *Repository) list(ctx context.Context, tenantID string, activeOnly bool) ([]models.QualificationRule, error) {
	sb := qualificationRuleStruct.SelectFrom(qualificationRuleTable)
	sb.Where(sb.Equal("tenant_id", tenantID))
	if activeOnly {
		sb.Where(sb.Equal("active", true))
	}
	sb.OrderBy("display_order", "created_at")

	query, args := sb.Build()

	var rows []QualificationRuleRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("error listing qualification rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing qualification rules")
	}

	rules := make([]models.QualificationRule, 0, len(rows))
	for i := range rows {
		rules = append(rules, ToQualificationRule(&rows[i]))
	}
	return rules, nil
}

func (r *Repository) SetActive(ctx context.Context, tenantID, id string, active bool, updatedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "QualificationRuleRepository.SetActive", tracing.TenantAttr(tenantID))
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(qualificationRuleTable)
	ub.Set(
		ub.Assign("active", active),
		ub.Assign("updated_by", sql.NullString{String: updatedBy, Valid: updatedBy != ""}),
		ub.Assign("updated_at", r.now().UTC()),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("id", id),
	)

	query, args := ub.Build()
	return r.execOne(ctx, query, args, map[string]any{"id": id, "tenant_id": tenantID, "active": active}, "toggling")
}

// Delete removes a rule for good; rules keep no history.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "QualificationRuleRepository.Delete", tracing.TenantAttr(tenantID))
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(qualificationRuleTable)
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("id", id),
	)

	query, args := db.Build()
	return r.execOne(ctx, query, args, map[string]any{"id": id, "tenant_id": tenantID}, "deleting")
}

// execOne runs a statement that must touch exactly one rule.
func (r *Repository) execOne(ctx context.Context, query string, args []any, fields map[string]any, action string) error {
	log := r.logger.WithContext(ctx).WithFields(fields)

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Errorf("error %s qualification rule", action)
		return httperror.NewHTTPError(http.StatusInternalServerError, "error "+action+" qualification rule")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Warn("Qualification rule not found")
		return httperror.NewHTTPError(http.StatusNotFound, "qualification rule not found")
	}
	log.Infof("Finished %s qualification rule", action)
	return nil
}
