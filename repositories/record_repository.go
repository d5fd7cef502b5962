package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blogem/hard-delete-gate/models"
)

// Relation is a column in another table that references a record
type Relation struct {
	Table  string
	Column string
}

// DependentRelations maps each soft-delete-enabled table to the relations that block its hard delete
var DependentRelations = map[string][]Relation{
	"users": {
		{Table: "products", Column: "created_by"},
		{Table: "product_submissions", Column: "submitted_by"},
	},
	"brands": {
		{Table: "products", Column: "brand_id"},
	},
	"products": {
		{Table: "product_submissions", Column: "product_id"},
	},
	"product_submissions": {},
}

// RecordRepository operates on rows of the soft-delete-enabled catalog tables.
// Table names are interpolated into SQL, so every method checks them against
// DependentRelations first and returns ErrUnknownTable otherwise.
type RecordRepository interface {
	Get(ctx context.Context, table, id string) (*models.SoftDeletableRecord, error)
	MarkSoftDeleted(ctx context.Context, table, id string, at time.Time) error
	ClearSoftDeleted(ctx context.Context, table, id string) error
	HardDelete(ctx context.Context, table, id string) error
	CountDependents(ctx context.Context, table, id string) (map[string]int, error)
}

type recordRepository struct {
	db DBTX
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db DBTX) RecordRepository {
	return &recordRepository{db: db}
}

func checkTable(table string) error {
	if _, ok := DependentRelations[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

// Get loads the soft-delete state of a record
func (r *recordRepository) Get(ctx context.Context, table, id string) (*models.SoftDeletableRecord, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, soft_deleted_at FROM %s WHERE id = ?`, table)

	record := &models.SoftDeletableRecord{TableName: table}
	var softDeletedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(&record.ID, &softDeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", table, err)
	}

	record.SoftDeletedAt = timePtr(softDeletedAt)
	return record, nil
}

// MarkSoftDeleted sets soft_deleted_at on a live record.
// Returns ErrNotFound for a missing row and ErrStaleState if it is already soft deleted.
func (r *recordRepository) MarkSoftDeleted(ctx context.Context, table, id string, at time.Time) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET soft_deleted_at = ? WHERE id = ? AND soft_deleted_at IS NULL`, table)
	return r.execConditional(ctx, table, id, query, at, id)
}

// ClearSoftDeleted restores a soft-deleted record
func (r *recordRepository) ClearSoftDeleted(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET soft_deleted_at = NULL WHERE id = ? AND soft_deleted_at IS NOT NULL`, table)
	return r.execConditional(ctx, table, id, query, id)
}

// HardDelete permanently removes a soft-deleted record
func (r *recordRepository) HardDelete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND soft_deleted_at IS NOT NULL`, table)
	return r.execConditional(ctx, table, id, query, id)
}

func (r *recordRepository) execConditional(ctx context.Context, table, id, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrReferenced, table, id)
		}
		return fmt.Errorf("failed to update %s record: %w", table, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.Get(ctx, table, id); err != nil {
			return err
		}
		return ErrStaleState
	}

	return nil
}

// CountDependents counts referencing rows per dependent table. Tables with no
// referencing rows are omitted.
func (r *recordRepository) CountDependents(ctx context.Context, table, id string) (map[string]int, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rel := range DependentRelations[table] {
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, rel.Table, rel.Column)

		var count int
		if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s dependents: %w", rel.Table, err)
		}
		if count > 0 {
			counts[rel.Table] += count
		}
	}

	return counts, nil
}
