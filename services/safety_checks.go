package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/repositories"
)

// SafetyCheckEngine inspects current record state before a hard delete
type SafetyCheckEngine struct {
	records       repositories.RecordRepository
	coolingPeriod time.Duration
	now           func() time.Time
}

// NewSafetyCheckEngine creates a safety check engine over a record repository
func NewSafetyCheckEngine(records repositories.RecordRepository, coolingPeriod time.Duration, now func() time.Time) *SafetyCheckEngine {
	if now == nil {
		now = defaultClock
	}
	return &SafetyCheckEngine{
		records:       records,
		coolingPeriod: coolingPeriod,
		now:           now,
	}
}

// PreDeleteSafetyChecks confirms the record exists, is soft deleted, and has
// been soft deleted for at least the cooling period. Exactly the cooling period is enough.
func (e *SafetyCheckEngine) PreDeleteSafetyChecks(ctx context.Context, table, recordID string) (*models.SoftDeletableRecord, error) {
	record, err := e.loadRecord(ctx, table, recordID)
	if err != nil {
		return nil, err
	}

	if !record.IsSoftDeleted() {
		return nil, models.NewAppError(models.ErrCodeNotSoftDeleted,
			"Record must be soft deleted before hard delete")
	}

	elapsed := e.now().Sub(*record.SoftDeletedAt)
	if elapsed < e.coolingPeriod {
		remaining := (e.coolingPeriod - elapsed).Round(time.Minute)
		if remaining <= 0 {
			remaining = time.Minute
		}
		return nil, models.NewAppError(models.ErrCodeCoolingPeriodActive,
			fmt.Sprintf("Record was soft deleted %s ago; wait %s before requesting a hard delete",
				elapsed.Round(time.Minute), remaining)).
			WithDetail("retry_after_seconds", int64(remaining.Seconds()))
	}

	return record, nil
}

// CheckForeignKeyDependencies reports rows in dependent tables that still reference the record
func (e *SafetyCheckEngine) CheckForeignKeyDependencies(ctx context.Context, table, recordID string) (*models.DependencyReport, error) {
	counts, err := e.records.CountDependents(ctx, table, recordID)
	if err != nil {
		if errors.Is(err, repositories.ErrUnknownTable) {
			return nil, models.NewAppError(models.ErrCodeInvalidTable,
				fmt.Sprintf("Table %q is not enabled for deletion", table))
		}
		return nil, models.InternalError("Failed to check dependencies", err)
	}

	return &models.DependencyReport{
		HasDependencies: len(counts) > 0,
		Dependents:      counts,
	}, nil
}

// RequireNoDependencies turns a positive dependency report into DEPENDENCIES_EXIST
func (e *SafetyCheckEngine) RequireNoDependencies(ctx context.Context, table, recordID string) error {
	report, err := e.CheckForeignKeyDependencies(ctx, table, recordID)
	if err != nil {
		return err
	}
	if report.HasDependencies {
		return dependenciesError(report.Dependents)
	}
	return nil
}

func (e *SafetyCheckEngine) loadRecord(ctx context.Context, table, recordID string) (*models.SoftDeletableRecord, error) {
	record, err := e.records.Get(ctx, table, recordID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, models.NewAppError(models.ErrCodeRecordNotFound, "Record not found")
	case errors.Is(err, repositories.ErrUnknownTable):
		return nil, models.NewAppError(models.ErrCodeInvalidTable,
			fmt.Sprintf("Table %q is not enabled for deletion", table))
	case err != nil:
		return nil, models.InternalError("Failed to load record", err)
	}
	return record, nil
}

func dependenciesError(dependents map[string]int) *models.AppError {
	tables := make([]string, 0, len(dependents))
	for table := range dependents {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	parts := make([]string, 0, len(tables))
	for _, table := range tables {
		parts = append(parts, fmt.Sprintf("%s (%d)", table, dependents[table]))
	}

	return models.NewAppError(models.ErrCodeDependenciesExist,
		"Record still has dependent rows: "+strings.Join(parts, ", ")+"; remove them first").
		WithDetail("dependents", dependents)
}
