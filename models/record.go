package models

import "time"

// SoftDeletableRecord is the slice of a domain row the delete workflow cares about
type SoftDeletableRecord struct {
	TableName     string     `json:"table_name"`
	ID            string     `json:"id"`
	SoftDeletedAt *time.Time `json:"soft_deleted_at"`
}

// IsSoftDeleted reports whether the record carries a soft-delete marker
func (r *SoftDeletableRecord) IsSoftDeleted() bool {
	return r.SoftDeletedAt != nil
}

// DependencyReport lists rows that still reference a record
type DependencyReport struct {
	HasDependencies bool           `json:"has_dependencies"`
	Dependents      map[string]int `json:"dependents,omitempty"`
}
