package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by repositories so services can map storage
// conflicts onto the domain error taxonomy.
var (
	// ErrDuplicateKey reports a uniqueness constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrSlotsExhausted reports a conditional capacity update that matched no rows.
	ErrSlotsExhausted = errors.New("no available slots")
	// ErrStaleStatus reports a guarded status write whose row moved to
	// another status between the caller's read and the write.
	ErrStaleStatus = errors.New("status changed concurrently")
)

// isUniqueViolation detects a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isForeignKeyViolation detects a Postgres foreign_key_violation (23503),
// raised when a child row references a missing parent.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// paginate clamps page inputs and derives the LIMIT/OFFSET pair.
func paginate(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}
