// Package store persists land records. Gate transitions are conditional
// writes guarded on the current status so concurrent transfers cannot both
// lock the same parcel.
package store

import (
	"fmt"

	"landadmin/pkg/platform/sentinel"
)

var (
	ErrDuplicateParcel = fmt.Errorf("parcel number: %w", sentinel.ErrConflict)
	ErrDuplicateUPI    = fmt.Errorf("upi number: %w", sentinel.ErrConflict)
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// NormalizePage applies page defaults and the limit cap.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
