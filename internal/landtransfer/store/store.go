// Package store persists land transfers. Status changes are conditional
// writes on the expected current status.
package store

import (
	"fmt"

	"landadmin/pkg/platform/sentinel"
)

// ErrDuplicateNumber is returned when the transfer number is taken.
var ErrDuplicateNumber = fmt.Errorf("transfer number: %w", sentinel.ErrConflict)

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
	return page, min(limit, maxLimit)
}
