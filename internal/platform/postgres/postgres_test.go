package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "land_transfers_transfer_number_key"}
	pqErr := &pq.Error{Code: "23505", Constraint: "land_records_upi_number_key"}

	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgxErr), ""))
	assert.True(t, IsUniqueViolation(pgxErr, "land_transfers_transfer_number_key"))
	assert.False(t, IsUniqueViolation(pgxErr, "land_records_upi_number_key"))
	assert.True(t, IsUniqueViolation(pqErr, "land_records_upi_number_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	assert.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}
