package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"landadmin/internal/landrecord/models"
	"landadmin/internal/platform/postgres"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
	txcontext "landadmin/pkg/platform/tx"
)

// PostgresLandStore persists land records in the land_records table.
type PostgresLandStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresLandStore {
	return &PostgresLandStore{db: db}
}

const landColumns = `id, parcel_number, upi_number, area, district, sector, cell, village,
	description, land_use_type, status, market_value, government_value, COALESCE(geometry, ''),
	documents, owner_id, registered_by, approved_by, approved_at, COALESCE(rejection_reason, ''),
	created_at, updated_at`

func (s *PostgresLandStore) Create(ctx context.Context, land *models.LandRecord) error {
	query := `
		INSERT INTO land_records (id, parcel_number, upi_number, area, district, sector, cell, village,
			description, land_use_type, status, market_value, government_value, geometry,
			documents, owner_id, registered_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16, $17, $18, $19)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(land.ID), land.ParcelNumber, land.UPINumber, land.Area, land.District,
		land.Sector, land.Cell, land.Village, land.Description, string(land.LandUseType),
		string(land.Status), nullDecimal(land.MarketValue), nullDecimal(land.GovernmentValue),
		land.Geometry, pq.Array(documentsOrEmpty(land.Documents)), uuid.UUID(land.OwnerID),
		uuid.UUID(land.RegisteredBy), land.CreatedAt, land.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, "land_records_parcel_number_key"):
		return ErrDuplicateParcel
	case postgres.IsUniqueViolation(err, "land_records_upi_number_key"):
		return ErrDuplicateUPI
	case postgres.IsUniqueViolation(err, ""):
		return sentinel.ErrConflict
	default:
		return fmt.Errorf("insert land record: %w", err)
	}
}

func (s *PostgresLandStore) FindByID(ctx context.Context, landID id.LandID) (*models.LandRecord, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+landColumns+` FROM land_records WHERE id = $1`, uuid.UUID(landID))
	land, err := scanLand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return land, err
}

func (s *PostgresLandStore) ExistsByParcelNumber(ctx context.Context, parcel string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM land_records WHERE parcel_number = $1)`, parcel)
}

func (s *PostgresLandStore) ExistsByUPI(ctx context.Context, upi string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM land_records WHERE upi_number = $1)`, upi)
}

func (s *PostgresLandStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("check land record exists: %w", err)
	}
	return ok, nil
}

func (s *PostgresLandStore) List(ctx context.Context, scope policy.Scope, filter models.ListFilter) ([]*models.LandRecord, int, error) {
	page, limit := NormalizePage(filter.Page, filter.Limit)
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	switch scope.Kind {
	case policy.ScopeOwner:
		add("owner_id = $%d", uuid.UUID(scope.UserID))
	case policy.ScopeDistrict:
		add("district = $%d", scope.District)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.District != "" {
		add("district = $%d", filter.District)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	exec := txcontext.Exec(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM land_records`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count land records: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM land_records%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		landColumns, clause, len(args)-1, len(args))
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query land records: %w", err)
	}
	defer rows.Close()

	out := []*models.LandRecord{}
	for rows.Next() {
		land, err := scanLand(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, land)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate land records: %w", err)
	}
	return out, total, nil
}

func (s *PostgresLandStore) Review(ctx context.Context, land *models.LandRecord) error {
	var approvedBy *uuid.UUID
	if land.ApprovedBy != nil {
		v := uuid.UUID(*land.ApprovedBy)
		approvedBy = &v
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE land_records
		SET status = $2, approved_by = $3, approved_at = $4, rejection_reason = NULLIF($5, ''), updated_at = $6
		WHERE id = $1 AND status = ANY($7::text[])
	`, uuid.UUID(land.ID), string(land.Status), approvedBy, land.ApprovedAt, land.RejectionReason,
		land.UpdatedAt, pq.Array(statusStrings(models.ReviewableStatuses)))
	if err != nil {
		return fmt.Errorf("review land record: %w", err)
	}
	return s.casResult(ctx, res, land.ID)
}

func (s *PostgresLandStore) LockForTransfer(ctx context.Context, landID id.LandID, now time.Time) (*models.LandRecord, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE land_records
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4::text[])
		RETURNING `+landColumns,
		uuid.UUID(landID), string(models.StatusUnderReview), now,
		pq.Array(statusStrings(models.TransferableStatuses)))
	land, err := scanLand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missOrInvalid(ctx, landID)
	}
	return land, err
}

func (s *PostgresLandStore) FinalizeTransfer(ctx context.Context, landID id.LandID, expectedOwner, newOwner id.UserID, now time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE land_records
		SET owner_id = $3, status = $4, updated_at = $5
		WHERE id = $1 AND owner_id = $2 AND status = $6
	`, uuid.UUID(landID), uuid.UUID(expectedOwner), uuid.UUID(newOwner),
		string(models.StatusTransferred), now, string(models.StatusUnderReview))
	if err != nil {
		return fmt.Errorf("finalize land transfer: %w", err)
	}
	return s.casResult(ctx, res, landID)
}

func (s *PostgresLandStore) RestoreAfterTransfer(ctx context.Context, landID id.LandID, now time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE land_records SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, uuid.UUID(landID), string(models.StatusApproved), now, string(models.StatusUnderReview))
	if err != nil {
		return fmt.Errorf("restore land after transfer: %w", err)
	}
	return s.casResult(ctx, res, landID)
}

func (s *PostgresLandStore) casResult(ctx context.Context, res sql.Result, landID id.LandID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return s.missOrInvalid(ctx, landID)
	}
	return nil
}

// missOrInvalid distinguishes a missing row from a failed status guard.
func (s *PostgresLandStore) missOrInvalid(ctx context.Context, landID id.LandID) error {
	ok, err := s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM land_records WHERE id = $1)`, uuid.UUID(landID))
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLand(row rowScanner) (*models.LandRecord, error) {
	var (
		l                          models.LandRecord
		landID, ownerID, regBy     uuid.UUID
		approvedBy                 uuid.NullUUID
		approvedAt                 sql.NullTime
		marketValue, governmentVal decimal.NullDecimal
		landUse, status            string
		docs                       []string
	)
	err := row.Scan(&landID, &l.ParcelNumber, &l.UPINumber, &l.Area, &l.District, &l.Sector, &l.Cell,
		&l.Village, &l.Description, &landUse, &status, &marketValue, &governmentVal, &l.Geometry,
		pq.Array(&docs), &ownerID, &regBy, &approvedBy, &approvedAt, &l.RejectionReason,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan land record: %w", err)
	}
	l.ID = id.LandID(landID)
	l.OwnerID = id.UserID(ownerID)
	l.RegisteredBy = id.UserID(regBy)
	l.LandUseType = models.LandUseType(landUse)
	l.Status = models.Status(status)
	l.Documents = documentsOrEmpty(docs)
	if approvedBy.Valid {
		v := id.UserID(approvedBy.UUID)
		l.ApprovedBy = &v
	}
	if approvedAt.Valid {
		v := approvedAt.Time
		l.ApprovedAt = &v
	}
	if marketValue.Valid {
		v := marketValue.Decimal
		l.MarketValue = &v
	}
	if governmentVal.Valid {
		v := governmentVal.Decimal
		l.GovernmentValue = &v
	}
	return &l, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func documentsOrEmpty(docs []string) []string {
	if docs == nil {
		return []string{}
	}
	return docs
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
