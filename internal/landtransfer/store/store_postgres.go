package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landadmin/internal/landtransfer/models"
	"landadmin/internal/platform/postgres"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
	txcontext "landadmin/pkg/platform/tx"
)

// PostgresTransferStore persists transfers in the land_transfers table.
type PostgresTransferStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresTransferStore {
	return &PostgresTransferStore{db: db}
}

const transferColumns = `id, transfer_number, land_id, district, current_owner_id, new_owner_id,
	transfer_value, tax_amount, reason, documents, status, initiated_by, approved_by, approved_at,
	COALESCE(approval_notes, ''), COALESCE(rejection_reason, ''), completed_at, created_at, updated_at`

func (s *PostgresTransferStore) Create(ctx context.Context, t *models.Transfer) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO land_transfers (id, transfer_number, land_id, district, current_owner_id, new_owner_id,
			transfer_value, tax_amount, reason, documents, status, initiated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, uuid.UUID(t.ID), t.TransferNumber, uuid.UUID(t.LandID), t.District,
		uuid.UUID(t.CurrentOwnerID), uuid.UUID(t.NewOwnerID), t.TransferValue, t.TaxAmount,
		t.Reason, pq.Array(orEmpty(t.Documents)), string(t.Status), uuid.UUID(t.InitiatedBy),
		t.CreatedAt, t.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, "land_transfers_transfer_number_key"):
		return ErrDuplicateNumber
	case postgres.IsUniqueViolation(err, ""):
		return sentinel.ErrConflict
	default:
		return fmt.Errorf("insert land transfer: %w", err)
	}
}

func (s *PostgresTransferStore) FindByID(ctx context.Context, transferID id.TransferID) (*models.Transfer, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM land_transfers WHERE id = $1`, uuid.UUID(transferID))
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return t, err
}

func (s *PostgresTransferStore) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var ok bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM land_transfers WHERE transfer_number = $1)`, number).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check transfer number: %w", err)
	}
	return ok, nil
}

// Transition writes the mutable fields of t when the stored status is one of from.
func (s *PostgresTransferStore) Transition(ctx context.Context, t *models.Transfer, from ...models.Status) error {
	var approvedBy *uuid.UUID
	if t.ApprovedBy != nil {
		v := uuid.UUID(*t.ApprovedBy)
		approvedBy = &v
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE land_transfers
		SET transfer_value = $2, tax_amount = $3, reason = $4, documents = $5, status = $6,
			approved_by = $7, approved_at = $8, approval_notes = NULLIF($9, ''),
			rejection_reason = NULLIF($10, ''), completed_at = $11, updated_at = $12
		WHERE id = $1 AND status = ANY($13::text[])
	`, uuid.UUID(t.ID), t.TransferValue, t.TaxAmount, t.Reason, pq.Array(orEmpty(t.Documents)),
		string(t.Status), approvedBy, t.ApprovedAt, t.ApprovalNotes, t.RejectionReason,
		t.CompletedAt, t.UpdatedAt, pq.Array(statusStrings(from)))
	if err != nil {
		return fmt.Errorf("update land transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM land_transfers WHERE id = $1)`, uuid.UUID(t.ID)).Scan(&exists); err != nil {
		return fmt.Errorf("check land transfer: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

// scopeClause renders the visibility rule as SQL predicates.
func scopeClause(scope policy.Scope, add func(string, any)) {
	switch scope.Kind {
	case policy.ScopeOwner:
		add("(current_owner_id = $%d OR new_owner_id = $%d)", uuid.UUID(scope.UserID))
	case policy.ScopeDistrict:
		add("district = $%d", scope.District)
	}
}

type whereBuilder struct {
	where []string
	args  []any
}

// add appends a predicate whose every %d refers to the same new argument.
func (b *whereBuilder) add(clause string, arg any) {
	b.args = append(b.args, arg)
	n := len(b.args)
	refs := make([]any, strings.Count(clause, "%d"))
	for i := range refs {
		refs[i] = n
	}
	b.where = append(b.where, fmt.Sprintf(clause, refs...))
}

func (b *whereBuilder) String() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (s *PostgresTransferStore) List(ctx context.Context, scope policy.Scope, filter models.ListFilter) ([]*models.Transfer, int, error) {
	page, limit := NormalizePage(filter.Page, filter.Limit)
	var b whereBuilder
	scopeClause(scope, b.add)
	if filter.Status != "" {
		b.add("status = $%d", string(filter.Status))
	}
	if filter.District != "" {
		b.add("district = $%d", filter.District)
	}

	var total int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM land_transfers`+b.String(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count land transfers: %w", err)
	}
	args := append(b.args, limit, (page-1)*limit)
	out, err := s.query(ctx, fmt.Sprintf(`SELECT %s FROM land_transfers%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transferColumns, b.String(), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresTransferStore) FindByLand(ctx context.Context, landID id.LandID) ([]*models.Transfer, error) {
	return s.query(ctx, `SELECT `+transferColumns+` FROM land_transfers WHERE land_id = $1 ORDER BY created_at DESC`, uuid.UUID(landID))
}

func (s *PostgresTransferStore) FindByUser(ctx context.Context, userID id.UserID) ([]*models.Transfer, error) {
	return s.query(ctx, `SELECT `+transferColumns+` FROM land_transfers
		WHERE current_owner_id = $1 OR new_owner_id = $1 ORDER BY created_at DESC`, uuid.UUID(userID))
}

func (s *PostgresTransferStore) FindByDistrict(ctx context.Context, district string) ([]*models.Transfer, error) {
	return s.query(ctx, `SELECT `+transferColumns+` FROM land_transfers WHERE district = $1 ORDER BY created_at DESC`, district)
}

func (s *PostgresTransferStore) History(ctx context.Context, landID id.LandID) ([]*models.Transfer, error) {
	return s.query(ctx, `SELECT `+transferColumns+` FROM land_transfers WHERE land_id = $1 ORDER BY created_at ASC`, uuid.UUID(landID))
}

func (s *PostgresTransferStore) Recent(ctx context.Context, limit int) ([]*models.Transfer, error) {
	return s.query(ctx, `SELECT `+transferColumns+` FROM land_transfers ORDER BY created_at DESC LIMIT $1`, limit)
}

func (s *PostgresTransferStore) Count(ctx context.Context, scope policy.Scope, statuses ...models.Status) (int, error) {
	var b whereBuilder
	scopeClause(scope, b.add)
	if len(statuses) > 0 {
		b.add("status = ANY($%d::text[])", pq.Array(statusStrings(statuses)))
	}
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM land_transfers`+b.String(), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count land transfers: %w", err)
	}
	return n, nil
}

func (s *PostgresTransferStore) query(ctx context.Context, query string, args ...any) ([]*models.Transfer, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query land transfers: %w", err)
	}
	defer rows.Close()

	out := []*models.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate land transfers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*models.Transfer, error) {
	var (
		t                       models.Transfer
		transferID, landID      uuid.UUID
		currentOwner, newOwner  uuid.UUID
		initiatedBy             uuid.UUID
		approvedBy              uuid.NullUUID
		approvedAt, completedAt sql.NullTime
		status                  string
		docs                    []string
	)
	err := row.Scan(&transferID, &t.TransferNumber, &landID, &t.District, &currentOwner, &newOwner,
		&t.TransferValue, &t.TaxAmount, &t.Reason, pq.Array(&docs), &status, &initiatedBy,
		&approvedBy, &approvedAt, &t.ApprovalNotes, &t.RejectionReason, &completedAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan land transfer: %w", err)
	}
	t.ID = id.TransferID(transferID)
	t.LandID = id.LandID(landID)
	t.CurrentOwnerID = id.UserID(currentOwner)
	t.NewOwnerID = id.UserID(newOwner)
	t.InitiatedBy = id.UserID(initiatedBy)
	t.Status = models.Status(status)
	t.Documents = orEmpty(docs)
	if approvedBy.Valid {
		v := id.UserID(approvedBy.UUID)
		t.ApprovedBy = &v
	}
	if approvedAt.Valid {
		v := approvedAt.Time
		t.ApprovedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return &t, nil
}

func orEmpty(docs []string) []string {
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
