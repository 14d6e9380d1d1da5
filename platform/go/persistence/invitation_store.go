package persistence

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// InvitationsTable is the invitation table.
const InvitationsTable = "invitations"

// InvitationTTL is the fixed pending window from creation to expiry.
const InvitationTTL = 7 * 24 * time.Hour

// InvitationStatus is the lazily-derived lifecycle state. Expiry is reached by
// clock, not mutation: a pending row whose expiry passes simply reads as expired.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// InvitationRecord represents an invitation row. Token is populated only on
// the record returned from Create; listings never carry it.
type InvitationRecord struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Email      string
	Role       string
	Token      string
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	CreatedAt  time.Time
	CreatedBy  uuid.UUID
}

// StatusAt derives the lifecycle state at the given instant.
func (r InvitationRecord) StatusAt(now time.Time) InvitationStatus {
	if r.AcceptedAt != nil {
		return InvitationAccepted
	}
	if now.After(r.ExpiresAt) {
		return InvitationExpired
	}
	return InvitationPending
}

// InvitationStore manages invitations. Creation and listing run through the
// scoped layer; acceptance is the one deliberate exception, because the caller
// is not yet a member of any tenant and the token itself is the capability.
// The tenant id used for the membership insert comes from the invitation row
// inside the same transaction, never from the caller.
type InvitationStore struct {
	db   *ScopedDB
	pool *pgxpool.Pool
}

// NewInvitationStore returns a store over the scoped layer plus the pool for
// the acceptance transaction.
func NewInvitationStore(db *ScopedDB, pool *pgxpool.Pool) (*InvitationStore, error) {
	if db == nil {
		return nil, errors.New("scoped db is required")
	}
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if _, err := db.ident(InvitationsTable); err != nil {
		return nil, err
	}
	return &InvitationStore{db: db, pool: pool}, nil
}

// CreateInvitationParams captures a new invitation.
type CreateInvitationParams struct {
	Email     string
	Role      string
	CreatedBy uuid.UUID
}

// Create inserts a pending invitation. At most one pending invitation may
// exist per (tenant, email); a live pending one is ErrConflict, not overwritten.
func (s *InvitationStore) Create(ctx context.Context, scope tenant.Scope, params CreateInvitationParams) (InvitationRecord, error) {
	now := time.Now().UTC()
	email := strings.ToLower(strings.TrimSpace(params.Email))

	pending, err := s.db.Query(ctx, scope, InvitationsTable,
		Where("email", OpEq, email).
			And("accepted_at", OpIsNull, nil).
			And("expires_at", OpGt, now))
	if err != nil {
		return InvitationRecord{}, err
	}
	if len(pending) > 0 {
		return InvitationRecord{}, ErrConflict
	}

	token, err := newInvitationToken()
	if err != nil {
		return InvitationRecord{}, err
	}

	row, err := s.db.Insert(ctx, scope, InvitationsTable, Row{
		"email":      email,
		"role":       params.Role,
		"token":      token,
		"expires_at": now.Add(InvitationTTL),
		"created_at": now,
		"created_by": params.CreatedBy,
	})
	if err != nil {
		return InvitationRecord{}, err
	}

	rec, err := invitationFromRow(row)
	if err != nil {
		return InvitationRecord{}, err
	}
	rec.Token = token
	return rec, nil
}

// List returns the tenant's invitations with tokens omitted.
func (s *InvitationStore) List(ctx context.Context, scope tenant.Scope) ([]InvitationRecord, error) {
	rows, err := s.db.Query(ctx, scope, InvitationsTable, Predicate{})
	if err != nil {
		return nil, err
	}

	records := make([]InvitationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := invitationFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// AcceptParams carries the acceptance credentials. Full name and credential
// reference are used only when the invitee has no existing user record.
type AcceptParams struct {
	Token         string
	FullName      string
	CredentialRef string
}

// AcceptResult reports the outcome of a successful acceptance.
type AcceptResult struct {
	Membership MembershipRecord
	User       UserRecord
}

// Accept claims the invitation and creates the membership in one transaction.
// The claim is a conditional write: it succeeds only if accepted_at is still
// null and the expiry is in the future at the moment of the update, so two
// concurrent acceptances of the same token produce exactly one membership and
// the loser observes ErrInvalidInvitation.
func (s *InvitationStore) Accept(ctx context.Context, params AcceptParams) (AcceptResult, error) {
	if params.Token == "" {
		return AcceptResult{}, ErrInvalidInvitation
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return AcceptResult{}, fmt.Errorf("begin accept tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	claim := fmt.Sprintf(`
        UPDATE %s SET accepted_at = NOW()
        WHERE token = $1
          AND accepted_at IS NULL
          AND expires_at > NOW()
          AND deleted_at IS NULL
          AND tenant_id IN (SELECT tenant_id FROM %s WHERE deleted_at IS NULL AND status = $2)
        RETURNING id, tenant_id, email, role
    `, InvitationsTable, TenantsTable)

	var invitationID, tenantID uuid.UUID
	var email, role string
	if err := tx.QueryRow(ctx, claim, params.Token, TenantStatusActive).Scan(&invitationID, &tenantID, &email, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AcceptResult{}, ErrInvalidInvitation
		}
		return AcceptResult{}, fmt.Errorf("claim invitation: %w", err)
	}

	user, err := resolveInvitedUser(ctx, tx, email, params)
	if err != nil {
		return AcceptResult{}, err
	}

	membershipID := uuid.New()
	insertMembership := fmt.Sprintf(`
        INSERT INTO %s (id, tenant_id, user_id, role, is_primary, joined_at)
        VALUES ($1, $2, $3, $4, FALSE, NOW())
        RETURNING id, tenant_id, user_id, role, is_primary, joined_at
    `, MembershipsTable)

	var membership MembershipRecord
	if err := tx.QueryRow(ctx, insertMembership, membershipID, tenantID, user.UserID, role).Scan(
		&membership.ID, &membership.TenantID, &membership.UserID, &membership.Role, &membership.IsPrimary, &membership.JoinedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return AcceptResult{}, ErrConflict
		}
		return AcceptResult{}, fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AcceptResult{}, fmt.Errorf("commit accept tx: %w", err)
	}

	return AcceptResult{Membership: membership, User: user}, nil
}

// resolveInvitedUser reuses the user matching the invitation email or creates
// one from the supplied credentials. The invitation email is authoritative;
// acceptance cannot graft the invitation onto a different address.
func resolveInvitedUser(ctx context.Context, tx pgx.Tx, email string, params AcceptParams) (UserRecord, error) {
	selectUser := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, UsersTable)

	rec, err := scanUserRecord(tx.QueryRow(ctx, selectUser, email))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return UserRecord{}, fmt.Errorf("resolve invited user: %w", err)
	}

	insertUser := fmt.Sprintf(`
        INSERT INTO %s (user_id, email, full_name, credential_ref)
        VALUES ($1, $2, $3, $4)
        RETURNING %s
    `, UsersTable, userColumns)

	rec, err = scanUserRecord(tx.QueryRow(ctx, insertUser, uuid.New(), email, params.FullName, params.CredentialRef))
	if err != nil {
		return UserRecord{}, fmt.Errorf("create invited user: %w", err)
	}
	return rec, nil
}

// newInvitationToken returns a 256-bit random token, hex encoded.
func newInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func invitationFromRow(row Row) (InvitationRecord, error) {
	id, err := rowUUID(row, "id")
	if err != nil {
		return InvitationRecord{}, err
	}
	tenantID, err := rowUUID(row, "tenant_id")
	if err != nil {
		return InvitationRecord{}, err
	}
	createdBy, err := rowUUID(row, "created_by")
	if err != nil {
		return InvitationRecord{}, err
	}
	expiresAt, err := rowTime(row, "expires_at")
	if err != nil {
		return InvitationRecord{}, err
	}
	createdAt, err := rowTime(row, "created_at")
	if err != nil {
		return InvitationRecord{}, err
	}

	email, _ := row["email"].(string)
	role, _ := row["role"].(string)

	return InvitationRecord{
		ID:         id,
		TenantID:   tenantID,
		Email:      email,
		Role:       role,
		ExpiresAt:  expiresAt,
		AcceptedAt: rowOptionalTime(row, "accepted_at"),
		CreatedAt:  createdAt,
		CreatedBy:  createdBy,
	}, nil
}
