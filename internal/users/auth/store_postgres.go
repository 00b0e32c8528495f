// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeep/internal/platform/apperr"
	"github.com/taibuivan/gatekeep/internal/platform/database/schema"
	"github.com/taibuivan/gatekeep/internal/platform/dberr"
	"github.com/taibuivan/gatekeep/pkg/pointer"
)

// # Query Fragments

var (
	accountTable    = schema.UserAccount
	roleTable       = schema.UserRole
	assignmentTable = schema.UserAccountRole

	accountSelect = fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(accountTable.Columns(), ", "), accountTable.Table)

	accountWithSessionSelect = fmt.Sprintf(`SELECT %s, %s FROM %s`,
		strings.Join(accountTable.Columns(), ", "), strings.Join(accountTable.SessionColumns(), ", "), accountTable.Table)

	rolesByAccountQuery = fmt.Sprintf(`
		SELECT r.%s, r.%s, r.%s, r.%s, r.%s, r.%s, r.%s
		FROM %s ar
		JOIN %s r ON r.%s = ar.%s
		WHERE ar.%s = $1
		ORDER BY ar.%s, r.%s`,
		roleTable.ID, roleTable.Slug, roleTable.Name, roleTable.Permissions, roleTable.Status, roleTable.IsSystem, roleTable.IsDefault,
		assignmentTable.Table, roleTable.Table, roleTable.ID, assignmentTable.RoleID,
		assignmentTable.AccountID, assignmentTable.Position, roleTable.Slug,
	)

	// sessionAssignments sets the six session columns from $2..$7.
	sessionAssignments = fmt.Sprintf(`%s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = $7`,
		accountTable.SessionTokenHash, accountTable.SessionIPAddress, accountTable.SessionUserAgent,
		accountTable.SessionIssuedAt, accountTable.SessionExpiresAt, accountTable.SessionRotatedAt)
)

// # Account Repository

// PostgresAccountRepository implements [AccountStore] using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountStore.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
FindByIdentifier retrieves an account by username or email.

Parameters:
  - context: context.Context
  - identifier: string (normalised)

Returns:
  - *Account: Hydrated entity including roles
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByIdentifier(context context.Context, identifier string) (*Account, error) {
	query := accountSelect + fmt.Sprintf(` WHERE %s = $1 OR %s = $1 LIMIT 1`, accountTable.Username, accountTable.Email)

	found, err := scanAccount(repository.pool.QueryRow(context, query, identifier), false)
	if err != nil {
		return nil, dberr.Wrap(err, "Account", "postgres_account_repo_find_by_identifier_failed")
	}

	if err := repository.attachRoles(context, found); err != nil {
		return nil, err
	}
	return found, nil
}

// FindByID retrieves an account and its roles. The session block is not selected.
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	query := accountSelect + fmt.Sprintf(` WHERE %s = $1`, accountTable.ID)

	found, err := scanAccount(repository.pool.QueryRow(context, query, id), false)
	if err != nil {
		return nil, dberr.Wrap(err, "Account", "postgres_account_repo_find_by_id_failed")
	}

	if err := repository.attachRoles(context, found); err != nil {
		return nil, err
	}
	return found, nil
}

// FindByIDWithSession retrieves an account, its roles and the session digest.
func (repository *PostgresAccountRepository) FindByIDWithSession(context context.Context, id string) (*Account, error) {
	query := accountWithSessionSelect + fmt.Sprintf(` WHERE %s = $1`, accountTable.ID)

	found, err := scanAccount(repository.pool.QueryRow(context, query, id), true)
	if err != nil {
		return nil, dberr.Wrap(err, "Account", "postgres_account_repo_find_with_session_failed")
	}

	if err := repository.attachRoles(context, found); err != nil {
		return nil, err
	}
	return found, nil
}

/*
ReplaceSession overwrites the embedded session regardless of its current value.

Returns:
  - error: apperr.NotFound if the account row does not exist
*/
func (repository *PostgresAccountRepository) ReplaceSession(context context.Context, id string, next ActiveSession) error {
	query := fmt.Sprintf(`UPDATE %s SET %s, %s = NOW() WHERE %s = $1`,
		accountTable.Table, sessionAssignments, accountTable.UpdatedAt, accountTable.ID)

	tag, err := repository.pool.Exec(context, query, sessionArgs(id, next)...)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_replace_session_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

/*
SwapSession overwrites the session only when the stored digest still equals expectedHash.

Description: The WHERE clause makes the comparison and the write one atomic
statement, so two concurrent rotations of the same session cannot both succeed.

Returns:
  - bool: true if the row was updated
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) SwapSession(context context.Context, id, expectedHash string, next ActiveSession) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s, %s = NOW() WHERE %s = $1 AND %s = $8`,
		accountTable.Table, sessionAssignments, accountTable.UpdatedAt, accountTable.ID, accountTable.SessionTokenHash)

	tag, err := repository.pool.Exec(context, query, append(sessionArgs(id, next), expectedHash)...)
	if err != nil {
		return false, fmt.Errorf("postgres_account_repo_swap_session_failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearSession nulls the session block. Missing accounts and empty sessions are no-ops.
func (repository *PostgresAccountRepository) ClearSession(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NULL, %s = NULL, %s = NULL, %s = NULL, %s = NULL, %s = NULL, %s = NOW() WHERE %s = $1`,
		accountTable.Table,
		accountTable.SessionTokenHash, accountTable.SessionIPAddress, accountTable.SessionUserAgent,
		accountTable.SessionIssuedAt, accountTable.SessionExpiresAt, accountTable.SessionRotatedAt,
		accountTable.UpdatedAt, accountTable.ID)

	if _, err := repository.pool.Exec(context, query, id); err != nil {
		return fmt.Errorf("postgres_account_repo_clear_session_failed: %w", err)
	}
	return nil
}

/*
UpdatePassword replaces the password hash and lifts any pending password-change flag.

Parameters:
  - context: context.Context
  - id: string
  - passwordHash: string

Returns:
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, id, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = FALSE, %s = NOW() WHERE %s = $1`,
		accountTable.Table, accountTable.Password, accountTable.MustChangePassword, accountTable.UpdatedAt, accountTable.ID)

	tag, err := repository.pool.Exec(context, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

// TouchLastLogin records the time of a successful login.
func (repository *PostgresAccountRepository) TouchLastLogin(context context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`, accountTable.Table, accountTable.LastLoginAt, accountTable.ID)

	if _, err := repository.pool.Exec(context, query, id, at); err != nil {
		return fmt.Errorf("postgres_account_repo_touch_last_login_failed: %w", err)
	}
	return nil
}

/*
Create persists a new account and its ordered role assignments in one transaction.

Returns:
  - error: apperr.Conflict on duplicate username/email, or execution errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, created *Account) error {
	insertAccount := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		accountTable.Table,
		accountTable.ID, accountTable.Username, accountTable.Email, accountTable.Password,
		accountTable.Status, accountTable.MustChangePassword, accountTable.CreatedAt, accountTable.UpdatedAt)

	insertAssignment := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)`,
		assignmentTable.Table, assignmentTable.AccountID, assignmentTable.RoleID, assignmentTable.Position)

	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = created.CreatedAt

	err := pgx.BeginFunc(context, repository.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(context, insertAccount,
			created.ID,
			created.Username,
			created.Email,
			created.PasswordHash,
			string(created.Status),
			created.MustChangePassword,
			created.CreatedAt,
			created.UpdatedAt,
		); err != nil {
			return err
		}

		for position, assigned := range created.Roles {
			if _, err := tx.Exec(context, insertAssignment, created.ID, assigned.ID, position); err != nil {
				return err
			}
		}
		return nil
	})

	return dberr.Wrap(err, "Account", "postgres_account_repo_create_failed")
}

// attachRoles loads the ordered role assignments of target.
func (repository *PostgresAccountRepository) attachRoles(context context.Context, target *Account) error {
	rows, err := repository.pool.Query(context, rolesByAccountQuery, target.ID)
	if err != nil {
		return dberr.Wrap(err, "Role", "postgres_account_repo_roles_failed")
	}

	roles, err := pgx.CollectRows(rows, scanRole)
	if err != nil {
		return dberr.Wrap(err, "Role", "postgres_account_repo_roles_scan_failed")
	}

	target.Roles = roles
	return nil
}

// # Role Repository

// PostgresRoleRepository implements [RoleStore] using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of the RoleStore.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

var roleSelect = fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(roleTable.Columns(), ", "), roleTable.Table)

// FindDefault returns the roles auto-assigned at registration, ordered by slug.
func (repository *PostgresRoleRepository) FindDefault(context context.Context) ([]Role, error) {
	query := roleSelect + fmt.Sprintf(` WHERE %s = TRUE ORDER BY %s`, roleTable.IsDefault, roleTable.Slug)

	rows, err := repository.pool.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "Role", "postgres_role_repo_find_default_failed")
	}

	roles, err := pgx.CollectRows(rows, scanRole)
	if err != nil {
		return nil, dberr.Wrap(err, "Role", "postgres_role_repo_find_default_scan_failed")
	}
	return roles, nil
}

// FindBySlugs returns the roles matching slugs in the order requested.
func (repository *PostgresRoleRepository) FindBySlugs(context context.Context, slugs []string) ([]Role, error) {
	if len(slugs) == 0 {
		return []Role{}, nil
	}

	query := roleSelect + fmt.Sprintf(` WHERE %s = ANY($1::text[]) ORDER BY array_position($1::text[], %s)`, roleTable.Slug, roleTable.Slug)

	rows, err := repository.pool.Query(context, query, slugs)
	if err != nil {
		return nil, dberr.Wrap(err, "Role", "postgres_role_repo_find_by_slugs_failed")
	}

	roles, err := pgx.CollectRows(rows, scanRole)
	if err != nil {
		return nil, dberr.Wrap(err, "Role", "postgres_role_repo_find_by_slugs_scan_failed")
	}
	return roles, nil
}

// # Row Mapping

func scanAccount(row pgx.Row, withSession bool) (*Account, error) {
	found := &Account{}
	var status string

	destinations := []any{
		&found.ID,
		&found.Username,
		&found.Email,
		&found.PasswordHash,
		&status,
		&found.MustChangePassword,
		&found.LastLoginAt,
		&found.CreatedAt,
		&found.UpdatedAt,
	}

	var (
		tokenHash, ipAddress, userAgent   *string
		issuedAt, expiresAt, lastRotation *time.Time
	)
	if withSession {
		destinations = append(destinations, &tokenHash, &ipAddress, &userAgent, &issuedAt, &expiresAt, &lastRotation)
	}

	if err := row.Scan(destinations...); err != nil {
		return nil, err
	}

	found.Status = AccountStatus(status)

	if tokenHash != nil && expiresAt != nil {
		found.Session = &ActiveSession{
			TokenHash:     *tokenHash,
			IPAddress:     pointer.Val(ipAddress),
			UserAgent:     pointer.Val(userAgent),
			IssuedAt:      pointer.Val(issuedAt),
			ExpiresAt:     *expiresAt,
			LastRotatedAt: pointer.Val(lastRotation),
		}
	}

	return found, nil
}

func scanRole(row pgx.CollectableRow) (Role, error) {
	var scanned Role
	var status string
	err := row.Scan(
		&scanned.ID,
		&scanned.Slug,
		&scanned.Name,
		&scanned.Permissions,
		&status,
		&scanned.IsSystem,
		&scanned.IsDefault,
	)
	scanned.Status = RoleStatus(status)
	return scanned, err
}

// sessionArgs returns $1..$7 for the session assignment fragment.
func sessionArgs(id string, next ActiveSession) []any {
	return []any{
		id,
		next.TokenHash,
		next.IPAddress,
		next.UserAgent,
		next.IssuedAt,
		next.ExpiresAt,
		next.LastRotatedAt,
	}
}
