package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrack-hq/caretrack/platform/go/tenant"
)

// Row is a generic record as returned by the scoped data access layer.
type Row map[string]any

// Op enumerates the comparison operators a caller predicate may use.
type Op string

const (
	OpEq      Op = "="
	OpNeq     Op = "<>"
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type cond struct {
	column string
	op     Op
	value  any
}

// Predicate is a structured conjunction of column comparisons. It is rendered
// with bind placeholders and wrapped inside the mandatory tenant clause, so a
// caller-supplied predicate can only narrow a query, never widen it past the
// tenant boundary.
type Predicate struct {
	conds []cond
}

// Where starts a predicate with a single condition.
func Where(column string, op Op, value any) Predicate {
	return Predicate{}.And(column, op, value)
}

// And appends a condition; all conditions are conjoined.
func (p Predicate) And(column string, op Op, value any) Predicate {
	p.conds = append(append([]cond(nil), p.conds...), cond{column: column, op: op, value: value})
	return p
}

// render produces the SQL fragment and bind args, numbering placeholders from argStart.
func (p Predicate) render(argStart int) (string, []any, error) {
	if len(p.conds) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(p.conds))
	args := make([]any, 0, len(p.conds))
	n := argStart

	for _, c := range p.conds {
		if !columnPattern.MatchString(c.column) {
			return "", nil, fmt.Errorf("invalid predicate column %q", c.column)
		}
		switch c.op {
		case OpIsNull, OpNotNull:
			parts = append(parts, fmt.Sprintf("%s %s", pgx.Identifier{c.column}.Sanitize(), c.op))
		case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
			parts = append(parts, fmt.Sprintf("%s %s $%d", pgx.Identifier{c.column}.Sanitize(), c.op, n))
			args = append(args, c.value)
			n++
		default:
			return "", nil, fmt.Errorf("unsupported predicate operator %q", c.op)
		}
	}

	return strings.Join(parts, " AND "), args, nil
}

// ScopedDB provides the tenant-scoped access primitives for tenant-owned
// tables. Every method requires a tenant.Scope parameter; there is no entry
// point that touches a registered table without one. Tables must be registered
// up front and carry the id/tenant_id/deleted_at column convention.
type ScopedDB struct {
	pool   *pgxpool.Pool
	tables map[string]string // table name -> sanitized identifier
}

// NewScopedDB registers the given tables and returns the scoped access layer.
func NewScopedDB(pool *pgxpool.Pool, tables ...string) (*ScopedDB, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if len(tables) == 0 {
		return nil, errors.New("at least one table must be registered")
	}

	registry := make(map[string]string, len(tables))
	for _, name := range tables {
		if !columnPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
		registry[name] = pgx.Identifier{name}.Sanitize()
	}

	return &ScopedDB{pool: pool, tables: registry}, nil
}

func (db *ScopedDB) ident(table string) (string, error) {
	ident, ok := db.tables[table]
	if !ok {
		return "", fmt.Errorf("table %q is not registered for scoped access", table)
	}
	return ident, nil
}

// FindByID returns the row only when it exists under the scope's tenant and is
// not soft-deleted. Wrong tenant, soft-deleted, and nonexistent are all ErrNotFound.
func (db *ScopedDB) FindByID(ctx context.Context, scope tenant.Scope, table string, id uuid.UUID) (Row, error) {
	ident, err := db.ident(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, ident)
	rows, err := db.pool.Query(ctx, query, id, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("find %s by id: %w", table, err)
	}

	records, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s row: %w", table, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Query runs the caller predicate conjoined with the mandatory tenant clause.
func (db *ScopedDB) Query(ctx context.Context, scope tenant.Scope, table string, pred Predicate) ([]Row, error) {
	ident, err := db.ident(table)
	if err != nil {
		return nil, err
	}

	clause, callerArgs, err := pred.render(2)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE (tenant_id = $1 AND deleted_at IS NULL)`, ident)
	if clause != "" {
		query += fmt.Sprintf(" AND (%s)", clause)
	}

	args := append([]any{scope.TenantID}, callerArgs...)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	records, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s rows: %w", table, err)
	}
	return records, nil
}

// Insert persists a new row under the scope's tenant. The tenant_id field is
// forced from the scope, overwriting any caller-supplied value; a fresh id is
// assigned when absent.
func (db *ScopedDB) Insert(ctx context.Context, scope tenant.Scope, table string, fields Row) (Row, error) {
	ident, err := db.ident(table)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.New("insert fields are required")
	}

	record := make(Row, len(fields)+2)
	for k, v := range fields {
		record[k] = v
	}
	record["tenant_id"] = scope.TenantID
	if _, ok := record["id"]; !ok {
		record["id"] = uuid.New()
	}

	columns := make([]string, 0, len(record))
	for column := range record {
		if !columnPattern.MatchString(column) {
			return nil, fmt.Errorf("invalid column %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	idents := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for i, column := range columns {
		idents = append(idents, pgx.Identifier{column}.Sanitize())
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, record[column])
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		ident, strings.Join(idents, ", "), strings.Join(placeholders, ", "))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	records, err := collectRows(rows)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		// A foreign key violation means the scope's tenant (or a referenced
		// row) does not exist. Reported as ErrNotFound so inserting under an
		// absent tenant reads the same as reading from one.
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan inserted %s row: %w", table, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return records[0], nil
}

// Update applies the field set to the row identified by id under the scope's
// tenant. Zero rows updated is ErrNotFound, never a permission error, so the
// caller cannot distinguish "wrong tenant" from "does not exist".
func (db *ScopedDB) Update(ctx context.Context, scope tenant.Scope, table string, id uuid.UUID, fields Row) (Row, error) {
	ident, err := db.ident(table)
	if err != nil {
		return nil, err
	}

	assignable := make(Row, len(fields))
	for k, v := range fields {
		// Identity and scoping columns are never assignable through updates.
		if k == "id" || k == "tenant_id" || k == "deleted_at" {
			continue
		}
		assignable[k] = v
	}
	if len(assignable) == 0 {
		return nil, errors.New("update fields are required")
	}

	columns := make([]string, 0, len(assignable))
	for column := range assignable {
		if !columnPattern.MatchString(column) {
			return nil, fmt.Errorf("invalid column %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+2)
	for i, column := range columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{column}.Sanitize(), i+1))
		args = append(args, assignable[column])
	}
	args = append(args, id, scope.TenantID)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND tenant_id = $%d AND deleted_at IS NULL RETURNING *`,
		ident, strings.Join(sets, ", "), len(columns)+1, len(columns)+2)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}

	records, err := collectRows(rows)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("scan updated %s row: %w", table, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// SoftDelete stamps deleted_at on the row. Idempotent: deleting an absent or
// already-deleted row succeeds and reports false for "newly deleted".
func (db *ScopedDB) SoftDelete(ctx context.Context, scope tenant.Scope, table string, id uuid.UUID) (bool, error) {
	ident, err := db.ident(table)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %s SET deleted_at = NOW() WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, ident)
	tag, err := db.pool.Exec(ctx, query, id, scope.TenantID)
	if err != nil {
		return false, fmt.Errorf("soft delete from %s: %w", table, err)
	}

	return tag.RowsAffected() > 0, nil
}

// collectRows drains the result set into generic rows keyed by column name.
func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []Row

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(Row, len(fields))
		for i, fd := range fields {
			record[string(fd.Name)] = values[i]
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
