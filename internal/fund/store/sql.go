package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zargusta/fundtracker/internal/database"
	"github.com/zargusta/fundtracker/internal/fund"
)

const (
	historicalDoc = "historical"
	summaryDoc    = "summary"
)

// SQLStore keeps the same documents as FileStore in the fund_documents table and
// the audit trail in audit_log. Both Postgres and SQLite are supported.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != database.DriverPostgres {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func (s *SQLStore) Load(ctx context.Context) (*fund.State, error) {
	var body string

	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM fund_documents WHERE name = ?`), historicalDoc).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fund.NewState(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("loading fund document: %w", err)
	}

	return decodeState([]byte(body))
}

const upsertDocument = `
	INSERT INTO fund_documents (name, body, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
`

// Save writes the state and its summary in one transaction.
func (s *SQLStore) Save(ctx context.Context, state *fund.State, summary *fund.Summary) (err error) {
	body, err := encodeState(state)
	if err != nil {
		return err
	}

	summaryBody, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := s.timestamp(time.Now())
	query := s.rebind(upsertDocument)

	if _, err = tx.ExecContext(ctx, query, historicalDoc, string(body), now); err != nil {
		return fmt.Errorf("saving fund document: %w", err)
	}

	if _, err = tx.ExecContext(ctx, query, summaryDoc, string(summaryBody), now); err != nil {
		return fmt.Errorf("saving fund summary: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SQLStore) AppendAudit(ctx context.Context, entry fund.AuditEntry) error {
	line, err := encodeAudit(entry)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO audit_log (ts, action, body) VALUES (?, ?, ?)`),
		s.timestamp(entry.Timestamp), entry.Action, string(line),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

func (s *SQLStore) ReadAudit(ctx context.Context, limit int) ([]fund.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT body FROM audit_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []fund.AuditEntry

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entries = append(entries, decodeAudit([]byte(body)))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log: %w", err)
	}

	return entries, nil
}

// timestamp returns a driver-friendly value: SQLite stores TEXT columns.
func (s *SQLStore) timestamp(t time.Time) any {
	if s.driver == database.DriverSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}

	return t.UTC()
}
