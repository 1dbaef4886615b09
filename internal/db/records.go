package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
)

// Record is an opaque stored envelope. The database never looks inside Data.
type Record struct {
	ID        string
	Name      string
	Type      string
	Data      envelope.Envelope
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const recordColumns = `id, name, type, data, metadata, created_at, updated_at`

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

var errNilHandle = errors.New("database handle is nil")

func (d *DB) ready() error {
	if d == nil || d.sql == nil {
		return errNilHandle
	}
	return nil
}

// Insert stores rec under a new random ID and returns that ID. Any ID or
// timestamps already set on rec are ignored.
func (d *DB) Insert(ctx context.Context, rec Record) (string, error) {
	if err := d.ready(); err != nil {
		return "", err
	}
	if rec.Name == "" {
		return "", fmt.Errorf("record name is required")
	}
	if rec.Type == "" {
		return "", fmt.Errorf("record type is required")
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return "", fmt.Errorf("encode record data: %w", err)
	}
	var meta sql.NullString
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode record metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	id := uuid.NewString()
	ts := now()
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Name, rec.Type, string(data), meta, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		r                    Record
		data                 string
		meta                 sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Type, &data, &meta, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
		return nil, fmt.Errorf("decode record %s data: %w", r.ID, err)
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode record %s metadata: %w", r.ID, err)
		}
	}

	var err error
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse record %s created_at: %w", r.ID, err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse record %s updated_at: %w", r.ID, err)
	}
	return &r, nil
}

// Get returns the record with the given ID, or sql.ErrNoRows.
func (d *DB) Get(ctx context.Context, id string) (*Record, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}

	row := d.sql.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("select record: %w", err)
	}
	return r, nil
}

// ListByType returns every record of the given type, oldest first. An empty
// type lists all records.
func (d *DB) ListByType(ctx context.Context, typ string) ([]Record, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	var args []any
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY created_at, name`

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return results, nil
}

// UpdateData replaces the envelope stored under id, for example after
// re-encrypting it with a new password. It returns sql.ErrNoRows if the
// record does not exist.
func (d *DB) UpdateData(ctx context.Context, id string, env envelope.Envelope) error {
	if err := d.ready(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode record data: %w", err)
	}
	res, err := d.sql.ExecContext(ctx,
		`UPDATE records SET data = ?, updated_at = ? WHERE id = ?`,
		string(data), now(), id,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes the record with the given ID. It returns sql.ErrNoRows if
// nothing was deleted.
func (d *DB) Delete(ctx context.Context, id string) error {
	if err := d.ready(); err != nil {
		return err
	}

	res, err := d.sql.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
