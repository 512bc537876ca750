package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordRepoPG stores record and transcript documents as jsonb rows keyed by
// the normalized username. Upserts make concurrent writers to the same
// username last-write-wins without torn documents.
type RecordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepoPG(pool *pgxpool.Pool) *RecordRepoPG {
	return &RecordRepoPG{pool: pool}
}

// EnsureSchema creates the two tables if they do not exist yet.
func (r *RecordRepoPG) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS medical_records (
	username_key TEXT PRIMARY KEY,
	doc          JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS chat_transcripts (
	username_key TEXT PRIMARY KEY,
	entries      JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *RecordRepoPG) Load(ctx context.Context, username string) (*MedicalRecord, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		"SELECT doc FROM medical_records WHERE username_key = $1", Key(username)).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	var rec MedicalRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.Username == "" {
		rec.Username = username
	}
	rec.Normalize()
	return &rec, nil
}

func (r *RecordRepoPG) Save(ctx context.Context, rec *MedicalRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO medical_records (username_key, doc, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (username_key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		Key(rec.Username), doc)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (r *RecordRepoPG) Delete(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM medical_records WHERE username_key = $1", Key(username))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	_, _ = r.pool.Exec(ctx, "DELETE FROM chat_transcripts WHERE username_key = $1", Key(username))
	return nil
}

func (r *RecordRepoPG) SaveTranscript(ctx context.Context, username string, entries []TranscriptEntry) error {
	if entries == nil {
		entries = []TranscriptEntry{}
	}
	doc, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO chat_transcripts (username_key, entries, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (username_key) DO UPDATE SET entries = EXCLUDED.entries, updated_at = now()`,
		Key(username), doc)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (r *RecordRepoPG) LoadTranscript(ctx context.Context, username string) ([]TranscriptEntry, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		"SELECT entries FROM chat_transcripts WHERE username_key = $1", Key(username)).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	var entries []TranscriptEntry
	if err := json.Unmarshal(doc, &entries); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return entries, nil
}
