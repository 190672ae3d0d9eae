// Package sqlite stores respondent records in a single SQLite file for deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"counseling-intake/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS respondents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    roll_number TEXT NOT NULL,
    phone_number TEXT NOT NULL,
    counselor_name TEXT NOT NULL,
    signature_date TEXT NOT NULL,
    date_completed TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
    respondent_id TEXT NOT NULL,
    instrument_id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (respondent_id, instrument_id),
    FOREIGN KEY (respondent_id) REFERENCES respondents(id) ON DELETE CASCADE
);
`

type RecordStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" gives a private in-memory database.
func Open(path string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) CreateRespondent(ctx context.Context, r domain.Respondent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO respondents (id, name, roll_number, phone_number, counselor_name, signature_date, date_completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.RollNumber, r.PhoneNumber, r.CounselorName, r.SignatureDate,
		r.DateCompleted.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert respondent: %w", err)
	}
	for _, score := range r.Scores {
		if err := s.SaveScore(ctx, r.ID, score); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordStore) GetRespondent(ctx context.Context, id string) (domain.Respondent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, roll_number, phone_number, counselor_name, signature_date, date_completed
		 FROM respondents WHERE id = ?`, id)
	r, err := scanRespondent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Respondent{}, fmt.Errorf("%w: %s", domain.ErrRespondentNotFound, id)
	}
	if err != nil {
		return domain.Respondent{}, err
	}
	if err := s.loadScores(ctx, map[string]*domain.Respondent{r.ID: &r}, `WHERE respondent_id = ?`, id); err != nil {
		return domain.Respondent{}, err
	}
	return r, nil
}

func (s *RecordStore) SaveScore(ctx context.Context, respondentID string, score domain.Score) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM respondents WHERE id = ?`, respondentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup respondent: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRespondentNotFound, respondentID)
	}

	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scores (respondent_id, instrument_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (respondent_id, instrument_id) DO UPDATE SET data = excluded.data`,
		respondentID, score.InstrumentID, string(data))
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (s *RecordStore) ListRespondents(ctx context.Context) ([]domain.Respondent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, roll_number, phone_number, counselor_name, signature_date, date_completed
		 FROM respondents ORDER BY date_completed DESC`)
	if err != nil {
		return nil, fmt.Errorf("list respondents: %w", err)
	}

	var list []*domain.Respondent
	byID := make(map[string]*domain.Respondent)
	for rows.Next() {
		r, err := scanRespondent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.loadScores(ctx, byID, ``); err != nil {
		return nil, err
	}
	out := make([]domain.Respondent, 0, len(list))
	for _, r := range list {
		out = append(out, *r)
	}
	return out, nil
}

func (s *RecordStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM scores`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM respondents`); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRespondent(row scanner) (domain.Respondent, error) {
	var r domain.Respondent
	var completed string
	if err := row.Scan(&r.ID, &r.Name, &r.RollNumber, &r.PhoneNumber, &r.CounselorName, &r.SignatureDate, &completed); err != nil {
		return domain.Respondent{}, err
	}
	r.DateCompleted, _ = time.Parse(time.RFC3339Nano, completed)
	r.Scores = map[string]domain.Score{}
	return r, nil
}

// loadScores attaches stored scores to the respondents in byID.
func (s *RecordStore) loadScores(ctx context.Context, byID map[string]*domain.Respondent, where string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, `SELECT respondent_id, instrument_id, data FROM scores `+where, args...)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var respondentID, instrumentID, data string
		if err := rows.Scan(&respondentID, &instrumentID, &data); err != nil {
			return err
		}
		r, ok := byID[respondentID]
		if !ok {
			continue
		}
		var score domain.Score
		if err := json.Unmarshal([]byte(data), &score); err != nil {
			return fmt.Errorf("unmarshal score %s/%s: %w", respondentID, instrumentID, err)
		}
		r.Scores[instrumentID] = score
	}
	return rows.Err()
}
