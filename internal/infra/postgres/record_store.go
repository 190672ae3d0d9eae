package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"counseling-intake/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// RecordStore keeps each respondent as a JSONB document; scores are merged in place per instrument.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

func (s *RecordStore) CreateRespondent(ctx context.Context, r domain.Respondent) error {
	if r.Scores == nil {
		r.Scores = map[string]domain.Score{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal respondent: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO respondents (id, counselor_name, created_at, data) VALUES ($1, $2, $3, $4::jsonb)`,
		r.ID, r.CounselorName, r.DateCompleted, string(data))
	if err != nil {
		return fmt.Errorf("insert respondent: %w", err)
	}
	return nil
}

func (s *RecordStore) GetRespondent(ctx context.Context, id string) (domain.Respondent, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM respondents WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Respondent{}, fmt.Errorf("%w: %s", domain.ErrRespondentNotFound, id)
	}
	if err != nil {
		return domain.Respondent{}, fmt.Errorf("load respondent: %w", err)
	}
	return decode(raw)
}

func (s *RecordStore) SaveScore(ctx context.Context, respondentID string, score domain.Score) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE respondents
		SET data = jsonb_set(data, '{scores}',
			COALESCE(data->'scores', '{}'::jsonb) || jsonb_build_object($2::text, $3::jsonb))
		WHERE id = $1`,
		respondentID, score.InstrumentID, string(data))
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRespondentNotFound, respondentID)
	}
	return nil
}

func (s *RecordStore) ListRespondents(ctx context.Context) ([]domain.Respondent, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM respondents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list respondents: %w", err)
	}
	defer rows.Close()

	var out []domain.Respondent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan respondent: %w", err)
		}
		r, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RecordStore) ClearAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM respondents`); err != nil {
		return fmt.Errorf("clear respondents: %w", err)
	}
	return nil
}

func decode(raw []byte) (domain.Respondent, error) {
	var r domain.Respondent
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Respondent{}, fmt.Errorf("unmarshal respondent: %w", err)
	}
	if r.Scores == nil {
		r.Scores = map[string]domain.Score{}
	}
	return r, nil
}
