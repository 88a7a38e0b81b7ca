package repository

import (
	"context"
	"database/sql"
	"fmt"

	"live_contest/internal/domain/model"
)

// QuestionRepository is the read side of contest content the live core needs.
type QuestionRepository interface {
	ListByContest(ctx context.Context, contestID string) ([]model.Question, error)
}

type pgQuestionRepository struct {
	db *sql.DB
}

func NewPgQuestionRepository(db *sql.DB) QuestionRepository {
	return &pgQuestionRepository{db: db}
}

func (r *pgQuestionRepository) ListByContest(ctx context.Context, contestID string) ([]model.Question, error) {
	query := `SELECT id, contest_id, sr_no, question, correct_option, points, avg_time_minutes
	          FROM contest_questions WHERE contest_id = $1 ORDER BY sr_no ASC`

	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgQuestionRepository.ListByContest: %w", err)
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ContestID, &q.SrNo, &q.Question, &q.CorrectOption, &q.Points, &q.AvgTimeMinutes); err != nil {
			return nil, fmt.Errorf("pgQuestionRepository.ListByContest scan: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgQuestionRepository.ListByContest rows: %w", err)
	}
	return questions, nil
}
