package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"live_contest/internal/common"
	"live_contest/internal/domain/model"
)

// SubmissionRepository is the durable submission sink.
type SubmissionRepository interface {
	// InsertMany writes the rows, silently skipping any (contest, user,
	// question) triple that already exists. It returns the rows inserted.
	InsertMany(ctx context.Context, subs []model.Submission) (int64, error)
}

const submissionColumns = 6

// MaxInsertBatch is the most rows one InsertMany call can bind under the
// Postgres limit of 65535 parameters per statement.
const MaxInsertBatch = 65535 / submissionColumns

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) InsertMany(ctx context.Context, subs []model.Submission) (int64, error) {
	if len(subs) == 0 {
		return 0, nil
	}
	if len(subs) > MaxInsertBatch {
		return 0, fmt.Errorf("pgSubmissionRepository.InsertMany: %d rows exceeds %d per statement: %w", len(subs), MaxInsertBatch, common.ErrValidation)
	}

	var query strings.Builder
	query.WriteString(`INSERT INTO contest_submissions (contest_id, user_id, question_id, selected_option, is_correct, created_at) VALUES `)

	args := make([]interface{}, 0, len(subs)*submissionColumns)
	for i, s := range subs {
		if i > 0 {
			query.WriteString(", ")
		}
		base := i * submissionColumns
		fmt.Fprintf(&query, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, s.ContestID, s.UserID, s.QuestionID, s.SelectedOption, s.IsCorrect, s.SubmittedAt)
	}
	query.WriteString(" ON CONFLICT (contest_id, user_id, question_id) DO NOTHING")

	res, err := r.db.ExecContext(ctx, query.String(), args...)
	if err != nil {
		return 0, common.ClassifyPgError("pgSubmissionRepository.InsertMany", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.InsertMany rows affected: %w", err)
	}
	return n, nil
}
