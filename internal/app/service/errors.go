package service

import (
	"fmt"

	"live_contest/internal/common"
)

// Outcomes of the live protocol. Each wraps a common sentinel so the
// transport layers can map them with errors.Is.
var (
	ErrContestAlreadyInitialized = fmt.Errorf("contest already initialized: %w", common.ErrConflict)
	ErrNoQuestions               = fmt.Errorf("no questions found for contest: %w", common.ErrNotFound)
	ErrSubmissionExists          = fmt.Errorf("submission already exist: %w", common.ErrConflict)
	ErrNotInContest              = fmt.Errorf("join a contest first: %w", common.ErrBadRequest)
	ErrContestMismatch           = fmt.Errorf("contest mismatch: %w", common.ErrBadRequest)
	ErrQuestionNotFound          = fmt.Errorf("question not found: %w", common.ErrNotFound)
	ErrInvalidID                 = fmt.Errorf("invalid identifier: %w", common.ErrValidation)
	ErrInvalidAnswer             = fmt.Errorf("invalid answer option: %w", common.ErrValidation)
)
