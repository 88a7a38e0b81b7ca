package model

import "time"

// SubmissionRecord is the Fast Store copy of one answer, keyed by
// (contest, user, question). It is created once and never overwritten.
type SubmissionRecord struct {
	Answer        string    `json:"answer"`
	PointsAwarded int       `json:"pointsAwarded"`
	IsCorrect     bool      `json:"isCorrect"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Submission is the durable projection written by the flush worker.
type Submission struct {
	ContestID      string    `json:"contestId"`
	UserID         string    `json:"userId"`
	QuestionID     string    `json:"questionId"`
	SelectedOption string    `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	SubmittedAt    time.Time `json:"submittedAt"`
}
