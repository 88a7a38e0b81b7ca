package model

import "regexp"

// Option codes a participant may answer with. Comparison is case-sensitive.
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

func ValidOption(s string) bool {
	switch s {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether s can be embedded in a Fast Store key and parsed back.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// Question is one row of a contest's answer key, as read from the durable store.
type Question struct {
	ID             string `json:"id"`
	ContestID      string `json:"contestId"`
	SrNo           int    `json:"srNo"`
	Question       string `json:"question"`
	CorrectOption  string `json:"correctOption"`
	Points         int    `json:"points"`
	AvgTimeMinutes int    `json:"avgTimeMinutes"`
}

// PublicQuestion is what gets dealt to a participant. It never carries the
// correct option.
type PublicQuestion struct {
	ID             string `json:"id"`
	SrNo           int    `json:"srNo"`
	Question       string `json:"question"`
	Points         int    `json:"points"`
	AvgTimeMinutes int    `json:"avgTimeMinutes"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:             q.ID,
		SrNo:           q.SrNo,
		Question:       q.Question,
		Points:         q.Points,
		AvgTimeMinutes: q.AvgTimeMinutes,
	}
}

// AnswerKey is the per-contest cached copy of every question.
type AnswerKey struct {
	ContestID string     `json:"contestId"`
	Questions []Question `json:"questions"`
}

func (k *AnswerKey) Find(questionID string) (Question, bool) {
	for _, q := range k.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}
