package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"live_contest/internal/domain/model"
)

type MessageType string

const (
	TypeInitContest  MessageType = "init_contest"
	TypeJoinContest  MessageType = "join_contest"
	TypeSubmitAnswer MessageType = "submit_answer"
	TypeLeaveContest MessageType = "leave_contest"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownType    = errors.New("unhandled message type")
)

// Message is one of InitContest, JoinContest, SubmitAnswer or LeaveContest.
type Message interface {
	Type() MessageType
}

type InitContest struct{ ContestID string }

type JoinContest struct{ ContestID string }

type SubmitAnswer struct {
	ContestID  string
	QuestionID string
	Answer     string
}

type LeaveContest struct{}

func (InitContest) Type() MessageType  { return TypeInitContest }
func (JoinContest) Type() MessageType  { return TypeJoinContest }
func (SubmitAnswer) Type() MessageType { return TypeSubmitAnswer }
func (LeaveContest) Type() MessageType { return TypeLeaveContest }

type envelope struct {
	Type       MessageType `json:"type"`
	ContestID  string      `json:"contestId"`
	QuestionID string      `json:"questionId"`
	Answer     string      `json:"answer"`
}

// ParseMessage decodes a client frame. Errors wrap ErrInvalidMessage for a
// malformed body and ErrUnknownType for a well-formed frame of a type the
// protocol does not define.
func ParseMessage(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	case TypeInitContest:
		if err := requireID("contestId", env.ContestID); err != nil {
			return nil, err
		}
		return InitContest{ContestID: env.ContestID}, nil
	case TypeJoinContest:
		if err := requireID("contestId", env.ContestID); err != nil {
			return nil, err
		}
		return JoinContest{ContestID: env.ContestID}, nil
	case TypeSubmitAnswer:
		if err := requireID("contestId", env.ContestID); err != nil {
			return nil, err
		}
		if err := requireID("questionId", env.QuestionID); err != nil {
			return nil, err
		}
		if !model.ValidOption(env.Answer) {
			return nil, fmt.Errorf("%w: answer must be one of A, B, C, D", ErrInvalidMessage)
		}
		return SubmitAnswer{ContestID: env.ContestID, QuestionID: env.QuestionID, Answer: env.Answer}, nil
	case TypeLeaveContest:
		return LeaveContest{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func requireID(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidMessage, field)
	}
	if !model.ValidID(v) {
		return fmt.Errorf("%w: malformed %s", ErrInvalidMessage, field)
	}
	return nil
}
