package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Message
		err  error
	}{
		{"init", `{"type":"init_contest","contestId":"C1"}`, InitContest{ContestID: "C1"}, nil},
		{"join", `{"type":"join_contest","contestId":"C1"}`, JoinContest{ContestID: "C1"}, nil},
		{"submit", `{"type":"submit_answer","contestId":"C1","questionId":"q1","answer":"D"}`, SubmitAnswer{ContestID: "C1", QuestionID: "q1", Answer: "D"}, nil},
		{"leave", `{"type":"leave_contest"}`, LeaveContest{}, nil},
		{"extra fields ignored", `{"type":"leave_contest","contestId":"C1","foo":1}`, LeaveContest{}, nil},
		{"not json", `hello`, nil, ErrInvalidMessage},
		{"no type", `{"contestId":"C1"}`, nil, ErrInvalidMessage},
		{"missing contest", `{"type":"init_contest"}`, nil, ErrInvalidMessage},
		{"contest with colon", `{"type":"join_contest","contestId":"C1:x"}`, nil, ErrInvalidMessage},
		{"missing question", `{"type":"submit_answer","contestId":"C1","answer":"A"}`, nil, ErrInvalidMessage},
		{"lowercase answer", `{"type":"submit_answer","contestId":"C1","questionId":"q1","answer":"a"}`, nil, ErrInvalidMessage},
		{"out of range answer", `{"type":"submit_answer","contestId":"C1","questionId":"q1","answer":"E"}`, nil, ErrInvalidMessage},
		{"wrong field type", `{"type":"join_contest","contestId":7}`, nil, ErrInvalidMessage},
		{"unknown type", `{"type":"chat","contestId":"C1"}`, nil, ErrUnknownType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMessage([]byte(tc.raw))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
