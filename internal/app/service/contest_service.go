package service

import (
	"context"
	"fmt"
	"time"

	"live_contest/internal/app/livestore"
	"live_contest/internal/domain/model"
	"live_contest/internal/domain/repository"
	"live_contest/internal/platform/metrics"

	"github.com/sirupsen/logrus"
)

// ContestService implements init, join and submit against the Fast Store.
// It holds no per-participant state; sessions pass in who is asking.
type ContestService struct {
	questions   repository.QuestionRepository
	answerKeys  *livestore.AnswerKeyStore
	submissions *livestore.SubmissionStore
	leaderboard *LeaderboardService
	dealer      *Dealer
	boardSize   int
	now         func() time.Time
	log         logrus.FieldLogger
}

func NewContestService(
	questions repository.QuestionRepository,
	answerKeys *livestore.AnswerKeyStore,
	submissions *livestore.SubmissionStore,
	leaderboard *LeaderboardService,
	dealer *Dealer,
	boardSize int,
	log logrus.FieldLogger,
) *ContestService {
	return &ContestService{
		questions:   questions,
		answerKeys:  answerKeys,
		submissions: submissions,
		leaderboard: leaderboard,
		dealer:      dealer,
		boardSize:   boardSize,
		now:         time.Now,
		log:         log,
	}
}

// InitContest loads a contest's questions into the answer key cache and
// returns how many were cached.
func (s *ContestService) InitContest(ctx context.Context, contestID string) (int, error) {
	if !model.ValidID(contestID) {
		return 0, ErrInvalidID
	}
	exists, err := s.answerKeys.Exists(ctx, contestID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrContestAlreadyInitialized
	}

	key, err := s.fetchAnswerKey(ctx, contestID)
	if err != nil {
		return 0, err
	}
	created, err := s.answerKeys.PutIfAbsent(ctx, key)
	if err != nil {
		return 0, err
	}
	if !created {
		// another instance won the race between Exists and PutIfAbsent
		return 0, ErrContestAlreadyInitialized
	}
	s.log.WithFields(logrus.Fields{"contest_id": contestID, "questions": len(key.Questions)}).Info("Contest answer key cached")
	return len(key.Questions), nil
}

// JoinResult is what a participant sees after joining or rejoining.
type JoinResult struct {
	ContestID    string                   `json:"contestId"`
	Rejoined     bool                     `json:"-"`
	Score        int64                    `json:"score"`
	Leaderboard  []model.LeaderboardEntry `json:"leaderboard"`
	NextQuestion *model.PublicQuestion    `json:"nextQuestion"`
	Completed    bool                     `json:"completed"`
}

// JoinContest adds the participant to the contest leaderboard with a zero
// score, or reattaches them with their score intact if they already joined.
func (s *ContestService) JoinContest(ctx context.Context, userID, contestID string) (*JoinResult, error) {
	if !model.ValidID(contestID) || !model.ValidID(userID) {
		return nil, ErrInvalidID
	}
	key, err := s.answerKey(ctx, contestID)
	if err != nil {
		return nil, err
	}

	_, joined, err := s.leaderboard.ScoreOf(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	rejoined := joined
	if !joined {
		added, err := s.leaderboard.Join(ctx, contestID, userID)
		if err != nil {
			return nil, err
		}
		// a concurrent join from another connection got there first
		rejoined = !added
	}

	score, _, err := s.leaderboard.ScoreOf(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	board, err := s.leaderboard.TopN(ctx, contestID, s.boardSize)
	if err != nil {
		return nil, err
	}
	answered, err := s.submissions.Answered(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}

	res := &JoinResult{ContestID: contestID, Rejoined: rejoined, Score: score, Leaderboard: board}
	res.NextQuestion, res.Completed = s.deal(key, answered)
	return res, nil
}

// SubmitInput is one answer from a participant already in contestID.
type SubmitInput struct {
	ContestID  string
	UserID     string
	QuestionID string
	Answer     string
}

// SubmitResult carries the verdict and the next dealt question.
type SubmitResult struct {
	QuestionID    string                `json:"questionId"`
	IsCorrect     bool                  `json:"isCorrect"`
	PointsAwarded int                   `json:"pointsAwarded"`
	Score         int64                 `json:"score"`
	NextQuestion  *model.PublicQuestion `json:"nextQuestion"`
	Completed     bool                  `json:"completed"`
}

// SubmitAnswer records the participant's first answer to a question and
// credits the leaderboard if it is correct.
//
// A repeat submission for the same question returns ErrSubmissionExists
// together with a non-nil result holding the next question to answer.
func (s *ContestService) SubmitAnswer(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if !model.ValidID(in.ContestID) || !model.ValidID(in.UserID) || !model.ValidID(in.QuestionID) {
		return nil, ErrInvalidID
	}
	if !model.ValidOption(in.Answer) {
		return nil, ErrInvalidAnswer
	}
	logger := s.log.WithFields(logrus.Fields{"contest_id": in.ContestID, "user_id": in.UserID, "question_id": in.QuestionID})

	exists, err := s.submissions.Exists(ctx, in.ContestID, in.UserID, in.QuestionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.duplicate(ctx, in, logger)
	}

	key, err := s.answerKey(ctx, in.ContestID)
	if err != nil {
		return nil, err
	}
	q, ok := key.Find(in.QuestionID)
	if !ok {
		return nil, ErrQuestionNotFound
	}

	res := &SubmitResult{QuestionID: q.ID, IsCorrect: in.Answer == q.CorrectOption}
	if res.IsCorrect {
		res.PointsAwarded = q.Points
	}

	created, score, err := s.submissions.Record(ctx, in.ContestID, in.UserID, q.ID, model.SubmissionRecord{
		Answer:        in.Answer,
		PointsAwarded: res.PointsAwarded,
		IsCorrect:     res.IsCorrect,
		SubmittedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// lost a race with a concurrent submit for the same question
		return s.duplicate(ctx, in, logger)
	}
	res.Score = score
	if res.IsCorrect {
		metrics.SubmissionsTotal.WithLabelValues("correct").Inc()
	} else {
		metrics.SubmissionsTotal.WithLabelValues("incorrect").Inc()
	}

	answered, err := s.submissions.Answered(ctx, in.ContestID, in.UserID)
	if err != nil {
		return nil, err
	}
	res.NextQuestion, res.Completed = s.deal(key, answered)
	logger.WithFields(logrus.Fields{"correct": res.IsCorrect, "points": res.PointsAwarded}).Debug("Submission recorded")
	return res, nil
}

func (s *ContestService) duplicate(ctx context.Context, in SubmitInput, logger logrus.FieldLogger) (*SubmitResult, error) {
	metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
	logger.Debug("Duplicate submission rejected")

	key, err := s.answerKey(ctx, in.ContestID)
	if err != nil {
		return nil, err
	}
	answered, err := s.submissions.Answered(ctx, in.ContestID, in.UserID)
	if err != nil {
		return nil, err
	}
	score, _, err := s.leaderboard.ScoreOf(ctx, in.ContestID, in.UserID)
	if err != nil {
		return nil, err
	}
	res := &SubmitResult{QuestionID: in.QuestionID, Score: score}
	res.NextQuestion, res.Completed = s.deal(key, answered)
	return res, ErrSubmissionExists
}

func (s *ContestService) deal(key *model.AnswerKey, answered map[string]bool) (*model.PublicQuestion, bool) {
	q, ok := s.dealer.Deal(key, answered)
	if !ok {
		return nil, true
	}
	return &q, false
}

// answerKey reads the cached key, reloading it from the durable store on a miss.
func (s *ContestService) answerKey(ctx context.Context, contestID string) (*model.AnswerKey, error) {
	key, err := s.answerKeys.Get(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}

	key, err = s.fetchAnswerKey(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.answerKeys.PutIfAbsent(ctx, key); err != nil {
		// serving from the freshly loaded copy is still correct
		s.log.WithError(err).WithField("contest_id", contestID).Warn("Failed to cache answer key")
	}
	s.log.WithField("contest_id", contestID).Debug("Answer key reloaded on cache miss")
	return key, nil
}

func (s *ContestService) fetchAnswerKey(ctx context.Context, contestID string) (*model.AnswerKey, error) {
	qs, err := s.questions.ListByContest(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("loading questions for contest %s: %w", contestID, err)
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return &model.AnswerKey{ContestID: contestID, Questions: qs}, nil
}
