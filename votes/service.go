package votes

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge/schema"
	"github.com/surveyforge/surveyforge/surveys"
)

var (
	ErrAnswerTextRequired = errors.New("answer_text is required for text questions")
	ErrOptionRequired     = errors.New("option_id is required for choice questions")
)

// CacheInvalidator drops cached payloads that a committed vote made stale.
type CacheInvalidator interface {
	InvalidateSurvey(ctx context.Context, token string) error
	InvalidateAnalytics(ctx context.Context, surveyID int64) error
}

// Notifier is told about committed votes. Implementations must not block:
// ingestion fires and forgets.
type Notifier interface {
	NotifyVote(surveyID, questionID int64)
}

// Service is the vote ingestion pipeline: sanitize, resolve, dedup,
// validate, persist, invalidate, broadcast.
type Service struct {
	surveys    *surveys.Repository
	repository *Repository
	cache      CacheInvalidator
	notifier   Notifier
}

// NewService constructor.
func NewService(
	surveysRepository *surveys.Repository,
	repository *Repository,
	cache CacheInvalidator,
	notifier Notifier,
) *Service {
	return &Service{
		surveys:    surveysRepository,
		repository: repository,
		cache:      cache,
		notifier:   notifier,
	}
}

type SubmitRequest struct {
	SurveyToken string
	QuestionID  int64
	OptionID    *int64
	AnswerText  string
	SessionID   string
	IPAddress   string
	UserAgent   string
}

type SubmitResult struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	VotedAt    time.Time `json:"voted_at"`
}

// Sanitize trims and HTML-escapes untrusted input before it reaches the
// store, so analytics and export views can render it verbatim.
func Sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// Submit processes a single vote. The response never echoes the answer
// content back.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	token := Sanitize(req.SurveyToken)
	answerText := Sanitize(req.AnswerText)
	sessionID := Sanitize(req.SessionID)

	survey, err := s.surveys.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if !surveys.Active(survey, time.Now()) {
		return nil, surveys.ErrSurveyInactive
	}

	question, err := s.surveys.Question(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	// A question of another survey is reported as not found so the public
	// endpoint can't be used to probe cross-survey structure.
	if question.SurveyID != survey.ID {
		return nil, surveys.ErrQuestionNotFound
	}

	exists, err := s.repository.Exists(ctx, survey.ID, question.ID, sessionID)
	if err != nil {
		return nil, err
	}

	if exists {
		return nil, ErrVoteAlreadyExists
	}

	input := CreateVote{
		SurveyID:   survey.ID,
		QuestionID: question.ID,
		SessionID:  sessionID,
		IPAddress:  req.IPAddress,
		UserAgent:  Sanitize(req.UserAgent),
	}

	if question.QuestionType == schema.QuestionTypeText {
		if answerText == "" {
			return nil, ErrAnswerTextRequired
		}

		input.AnswerText = &answerText
	} else {
		if req.OptionID == nil {
			return nil, ErrOptionRequired
		}

		input.OptionID = req.OptionID
	}

	row, err := s.repository.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	// The vote is committed; stale cache entries are an optimization
	// problem, not a correctness one. Log and move on.
	ctxWithoutCancel := context.WithoutCancel(ctx)

	if err = s.cache.InvalidateSurvey(ctxWithoutCancel, survey.UniqueToken); err != nil {
		logrus.Warnf("invalidate survey cache for `%s`: %v", survey.UniqueToken, err)
	}

	if err = s.cache.InvalidateAnalytics(ctxWithoutCancel, survey.ID); err != nil {
		logrus.Warnf("invalidate analytics cache for survey %d: %v", survey.ID, err)
	}

	if s.notifier != nil {
		s.notifier.NotifyVote(survey.ID, question.ID)
	}

	return &SubmitResult{
		ID:         row.ID,
		QuestionID: row.QuestionID,
		VotedAt:    row.VotedAt,
	}, nil
}
