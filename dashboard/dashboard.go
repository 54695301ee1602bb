package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge/schema"
	"github.com/surveyforge/surveyforge/surveys"
	"github.com/surveyforge/surveyforge/votes"
)

const (
	// Survey structure changes only on admin edits.
	surveyCacheTTL = time.Hour
	// Vote counts change continuously while a survey is live; the short
	// TTL plus explicit invalidation keeps dashboards near-real-time.
	analyticsCacheTTL = 30 * time.Second
)

// Dashboard builds the read-side payloads and owns their redis caching.
type Dashboard struct {
	redis   *redis.Client
	surveys *surveys.Repository
	votes   *votes.Repository
}

// NewDashboard constructor.
func NewDashboard(redisClient *redis.Client, surveysRepository *surveys.Repository, votesRepository *votes.Repository) *Dashboard {
	return &Dashboard{
		redis:   redisClient,
		surveys: surveysRepository,
		votes:   votesRepository,
	}
}

type QuestionPayload struct {
	schema.QuestionRow
	Options []schema.OptionRow `json:"options"`
}

// SurveyPayload is the public survey document served on the vote page.
type SurveyPayload struct {
	schema.SurveyRow
	Questions []QuestionPayload `json:"questions"`
}

type QuestionAggregates struct {
	QuestionID   int64             `json:"question_id"`
	QuestionText string            `json:"question_text"`
	QuestionType string            `json:"question_type"`
	Aggregates   []votes.Aggregate `json:"aggregates"`
}

// RealtimePayload is the admin dashboard document.
type RealtimePayload struct {
	SurveyID    int64                  `json:"survey_id"`
	SurveyTitle string                 `json:"survey_title"`
	TotalVotes  int64                  `json:"total_votes"`
	Questions   []QuestionAggregates   `json:"questions"`
	TimeSeries  []votes.TimeSeriesItem `json:"time_series"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func surveyKey(token string) string {
	return "survey:" + token
}

func analyticsKey(surveyID int64) string {
	return fmt.Sprintf("analytics:survey:%d", surveyID)
}

// SurveyPayload returns the survey joined with its questions and options,
// for active surveys only. Cached for an hour under the public token.
func (s *Dashboard) SurveyPayload(ctx context.Context, token string) (*SurveyPayload, error) {
	key := surveyKey(token)

	item, err := s.redis.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logrus.Warnf("survey cache read `%s`: %v", key, err)
	}

	if err == nil {
		var cached SurveyPayload

		if err = json.Unmarshal([]byte(item), &cached); err == nil {
			return &cached, nil
		}

		logrus.Warnf("survey cache decode `%s`: %v", key, err)
	}

	survey, err := s.surveys.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if !surveys.Active(survey, time.Now()) {
		return nil, surveys.ErrSurveyInactive
	}

	questionRows, err := s.surveys.Questions(ctx, survey.ID)
	if err != nil {
		return nil, err
	}

	payload := SurveyPayload{
		SurveyRow: *survey,
		Questions: make([]QuestionPayload, 0, len(questionRows)),
	}

	for _, questionRow := range questionRows {
		options, err := s.surveys.Options(ctx, questionRow.ID)
		if err != nil {
			return nil, err
		}

		payload.Questions = append(payload.Questions, QuestionPayload{
			QuestionRow: questionRow,
			Options:     options,
		})
	}

	s.cacheSet(ctx, key, payload, surveyCacheTTL)

	return &payload, nil
}

// RealtimePayload returns the aggregated analytics document, cached for
// 30 seconds under the survey id.
func (s *Dashboard) RealtimePayload(ctx context.Context, surveyID int64) (*RealtimePayload, error) {
	key := analyticsKey(surveyID)

	item, err := s.redis.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logrus.Warnf("analytics cache read `%s`: %v", key, err)
	}

	if err == nil {
		var cached RealtimePayload

		if err = json.Unmarshal([]byte(item), &cached); err == nil {
			return &cached, nil
		}

		logrus.Warnf("analytics cache decode `%s`: %v", key, err)
	}

	payload, err := s.buildRealtimePayload(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, payload, analyticsCacheTTL)

	return payload, nil
}

func (s *Dashboard) buildRealtimePayload(ctx context.Context, surveyID int64) (*RealtimePayload, error) {
	survey, err := s.surveys.ByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	questionRows, err := s.surveys.Questions(ctx, survey.ID)
	if err != nil {
		return nil, err
	}

	questions := make([]QuestionAggregates, 0, len(questionRows))

	for _, questionRow := range questionRows {
		aggregates, err := s.votes.AggregateByQuestion(ctx, questionRow.ID)
		if err != nil {
			return nil, err
		}

		questions = append(questions, QuestionAggregates{
			QuestionID:   questionRow.ID,
			QuestionText: questionRow.QuestionText,
			QuestionType: questionRow.QuestionType,
			Aggregates:   aggregates,
		})
	}

	totalVotes, err := s.votes.TotalCount(ctx, survey.ID)
	if err != nil {
		return nil, err
	}

	timeSeries, err := s.votes.TimeSeries(ctx, survey.ID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	return &RealtimePayload{
		SurveyID:    survey.ID,
		SurveyTitle: survey.Title,
		TotalVotes:  totalVotes,
		Questions:   questions,
		TimeSeries:  timeSeries,
		UpdatedAt:   time.Now(),
	}, nil
}

// CachedRealtime returns the cached analytics payload if present. Used by
// the hub for best-effort initial snapshots; misses and errors are not
// distinguished.
func (s *Dashboard) CachedRealtime(ctx context.Context, surveyID int64) (*RealtimePayload, bool) {
	item, err := s.redis.Get(ctx, analyticsKey(surveyID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.Warnf("analytics cache read for survey %d: %v", surveyID, err)
		}

		return nil, false
	}

	var cached RealtimePayload

	if err = json.Unmarshal([]byte(item), &cached); err != nil {
		logrus.Warnf("analytics cache decode for survey %d: %v", surveyID, err)

		return nil, false
	}

	return &cached, true
}

// InvalidateSurvey drops the token-scoped survey payload.
func (s *Dashboard) InvalidateSurvey(ctx context.Context, token string) error {
	return s.redis.Del(ctx, surveyKey(token)).Err()
}

// InvalidateAnalytics drops the survey-scoped analytics payload.
func (s *Dashboard) InvalidateAnalytics(ctx context.Context, surveyID int64) error {
	return s.redis.Del(ctx, analyticsKey(surveyID)).Err()
}

func (s *Dashboard) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	cacheBytes, err := json.Marshal(value)
	if err != nil {
		logrus.Warnf("cache encode `%s`: %v", key, err)

		return
	}

	if err = s.redis.Set(ctx, key, string(cacheBytes), ttl).Err(); err != nil {
		logrus.Warnf("cache write `%s`: %v", key, err)
	}
}
