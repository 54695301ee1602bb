package surveyforge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/surveyforge/surveyforge/config"
	"github.com/surveyforge/surveyforge/schema"
	"github.com/surveyforge/surveyforge/surveys"
)

type testEnv struct {
	container      *Container
	publicHandler  http.Handler
	privateHandler http.Handler
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()

	container := NewContainer(config.LoadConfig("."))

	publicHandler, err := container.PublicRouter()
	require.NoError(t, err)

	privateHandler, err := container.PrivateRouter()
	require.NoError(t, err)

	return &testEnv{
		container:      container,
		publicHandler:  publicHandler,
		privateHandler: privateHandler,
	}
}

func (e *testEnv) createPublishedSurvey(t *testing.T) (*schema.SurveyRow, *schema.QuestionRow, *schema.OptionRow) {
	t.Helper()

	ctx := context.Background()

	repository, err := e.container.SurveysRepository()
	require.NoError(t, err)

	survey, err := repository.Create(ctx, surveys.CreateSurvey{
		Title:     fmt.Sprintf("Survey %s", uuid.NewString()),
		Status:    schema.SurveyStatusPublished,
		CreatedBy: adminUserID,
	})
	require.NoError(t, err)

	question, err := repository.CreateQuestion(ctx, surveys.CreateQuestion{
		SurveyID:     survey.ID,
		QuestionText: "Favorite color?",
		QuestionType: schema.QuestionTypeSingleChoice,
		Order:        1,
	})
	require.NoError(t, err)

	option, err := repository.CreateOption(ctx, surveys.CreateOption{
		QuestionID: question.ID,
		OptionText: "Red",
		Order:      1,
	})
	require.NoError(t, err)

	return survey, question, option
}

func postVote(t *testing.T, handler http.Handler, sessionID string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/votes", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")

	if sessionID != "" {
		req.Header.Set(sessionIDHeader, sessionID)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

func TestSubmitVoteEndpoint(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	recorder := postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
		"option_id":    option.ID,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var body struct {
		Message string `json:"message"`
		Vote    struct {
			ID         int64  `json:"id"`
			QuestionID int64  `json:"question_id"`
			VotedAt    string `json:"voted_at"`
		} `json:"vote"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "Vote recorded successfully", body.Message)
	require.NotZero(t, body.Vote.ID)
	require.Equal(t, question.ID, body.Vote.QuestionID)
	require.NotEmpty(t, body.Vote.VotedAt)
}

func TestSubmitVoteDuplicateEndpoint(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	sessionID := uuid.NewString()
	body := map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
		"option_id":    option.ID,
	}

	recorder := postVote(t, env.publicHandler, sessionID, body)
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder = postVote(t, env.publicHandler, sessionID, body)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "You have already voted for this question")
}

func TestSubmitVoteErrors(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	recorder := postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"question_id": question.ID,
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "survey_token and question_id are required")

	recorder = postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"survey_token": "zzzzzzzzzzzz",
		"question_id":  question.ID,
		"option_id":    option.ID,
	})
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Survey not found")

	recorder = postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "option_id is required for choice questions")
}

func TestSubmitVoteInactiveSurveyEndpoint(t *testing.T) {
	env := createTestEnv(t)

	repository, err := env.container.SurveysRepository()
	require.NoError(t, err)

	survey, err := repository.Create(context.Background(), surveys.CreateSurvey{
		Title:     fmt.Sprintf("Survey %s", uuid.NewString()),
		Status:    schema.SurveyStatusDraft,
		CreatedBy: adminUserID,
	})
	require.NoError(t, err)

	question, err := repository.CreateQuestion(context.Background(), surveys.CreateQuestion{
		SurveyID:     survey.ID,
		QuestionText: "Q",
		QuestionType: schema.QuestionTypeText,
		Order:        1,
	})
	require.NoError(t, err)

	recorder := postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
		"answer_text":  "hello",
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Survey is not available")
}

func TestListVotesRequiresAdmin(t *testing.T) {
	env := createTestEnv(t)
	survey, _, _ := env.createPublishedSurvey(t)

	url := fmt.Sprintf("/api/v1/admin/votes?survey_id=%d", survey.ID)

	// no credential
	req := httptest.NewRequest(http.MethodGet, url, nil)
	recorder := httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Access token required")

	secret := env.container.Config().Auth.Secret

	// viewers cannot read raw votes
	req = httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+createToken(t, viewerUserID, RoleViewer, secret))
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Admin access required")
}

func TestListVotesEndpoint(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	sessionID := uuid.NewString()

	recorder := postVote(t, env.publicHandler, sessionID, map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
		"option_id":    option.ID,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	secret := env.container.Config().Auth.Secret
	url := fmt.Sprintf("/api/v1/admin/votes?survey_id=%d&limit=10", survey.ID)

	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+createToken(t, adminUserID, RoleAdmin, secret))
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Votes []APIVote `json:"votes"`
		Total int64     `json:"total"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.Total)
	require.Len(t, body.Votes, 1)
	require.Equal(t, sessionID, body.Votes[0].SessionID)
	require.Equal(t, option.ID, *body.Votes[0].OptionID)
}
