package surveyforge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsRequiresAuth(t *testing.T) {
	env := createTestEnv(t)
	survey, _, _ := env.createPublishedSurvey(t)

	url := fmt.Sprintf("/api/v1/admin/analytics/realtime?survey_id=%d", survey.ID)

	// no credential
	req := httptest.NewRequest(http.MethodGet, url, nil)
	recorder := httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Access token required")

	// garbage token
	req = httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Invalid or expired token")
}

func TestRealtimeAnalyticsEndpoint(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	recorder := postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
		"option_id":    option.ID,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	// viewers can read analytics
	secret := env.container.Config().Auth.Secret
	url := fmt.Sprintf("/api/v1/admin/analytics/realtime?survey_id=%d", survey.ID)

	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+createToken(t, viewerUserID, RoleViewer, secret))
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		SurveyID   int64 `json:"survey_id"`
		TotalVotes int64 `json:"total_votes"`
		Questions  []struct {
			QuestionID int64 `json:"question_id"`
			Aggregates []struct {
				OptionID   *int64  `json:"option_id"`
				Count      int64   `json:"count"`
				Percentage float64 `json:"percentage"`
			} `json:"aggregates"`
		} `json:"questions"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, survey.ID, body.SurveyID)
	require.Equal(t, int64(1), body.TotalVotes)
	require.Len(t, body.Questions, 1)
	require.NotEmpty(t, body.Questions[0].Aggregates)
	require.Equal(t, option.ID, *body.Questions[0].Aggregates[0].OptionID)
	require.InDelta(t, 100.0, body.Questions[0].Aggregates[0].Percentage, 0.01)
}

func TestAggregateEndpoint(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	recorder := postVote(t, env.publicHandler, uuid.NewString(), map[string]interface{}{
		"survey_token": survey.UniqueToken,
		"question_id":  question.ID,
		"option_id":    option.ID,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	secret := env.container.Config().Auth.Secret
	url := fmt.Sprintf("/api/v1/admin/analytics/aggregate?question_id=%d", question.ID)

	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+createToken(t, adminUserID, RoleAdmin, secret))
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		QuestionID int64 `json:"question_id"`
		Aggregate  []struct {
			Count int64 `json:"count"`
		} `json:"aggregate"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, question.ID, body.QuestionID)
	require.Len(t, body.Aggregate, 1)
	require.Equal(t, int64(1), body.Aggregate[0].Count)
}

func TestAnalyticsMissingParams(t *testing.T) {
	env := createTestEnv(t)

	secret := env.container.Config().Auth.Secret

	for _, url := range []string{
		"/api/v1/admin/analytics/realtime",
		"/api/v1/admin/analytics/aggregate",
		"/api/v1/admin/analytics/heatmap?survey_id=1",
		"/api/v1/admin/analytics/crosstab?question1_id=1",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("Authorization", "Bearer "+createToken(t, adminUserID, RoleAdmin, secret))
		recorder := httptest.NewRecorder()
		env.privateHandler.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusBadRequest, recorder.Code, url)
	}
}
