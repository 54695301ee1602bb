package surveyforge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func adminRequest(t *testing.T, env *testEnv, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	secret := env.container.Config().Auth.Secret
	req.Header.Set("Authorization", "Bearer "+createToken(t, adminUserID, RoleAdmin, secret))

	recorder := httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)

	return recorder
}

func TestPublicSurveyByToken(t *testing.T) {
	env := createTestEnv(t)
	survey, question, option := env.createPublishedSurvey(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys/token/"+survey.UniqueToken, nil)
	recorder := httptest.NewRecorder()
	env.publicHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		ID        int64 `json:"id"`
		Questions []struct {
			ID      int64 `json:"id"`
			Options []struct {
				ID int64 `json:"id"`
			} `json:"options"`
		} `json:"questions"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, survey.ID, body.ID)
	require.Len(t, body.Questions, 1)
	require.Equal(t, question.ID, body.Questions[0].ID)
	require.Len(t, body.Questions[0].Options, 1)
	require.Equal(t, option.ID, body.Questions[0].Options[0].ID)
}

func TestPublicSurveyByTokenErrors(t *testing.T) {
	env := createTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys/token/zzzzzzzzzzzz", nil)
	recorder := httptest.NewRecorder()
	env.publicHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Survey not found")
}

func TestAdminSurveyCRUD(t *testing.T) {
	env := createTestEnv(t)

	title := fmt.Sprintf("Survey %s", uuid.NewString())

	recorder := adminRequest(t, env, http.MethodPost, "/api/v1/admin/surveys",
		fmt.Sprintf(`{"title": %q, "status": "published"}`, title))
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created struct {
		ID          int64  `json:"id"`
		UniqueToken string `json:"unique_token"`
		Title       string `json:"title"`
		Status      string `json:"status"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.Len(t, created.UniqueToken, 12)
	require.Equal(t, title, created.Title)
	require.Equal(t, "published", created.Status)

	surveyURL := fmt.Sprintf("/api/v1/admin/surveys/%d", created.ID)

	recorder = adminRequest(t, env, http.MethodGet, surveyURL, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = adminRequest(t, env, http.MethodPut, surveyURL, `{"status": "closed"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var updated struct {
		Status string `json:"status"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &updated))
	require.Equal(t, "closed", updated.Status)

	recorder = adminRequest(t, env, http.MethodDelete, surveyURL, "")
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = adminRequest(t, env, http.MethodGet, surveyURL, "")
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAdminSurveysRequireAuth(t *testing.T) {
	env := createTestEnv(t)

	// no credential
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/surveys", nil)
	recorder := httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Access token required")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/surveys", strings.NewReader(`{"title":"x"}`))
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	// viewers cannot write
	secret := env.container.Config().Auth.Secret
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/surveys", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+createToken(t, viewerUserID, RoleViewer, secret))
	recorder = httptest.NewRecorder()
	env.privateHandler.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Admin access required")
}

func TestAdminSurveyCreateValidation(t *testing.T) {
	env := createTestEnv(t)

	recorder := adminRequest(t, env, http.MethodPost, "/api/v1/admin/surveys", `{"title": "   "}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "title is required")
}

func TestRegenerateTokenEndpoint(t *testing.T) {
	env := createTestEnv(t)
	survey, _, _ := env.createPublishedSurvey(t)

	url := fmt.Sprintf("/api/v1/admin/surveys/%d/regenerate-token", survey.ID)

	recorder := adminRequest(t, env, http.MethodPost, url, "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		UniqueToken string `json:"unique_token"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.UniqueToken, 12)
	require.NotEqual(t, survey.UniqueToken, body.UniqueToken)

	// the old token no longer resolves
	req := httptest.NewRequest(http.MethodGet, "/api/v1/surveys/token/"+survey.UniqueToken, nil)
	publicRecorder := httptest.NewRecorder()
	env.publicHandler.ServeHTTP(publicRecorder, req)
	require.Equal(t, http.StatusNotFound, publicRecorder.Code)
}

func TestCreateQuestionValidation(t *testing.T) {
	env := createTestEnv(t)
	survey, _, _ := env.createPublishedSurvey(t)

	url := fmt.Sprintf("/api/v1/admin/surveys/%d/questions", survey.ID)

	recorder := adminRequest(t, env, http.MethodPost, url,
		`{"question_text": "Q", "question_type": "essay"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "invalid question_type")

	recorder = adminRequest(t, env, http.MethodPost, url,
		`{"question_text": "Q", "question_type": "text", "order": 2}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
}
