package surveyforge

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/surveyforge/surveyforge/dashboard"
	"github.com/surveyforge/surveyforge/schema"
	"github.com/surveyforge/surveyforge/surveys"
	"github.com/surveyforge/surveyforge/util"
	"github.com/surveyforge/surveyforge/votes"
)

// SurveysController Main Object
type SurveysController struct {
	repository *surveys.Repository
	dashboard  *dashboard.Dashboard
	auth       *Auth
}

// NewSurveysController constructor
func NewSurveysController(
	repository *surveys.Repository, dashboardService *dashboard.Dashboard, auth *Auth,
) (*SurveysController, error) {
	if repository == nil {
		return nil, fmt.Errorf("surveys.Repository is nil")
	}

	s := &SurveysController{
		repository: repository,
		dashboard:  dashboardService,
		auth:       auth,
	}

	return s, nil
}

type surveyRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type questionRequest struct {
	QuestionText string `json:"question_text"`
	QuestionType string `json:"question_type"`
	Order        int32  `json:"order"`
	IsRequired   bool   `json:"is_required"`
}

type optionRequest struct {
	OptionText string `json:"option_text"`
	Order      int32  `json:"order"`
}

// SetupPublicRouter registers the unauthenticated read path used by the
// vote page.
func (s *SurveysController) SetupPublicRouter(apiGroup *gin.RouterGroup) {
	apiGroup.GET("/surveys/token/:token", func(c *gin.Context) {
		payload, err := s.dashboard.SurveyPayload(c, c.Param("token"))
		if err != nil {
			switch {
			case errors.Is(err, surveys.ErrSurveyNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})
			case errors.Is(err, surveys.ErrSurveyInactive):
				c.JSON(http.StatusForbidden, gin.H{"error": "Survey is not available"})
			default:
				c.String(http.StatusInternalServerError, err.Error())
			}

			return
		}

		c.JSON(http.StatusOK, payload)
	})
}

func (s *SurveysController) SetupPrivateRouter(apiGroup *gin.RouterGroup) {
	group := apiGroup.Group("/surveys")

	group.GET("", func(c *gin.Context) {
		userID, role, err := s.auth.ValidateREST(c)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})

			return
		}

		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})

			return
		}

		if role != RoleAdmin && role != RoleViewer {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})

			return
		}

		createdBy := int64(0)
		if role != RoleAdmin {
			createdBy = userID
		}

		rows, err := s.repository.List(c, createdBy)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusOK, gin.H{"surveys": rows})
	})

	group.POST("", func(c *gin.Context) {
		userID, ok := s.requireAdmin(c)
		if !ok {
			return
		}

		var req surveyRequest

		if err := c.BindJSON(&req); err != nil {
			return
		}

		if req.Title == nil || votes.Sanitize(*req.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})

			return
		}

		input := surveys.CreateSurvey{
			Title:     votes.Sanitize(*req.Title),
			Status:    schema.SurveyStatusDraft,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			CreatedBy: userID,
		}

		if req.Description != nil {
			input.Description = votes.Sanitize(*req.Description)
		}

		if req.Status != nil {
			input.Status = *req.Status
		}

		row, err := s.repository.Create(c, input)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		c.JSON(http.StatusCreated, row)
	})

	group.GET("/:id", func(c *gin.Context) {
		if _, ok := s.requireAdmin(c); !ok {
			return
		}

		surveyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())

			return
		}

		row, err := s.repository.ByID(c, surveyID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		c.JSON(http.StatusOK, row)
	})

	group.PUT("/:id", func(c *gin.Context) {
		if _, ok := s.requireAdmin(c); !ok {
			return
		}

		surveyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())

			return
		}

		var req surveyRequest

		if err = c.BindJSON(&req); err != nil {
			return
		}

		input := surveys.UpdateSurvey{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Status:    req.Status,
		}

		if req.Title != nil {
			title := votes.Sanitize(*req.Title)
			input.Title = &title
		}

		if req.Description != nil {
			description := votes.Sanitize(*req.Description)
			input.Description = &description
		}

		row, err := s.repository.Update(c, surveyID, input)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		s.invalidate(c, row.UniqueToken, row.ID)

		c.JSON(http.StatusOK, row)
	})

	group.DELETE("/:id", func(c *gin.Context) {
		if _, ok := s.requireAdmin(c); !ok {
			return
		}

		surveyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())

			return
		}

		row, err := s.repository.ByID(c, surveyID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		deleted, err := s.repository.Delete(c, surveyID)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		if !deleted {
			c.Status(http.StatusNotFound)

			return
		}

		s.invalidate(c, row.UniqueToken, row.ID)

		c.Status(http.StatusNoContent)
	})

	group.POST("/:id/regenerate-token", func(c *gin.Context) {
		if _, ok := s.requireAdmin(c); !ok {
			return
		}

		surveyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())

			return
		}

		row, err := s.repository.ByID(c, surveyID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		oldToken := row.UniqueToken

		row, err = s.repository.RegenerateToken(c, surveyID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		s.invalidate(c, oldToken, row.ID)

		c.JSON(http.StatusOK, row)
	})

	group.POST("/:id/questions", func(c *gin.Context) {
		if _, ok := s.requireAdmin(c); !ok {
			return
		}

		surveyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())

			return
		}

		var req questionRequest

		if err = c.BindJSON(&req); err != nil {
			return
		}

		if !util.Contains([]string{
			schema.QuestionTypeSingleChoice,
			schema.QuestionTypeMultipleChoice,
			schema.QuestionTypeText,
		}, req.QuestionType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question_type"})

			return
		}

		survey, err := s.repository.ByID(c, surveyID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		row, err := s.repository.CreateQuestion(c, surveys.CreateQuestion{
			SurveyID:     survey.ID,
			QuestionText: votes.Sanitize(req.QuestionText),
			QuestionType: req.QuestionType,
			Order:        req.Order,
			IsRequired:   req.IsRequired,
		})
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		s.invalidate(c, survey.UniqueToken, survey.ID)

		c.JSON(http.StatusCreated, row)
	})

	apiGroup.POST("/questions/:id/options", func(c *gin.Context) {
		if _, ok := s.requireAdmin(c); !ok {
			return
		}

		questionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())

			return
		}

		var req optionRequest

		if err = c.BindJSON(&req); err != nil {
			return
		}

		question, err := s.repository.Question(c, questionID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		survey, err := s.repository.ByID(c, question.SurveyID)
		if err != nil {
			s.handleRepositoryError(c, err)

			return
		}

		row, err := s.repository.CreateOption(c, surveys.CreateOption{
			QuestionID: question.ID,
			OptionText: votes.Sanitize(req.OptionText),
			Order:      req.Order,
		})
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		s.invalidate(c, survey.UniqueToken, survey.ID)

		c.JSON(http.StatusCreated, row)
	})
}

func (s *SurveysController) requireAdmin(c *gin.Context) (int64, bool) {
	userID, role, err := s.auth.ValidateREST(c)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})

		return 0, false
	}

	if role == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})

		return 0, false
	}

	if role != RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})

		return 0, false
	}

	return userID, true
}

func (s *SurveysController) handleRepositoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, surveys.ErrSurveyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})
	case errors.Is(err, surveys.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
	default:
		c.String(http.StatusInternalServerError, err.Error())
	}
}

// invalidate drops both cached payloads after a structural change.
// Failures only delay freshness until the TTL runs out.
func (s *SurveysController) invalidate(c *gin.Context, token string, surveyID int64) {
	if err := s.dashboard.InvalidateSurvey(c, token); err != nil {
		logrus.Warnf("invalidate survey `%s`: %v", token, err)
	}

	if err := s.dashboard.InvalidateAnalytics(c, surveyID); err != nil {
		logrus.Warnf("invalidate analytics for survey %d: %v", surveyID, err)
	}
}
