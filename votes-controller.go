package surveyforge

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/surveyforge/surveyforge/schema"
	"github.com/surveyforge/surveyforge/surveys"
	"github.com/surveyforge/surveyforge/util"
	"github.com/surveyforge/surveyforge/votes"
)

const sessionIDHeader = "X-Session-Id"

// VotesController Main Object
type VotesController struct {
	service    *votes.Service
	repository *votes.Repository
	auth       *Auth
}

// NewVotesController constructor
func NewVotesController(service *votes.Service, repository *votes.Repository, auth *Auth) (*VotesController, error) {
	if service == nil {
		return nil, fmt.Errorf("votes.Service is nil")
	}

	s := &VotesController{
		service:    service,
		repository: repository,
		auth:       auth,
	}

	return s, nil
}

type submitVoteRequest struct {
	SurveyToken string `json:"survey_token"`
	QuestionID  int64  `json:"question_id"`
	OptionID    *int64 `json:"option_id"`
	AnswerText  string `json:"answer_text"`
}

// APIVote is the admin-facing vote representation.
type APIVote struct {
	ID         int64     `json:"id"`
	SurveyID   int64     `json:"survey_id"`
	QuestionID int64     `json:"question_id"`
	OptionID   *int64    `json:"option_id"`
	AnswerText *string   `json:"answer_text"`
	SessionID  string    `json:"session_id"`
	IPAddress  *string   `json:"ip_address"`
	VotedAt    time.Time `json:"voted_at"`
}

func extractAPIVote(row *schema.VoteRow) *APIVote {
	return &APIVote{
		ID:         row.ID,
		SurveyID:   row.SurveyID,
		QuestionID: row.QuestionID,
		OptionID:   util.SQLNullInt64ToPtr(row.OptionID),
		AnswerText: util.SQLNullStringToPtr(row.AnswerText),
		SessionID:  row.SessionID,
		IPAddress:  util.SQLNullStringToPtr(row.IPAddress),
		VotedAt:    row.VotedAt,
	}
}

// sessionID identifies the voting client. Browsers send a generated id in
// a header; clients without one fall back to their IP.
func sessionID(c *gin.Context) string {
	if header := c.GetHeader(sessionIDHeader); header != "" {
		return header
	}

	return c.ClientIP()
}

func (s *VotesController) SetupPublicRouter(apiGroup *gin.RouterGroup) {
	apiGroup.POST("/votes", func(c *gin.Context) {
		var req submitVoteRequest

		if err := c.BindJSON(&req); err != nil {
			return
		}

		if req.SurveyToken == "" || req.QuestionID == 0 {
			voteSubmissions.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "survey_token and question_id are required",
			})

			return
		}

		result, err := s.service.Submit(c, votes.SubmitRequest{
			SurveyToken: req.SurveyToken,
			QuestionID:  req.QuestionID,
			OptionID:    req.OptionID,
			AnswerText:  req.AnswerText,
			SessionID:   sessionID(c),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
		})
		if err != nil {
			s.handleSubmitError(c, err)

			return
		}

		voteSubmissions.WithLabelValues("accepted").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"message": "Vote recorded successfully",
			"vote":    result,
		})
	})
}

func (s *VotesController) handleSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, votes.ErrVoteAlreadyExists):
		voteSubmissions.WithLabelValues("duplicate").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "You have already voted for this question"})
	case errors.Is(err, votes.ErrAnswerTextRequired),
		errors.Is(err, votes.ErrOptionRequired):
		voteSubmissions.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, surveys.ErrSurveyNotFound):
		voteSubmissions.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})
	case errors.Is(err, surveys.ErrSurveyInactive):
		voteSubmissions.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "Survey is not available"})
	case errors.Is(err, surveys.ErrQuestionNotFound):
		voteSubmissions.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
	default:
		voteSubmissions.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record vote"})
	}
}

func (s *VotesController) SetupPrivateRouter(apiGroup *gin.RouterGroup) {
	apiGroup.GET("/votes", func(c *gin.Context) {
		if !requireAdmin(c, s.auth, false) {
			return
		}

		surveyID, err := strconv.ParseInt(c.Query("survey_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "survey_id is required"})

			return
		}

		filters, err := parseListFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

			return
		}

		rows, err := s.repository.List(c, surveyID, filters)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		total, err := s.repository.Count(c, surveyID, filters)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())

			return
		}

		items := make([]*APIVote, len(rows))
		for idx := range rows {
			items[idx] = extractAPIVote(&rows[idx])
		}

		c.JSON(http.StatusOK, gin.H{
			"votes":  items,
			"total":  total,
			"limit":  filters.Limit,
			"offset": filters.Offset,
		})
	})
}

func parseListFilters(c *gin.Context) (votes.ListFilters, error) {
	filters := votes.ListFilters{
		Search: c.Query("search"),
		Limit:  100,
	}

	if value := c.Query("question_id"); value != "" {
		questionID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return filters, fmt.Errorf("invalid question_id")
		}

		filters.QuestionID = questionID
	}

	if value := c.Query("date_from"); value != "" {
		dateFrom, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return filters, fmt.Errorf("invalid date_from")
		}

		filters.DateFrom = dateFrom
	}

	if value := c.Query("date_to"); value != "" {
		dateTo, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return filters, fmt.Errorf("invalid date_to")
		}

		filters.DateTo = dateTo
	}

	if value := c.Query("limit"); value != "" {
		limit, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return filters, fmt.Errorf("invalid limit")
		}

		filters.Limit = uint(limit)
	}

	if value := c.Query("offset"); value != "" {
		offset, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return filters, fmt.Errorf("invalid offset")
		}

		filters.Offset = uint(offset)
	}

	return filters, nil
}
