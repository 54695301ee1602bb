package schema

import (
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
)

const (
	VoteTableName              = "votes"
	VoteTableIDColName         = "id"
	VoteTableSurveyIDColName   = "survey_id"
	VoteTableQuestionIDColName = "question_id"
	VoteTableOptionIDColName   = "option_id"
	VoteTableAnswerTextColName = "answer_text"
	VoteTableSessionIDColName  = "session_id"
	VoteTableIPAddressColName  = "ip_address"
	VoteTableUserAgentColName  = "user_agent"
	VoteTableVotedAtColName    = "voted_at"
)

var (
	VoteTable              = goqu.T(VoteTableName)
	VoteTableIDCol         = VoteTable.Col(VoteTableIDColName)
	VoteTableSurveyIDCol   = VoteTable.Col(VoteTableSurveyIDColName)
	VoteTableQuestionIDCol = VoteTable.Col(VoteTableQuestionIDColName)
	VoteTableOptionIDCol   = VoteTable.Col(VoteTableOptionIDColName)
	VoteTableAnswerTextCol = VoteTable.Col(VoteTableAnswerTextColName)
	VoteTableSessionIDCol  = VoteTable.Col(VoteTableSessionIDColName)
	VoteTableIPAddressCol  = VoteTable.Col(VoteTableIPAddressColName)
	VoteTableUserAgentCol  = VoteTable.Col(VoteTableUserAgentColName)
	VoteTableVotedAtCol    = VoteTable.Col(VoteTableVotedAtColName)
)

// VoteRow is append-only: rows are never updated once inserted.
type VoteRow struct {
	ID         int64          `db:"id"          json:"id"`
	SurveyID   int64          `db:"survey_id"   json:"survey_id"`
	QuestionID int64          `db:"question_id" json:"question_id"`
	OptionID   sql.NullInt64  `db:"option_id"   json:"option_id"`
	AnswerText sql.NullString `db:"answer_text" json:"answer_text"`
	SessionID  string         `db:"session_id"  json:"session_id"`
	IPAddress  sql.NullString `db:"ip_address"  json:"ip_address"`
	UserAgent  sql.NullString `db:"user_agent"  json:"user_agent"`
	VotedAt    time.Time      `db:"voted_at"    json:"voted_at"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
}
