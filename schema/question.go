package schema

import (
	"time"

	"github.com/doug-martin/goqu/v9"
)

const (
	QuestionTableName              = "questions"
	QuestionTableIDColName         = "id"
	QuestionTableSurveyIDColName   = "survey_id"
	QuestionTableTextColName       = "question_text"
	QuestionTableTypeColName       = "question_type"
	QuestionTableOrderColName      = "order"
	QuestionTableIsRequiredColName = "is_required"
)

const (
	QuestionTypeSingleChoice   = "single_choice"
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeText           = "text"
)

var (
	QuestionTable              = goqu.T(QuestionTableName)
	QuestionTableIDCol         = QuestionTable.Col(QuestionTableIDColName)
	QuestionTableSurveyIDCol   = QuestionTable.Col(QuestionTableSurveyIDColName)
	QuestionTableTextCol       = QuestionTable.Col(QuestionTableTextColName)
	QuestionTableTypeCol       = QuestionTable.Col(QuestionTableTypeColName)
	QuestionTableOrderCol      = QuestionTable.Col(QuestionTableOrderColName)
	QuestionTableIsRequiredCol = QuestionTable.Col(QuestionTableIsRequiredColName)
)

type QuestionRow struct {
	ID           int64     `db:"id"            json:"id"`
	SurveyID     int64     `db:"survey_id"     json:"survey_id"`
	QuestionText string    `db:"question_text" json:"question_text"`
	QuestionType string    `db:"question_type" json:"question_type"`
	Order        int32     `db:"order"         json:"order"`
	IsRequired   bool      `db:"is_required"   json:"is_required"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
