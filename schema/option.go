package schema

import (
	"time"

	"github.com/doug-martin/goqu/v9"
)

const (
	OptionTableName              = "options"
	OptionTableIDColName         = "id"
	OptionTableQuestionIDColName = "question_id"
	OptionTableTextColName       = "option_text"
	OptionTableOrderColName      = "order"
)

var (
	OptionTable              = goqu.T(OptionTableName)
	OptionTableIDCol         = OptionTable.Col(OptionTableIDColName)
	OptionTableQuestionIDCol = OptionTable.Col(OptionTableQuestionIDColName)
	OptionTableTextCol       = OptionTable.Col(OptionTableTextColName)
	OptionTableOrderCol      = OptionTable.Col(OptionTableOrderColName)
)

type OptionRow struct {
	ID         int64     `db:"id"          json:"id"`
	QuestionID int64     `db:"question_id" json:"question_id"`
	OptionText string    `db:"option_text" json:"option_text"`
	Order      int32     `db:"order"       json:"order"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
