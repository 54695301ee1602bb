package schema

import (
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
)

const (
	SurveyTableName               = "surveys"
	SurveyTableIDColName          = "id"
	SurveyTableUniqueTokenColName = "unique_token"
	SurveyTableTitleColName       = "title"
	SurveyTableDescriptionColName = "description"
	SurveyTableStatusColName      = "status"
	SurveyTableStartDateColName   = "start_date"
	SurveyTableEndDateColName     = "end_date"
	SurveyTableCreatedByColName   = "created_by"
	SurveyTableCreatedAtColName   = "created_at"
	SurveyTableUpdatedAtColName   = "updated_at"
)

const (
	SurveyStatusDraft     = "draft"
	SurveyStatusPublished = "published"
	SurveyStatusClosed    = "closed"
)

var (
	SurveyTable               = goqu.T(SurveyTableName)
	SurveyTableIDCol          = SurveyTable.Col(SurveyTableIDColName)
	SurveyTableUniqueTokenCol = SurveyTable.Col(SurveyTableUniqueTokenColName)
	SurveyTableTitleCol       = SurveyTable.Col(SurveyTableTitleColName)
	SurveyTableDescriptionCol = SurveyTable.Col(SurveyTableDescriptionColName)
	SurveyTableStatusCol      = SurveyTable.Col(SurveyTableStatusColName)
	SurveyTableStartDateCol   = SurveyTable.Col(SurveyTableStartDateColName)
	SurveyTableEndDateCol     = SurveyTable.Col(SurveyTableEndDateColName)
	SurveyTableCreatedByCol   = SurveyTable.Col(SurveyTableCreatedByColName)
	SurveyTableCreatedAtCol   = SurveyTable.Col(SurveyTableCreatedAtColName)
	SurveyTableUpdatedAtCol   = SurveyTable.Col(SurveyTableUpdatedAtColName)
)

type SurveyRow struct {
	ID          int64          `db:"id"           json:"id"`
	UniqueToken string         `db:"unique_token" json:"unique_token"`
	Title       string         `db:"title"        json:"title"`
	Description sql.NullString `db:"description"  json:"description"`
	Status      string         `db:"status"       json:"status"`
	StartDate   sql.NullTime   `db:"start_date"   json:"start_date"`
	EndDate     sql.NullTime   `db:"end_date"     json:"end_date"`
	CreatedBy   int64          `db:"created_by"   json:"created_by"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"   json:"updated_at"`
}
