package votes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/surveyforge/surveyforge/schema"
	"github.com/surveyforge/surveyforge/util"
)

// ErrVoteAlreadyExists reported when a session already voted for the question.
// The unique index over (survey_id, question_id, session_id) makes this
// reliable even when two submissions race past the pre-check.
var ErrVoteAlreadyExists = errors.New("vote already exists")

// Repository provides access to the append-only votes table.
type Repository struct {
	db *goqu.Database
}

// NewRepository constructor.
func NewRepository(db *goqu.Database) *Repository {
	return &Repository{
		db: db,
	}
}

type CreateVote struct {
	SurveyID   int64
	QuestionID int64
	OptionID   *int64
	AnswerText *string
	SessionID  string
	IPAddress  string
	UserAgent  string
}

type ListFilters struct {
	QuestionID int64
	Search     string
	DateFrom   time.Time
	DateTo     time.Time
	Limit      uint
	Offset     uint
}

// Aggregate is one bucket of a question's vote breakdown. OptionID is nil
// for the text/unset bucket.
type Aggregate struct {
	OptionID   *int64  `json:"option_id"`
	OptionText *string `json:"option_text"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TimeSeriesItem struct {
	Hour  time.Time `db:"hour"  json:"hour"`
	Count int64     `db:"count" json:"count"`
}

type CrossTabItem struct {
	Option1ID   *int64  `json:"option1_id"`
	Option1Text *string `json:"option1_text"`
	Option2ID   *int64  `json:"option2_id"`
	Option2Text *string `json:"option2_text"`
	Count       int64   `json:"count"`
}

type HeatmapItem struct {
	Hour       time.Time `json:"hour"`
	OptionID   *int64    `json:"option_id"`
	OptionText *string   `json:"option_text"`
	Count      int64     `json:"count"`
}

// Create inserts the vote with a server-assigned timestamp. A conflict on
// the dedup index yields ErrVoteAlreadyExists without inserting.
func (s *Repository) Create(ctx context.Context, input CreateVote) (*schema.VoteRow, error) {
	record := goqu.Record{
		schema.VoteTableSurveyIDColName:   input.SurveyID,
		schema.VoteTableQuestionIDColName: input.QuestionID,
		schema.VoteTableSessionIDColName:  input.SessionID,
		schema.VoteTableVotedAtColName:    goqu.Func("NOW"),
	}

	if input.OptionID != nil {
		record[schema.VoteTableOptionIDColName] = *input.OptionID
	}

	if input.AnswerText != nil {
		record[schema.VoteTableAnswerTextColName] = *input.AnswerText
	}

	if input.IPAddress != "" {
		record[schema.VoteTableIPAddressColName] = input.IPAddress
	}

	if input.UserAgent != "" {
		record[schema.VoteTableUserAgentColName] = input.UserAgent
	}

	var row schema.VoteRow

	success, err := s.db.Insert(schema.VoteTable).Rows(record).
		OnConflict(goqu.DoNothing()).
		Returning(schema.VoteTable.All()).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrVoteAlreadyExists
	}

	return &row, nil
}

// Exists reports whether the session already voted for the question.
func (s *Repository) Exists(ctx context.Context, surveyID, questionID int64, sessionID string) (bool, error) {
	var exists bool

	success, err := s.db.Select(goqu.V(true)).
		From(schema.VoteTable).
		Where(
			schema.VoteTableSurveyIDCol.Eq(surveyID),
			schema.VoteTableQuestionIDCol.Eq(questionID),
			schema.VoteTableSessionIDCol.Eq(sessionID),
		).
		Limit(1).ScanValContext(ctx, &exists)
	if err != nil {
		return false, err
	}

	return success, nil
}

func (s *Repository) listSelect(surveyID int64, filters ListFilters) *goqu.SelectDataset {
	sqSelect := s.db.From(schema.VoteTable).
		Where(schema.VoteTableSurveyIDCol.Eq(surveyID))

	if filters.QuestionID != 0 {
		sqSelect = sqSelect.Where(schema.VoteTableQuestionIDCol.Eq(filters.QuestionID))
	}

	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		sqSelect = sqSelect.Where(goqu.Or(
			schema.VoteTableAnswerTextCol.ILike(pattern),
			schema.VoteTableSessionIDCol.ILike(pattern),
			schema.VoteTableIPAddressCol.ILike(pattern),
		))
	}

	if !filters.DateFrom.IsZero() {
		sqSelect = sqSelect.Where(schema.VoteTableVotedAtCol.Gte(filters.DateFrom))
	}

	if !filters.DateTo.IsZero() {
		sqSelect = sqSelect.Where(schema.VoteTableVotedAtCol.Lte(filters.DateTo))
	}

	return sqSelect
}

// List returns a survey's votes, most recent first.
func (s *Repository) List(ctx context.Context, surveyID int64, filters ListFilters) ([]schema.VoteRow, error) {
	sqSelect := s.listSelect(surveyID, filters).
		Select(schema.VoteTable.All()).
		Order(schema.VoteTableVotedAtCol.Desc())

	if filters.Limit > 0 {
		sqSelect = sqSelect.Limit(filters.Limit)
	}

	if filters.Offset > 0 {
		sqSelect = sqSelect.Offset(filters.Offset)
	}

	var rows []schema.VoteRow

	err := sqSelect.ScanStructsContext(ctx, &rows)

	return rows, err
}

// Count returns the number of votes matching the filters.
func (s *Repository) Count(ctx context.Context, surveyID int64, filters ListFilters) (int64, error) {
	var count int64

	_, err := s.listSelect(surveyID, filters).
		Select(goqu.COUNT(goqu.Star())).
		ScanValContext(ctx, &count)

	return count, err
}

// TotalCount returns the number of votes across the whole survey.
func (s *Repository) TotalCount(ctx context.Context, surveyID int64) (int64, error) {
	var count int64

	_, err := s.db.Select(goqu.COUNT(goqu.Star())).
		From(schema.VoteTable).
		Where(schema.VoteTableSurveyIDCol.Eq(surveyID)).
		ScanValContext(ctx, &count)

	return count, err
}

type aggregateRow struct {
	OptionID   sql.NullInt64   `db:"option_id"`
	OptionText sql.NullString  `db:"option_text"`
	Count      int64           `db:"count"`
	Percentage sql.NullFloat64 `db:"percentage"`
}

// AggregateByQuestion computes the per-option breakdown for one question.
// The denominator is the question's own vote count. Options nobody picked
// are included with zero count so dashboards render the full set.
func (s *Repository) AggregateByQuestion(ctx context.Context, questionID int64) ([]Aggregate, error) {
	total := s.db.Select(goqu.COUNT(goqu.Star())).
		From(schema.VoteTable).
		Where(schema.VoteTableQuestionIDCol.Eq(questionID))

	var rows []aggregateRow

	err := s.db.Select(
		schema.VoteTableOptionIDCol,
		schema.OptionTableTextCol.As("option_text"),
		goqu.COUNT(goqu.Star()).As("count"),
		goqu.L("ROUND(COUNT(*) * 100.0 / NULLIF((?), 0), 2)", total).As("percentage"),
	).
		From(schema.VoteTable).
		LeftJoin(schema.OptionTable, goqu.On(schema.VoteTableOptionIDCol.Eq(schema.OptionTableIDCol))).
		Where(schema.VoteTableQuestionIDCol.Eq(questionID)).
		GroupBy(schema.VoteTableOptionIDCol, schema.OptionTableTextCol).
		Order(goqu.I("count").Desc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, err
	}

	result := make([]Aggregate, 0, len(rows))
	seen := make(map[int64]bool, len(rows))

	for _, row := range rows {
		item := Aggregate{
			Count: row.Count,
		}

		if row.OptionID.Valid {
			optionID := row.OptionID.Int64
			item.OptionID = &optionID
			seen[optionID] = true
		}

		if row.OptionText.Valid {
			optionText := row.OptionText.String
			item.OptionText = &optionText
		}

		if row.Percentage.Valid {
			item.Percentage = row.Percentage.Float64
		}

		result = append(result, item)
	}

	var options []schema.OptionRow

	err = s.db.Select(schema.OptionTable.All()).
		From(schema.OptionTable).
		Where(schema.OptionTableQuestionIDCol.Eq(questionID)).
		Order(schema.OptionTableOrderCol.Asc()).
		ScanStructsContext(ctx, &options)
	if err != nil {
		return nil, err
	}

	for idx := range options {
		if seen[options[idx].ID] {
			continue
		}

		optionID := options[idx].ID
		optionText := options[idx].OptionText

		result = append(result, Aggregate{
			OptionID:   &optionID,
			OptionText: &optionText,
		})
	}

	return result, nil
}

// TimeSeries groups a survey's votes into hour buckets, ascending.
func (s *Repository) TimeSeries(
	ctx context.Context, surveyID int64, startDate, endDate time.Time,
) ([]TimeSeriesItem, error) {
	sqSelect := s.db.Select(
		goqu.L("DATE_TRUNC('hour', ?)", schema.VoteTableVotedAtCol).As("hour"),
		goqu.COUNT(goqu.Star()).As("count"),
	).
		From(schema.VoteTable).
		Where(schema.VoteTableSurveyIDCol.Eq(surveyID))

	if !startDate.IsZero() {
		sqSelect = sqSelect.Where(schema.VoteTableVotedAtCol.Gte(startDate))
	}

	if !endDate.IsZero() {
		sqSelect = sqSelect.Where(schema.VoteTableVotedAtCol.Lte(endDate))
	}

	var rows []TimeSeriesItem

	err := sqSelect.
		GroupBy(goqu.I("hour")).
		Order(goqu.I("hour").Asc()).
		ScanStructsContext(ctx, &rows)

	return rows, err
}

type crossTabRow struct {
	Option1ID   sql.NullInt64  `db:"option1_id"`
	Option1Text sql.NullString `db:"option1_text"`
	Option2ID   sql.NullInt64  `db:"option2_id"`
	Option2Text sql.NullString `db:"option2_text"`
	Count       int64          `db:"count"`
}

// CrossTabulation joins votes of two questions sharing a respondent
// session within the same survey and counts the (option, option) pairs.
func (s *Repository) CrossTabulation(ctx context.Context, questionID1, questionID2 int64) ([]CrossTabItem, error) {
	v1 := schema.VoteTable.As("v1")
	v2 := schema.VoteTable.As("v2")
	o1 := schema.OptionTable.As("o1")
	o2 := schema.OptionTable.As("o2")

	var rows []crossTabRow

	err := s.db.Select(
		v1.Col(schema.VoteTableOptionIDColName).As("option1_id"),
		o1.Col(schema.OptionTableTextColName).As("option1_text"),
		v2.Col(schema.VoteTableOptionIDColName).As("option2_id"),
		o2.Col(schema.OptionTableTextColName).As("option2_text"),
		goqu.COUNT(goqu.Star()).As("count"),
	).
		From(v1).
		Join(v2, goqu.On(
			v1.Col(schema.VoteTableSurveyIDColName).Eq(v2.Col(schema.VoteTableSurveyIDColName)),
			v1.Col(schema.VoteTableSessionIDColName).Eq(v2.Col(schema.VoteTableSessionIDColName)),
		)).
		LeftJoin(o1, goqu.On(v1.Col(schema.VoteTableOptionIDColName).Eq(o1.Col(schema.OptionTableIDColName)))).
		LeftJoin(o2, goqu.On(v2.Col(schema.VoteTableOptionIDColName).Eq(o2.Col(schema.OptionTableIDColName)))).
		Where(
			v1.Col(schema.VoteTableQuestionIDColName).Eq(questionID1),
			v2.Col(schema.VoteTableQuestionIDColName).Eq(questionID2),
		).
		GroupBy(
			v1.Col(schema.VoteTableOptionIDColName),
			o1.Col(schema.OptionTableTextColName),
			v2.Col(schema.VoteTableOptionIDColName),
			o2.Col(schema.OptionTableTextColName),
		).
		Order(goqu.I("count").Desc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, err
	}

	result := make([]CrossTabItem, 0, len(rows))

	for _, row := range rows {
		result = append(result, CrossTabItem{
			Option1ID:   util.SQLNullInt64ToPtr(row.Option1ID),
			Option1Text: util.SQLNullStringToPtr(row.Option1Text),
			Option2ID:   util.SQLNullInt64ToPtr(row.Option2ID),
			Option2Text: util.SQLNullStringToPtr(row.Option2Text),
			Count:       row.Count,
		})
	}

	return result, nil
}

type heatmapRow struct {
	Hour       time.Time      `db:"hour"`
	OptionID   sql.NullInt64  `db:"option_id"`
	OptionText sql.NullString `db:"option_text"`
	Count      int64          `db:"count"`
}

// Heatmap groups one question's votes by (hour bucket, option).
func (s *Repository) Heatmap(ctx context.Context, surveyID, questionID int64) ([]HeatmapItem, error) {
	var rows []heatmapRow

	err := s.db.Select(
		goqu.L("DATE_TRUNC('hour', ?)", schema.VoteTableVotedAtCol).As("hour"),
		schema.VoteTableOptionIDCol,
		schema.OptionTableTextCol.As("option_text"),
		goqu.COUNT(goqu.Star()).As("count"),
	).
		From(schema.VoteTable).
		LeftJoin(schema.OptionTable, goqu.On(schema.VoteTableOptionIDCol.Eq(schema.OptionTableIDCol))).
		Where(
			schema.VoteTableSurveyIDCol.Eq(surveyID),
			schema.VoteTableQuestionIDCol.Eq(questionID),
		).
		GroupBy(goqu.I("hour"), schema.VoteTableOptionIDCol, schema.OptionTableTextCol).
		Order(goqu.I("hour").Asc(), schema.VoteTableOptionIDCol.Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, err
	}

	result := make([]HeatmapItem, 0, len(rows))

	for _, row := range rows {
		result = append(result, HeatmapItem{
			Hour:       row.Hour,
			OptionID:   util.SQLNullInt64ToPtr(row.OptionID),
			OptionText: util.SQLNullStringToPtr(row.OptionText),
			Count:      row.Count,
		})
	}

	return result, nil
}
