package surveys

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/surveyforge/surveyforge/schema"
)

var (
	ErrSurveyNotFound   = errors.New("survey not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrSurveyInactive   = errors.New("survey is not available")
)

const tokenLength = 12

// Repository provides access to surveys, their questions and options.
type Repository struct {
	db *goqu.Database
}

// NewRepository constructor.
func NewRepository(db *goqu.Database) *Repository {
	return &Repository{
		db: db,
	}
}

type CreateSurvey struct {
	Title       string
	Description string
	Status      string
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedBy   int64
}

type UpdateSurvey struct {
	Title       *string
	Description *string
	Status      *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// Active reports whether the survey accepts votes at the given moment.
func Active(row *schema.SurveyRow, now time.Time) bool {
	if row.Status != schema.SurveyStatusPublished {
		return false
	}

	if row.StartDate.Valid && now.Before(row.StartDate.Time) {
		return false
	}

	if row.EndDate.Valid && now.After(row.EndDate.Time) {
		return false
	}

	return true
}

func (s *Repository) ByToken(ctx context.Context, token string) (*schema.SurveyRow, error) {
	var row schema.SurveyRow

	success, err := s.db.Select(schema.SurveyTable.All()).
		From(schema.SurveyTable).
		Where(schema.SurveyTableUniqueTokenCol.Eq(token)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrSurveyNotFound
	}

	return &row, nil
}

func (s *Repository) ByID(ctx context.Context, id int64) (*schema.SurveyRow, error) {
	var row schema.SurveyRow

	success, err := s.db.Select(schema.SurveyTable.All()).
		From(schema.SurveyTable).
		Where(schema.SurveyTableIDCol.Eq(id)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrSurveyNotFound
	}

	return &row, nil
}

// List returns surveys, optionally restricted to one creator.
func (s *Repository) List(ctx context.Context, createdBy int64) ([]schema.SurveyRow, error) {
	sqSelect := s.db.Select(schema.SurveyTable.All()).
		From(schema.SurveyTable).
		Order(schema.SurveyTableCreatedAtCol.Desc())

	if createdBy != 0 {
		sqSelect = sqSelect.Where(schema.SurveyTableCreatedByCol.Eq(createdBy))
	}

	var rows []schema.SurveyRow

	err := sqSelect.ScanStructsContext(ctx, &rows)

	return rows, err
}

func (s *Repository) Create(ctx context.Context, input CreateSurvey) (*schema.SurveyRow, error) {
	status := input.Status
	if status == "" {
		status = schema.SurveyStatusDraft
	}

	record := goqu.Record{
		schema.SurveyTableUniqueTokenColName: generateToken(),
		schema.SurveyTableTitleColName:       input.Title,
		schema.SurveyTableStatusColName:      status,
		schema.SurveyTableCreatedByColName:   input.CreatedBy,
	}

	if input.Description != "" {
		record[schema.SurveyTableDescriptionColName] = input.Description
	}

	if input.StartDate != nil {
		record[schema.SurveyTableStartDateColName] = *input.StartDate
	}

	if input.EndDate != nil {
		record[schema.SurveyTableEndDateColName] = *input.EndDate
	}

	var row schema.SurveyRow

	success, err := s.db.Insert(schema.SurveyTable).Rows(record).
		Returning(schema.SurveyTable.All()).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, sql.ErrNoRows
	}

	return &row, nil
}

func (s *Repository) Update(ctx context.Context, id int64, input UpdateSurvey) (*schema.SurveyRow, error) {
	record := goqu.Record{}

	if input.Title != nil {
		record[schema.SurveyTableTitleColName] = *input.Title
	}

	if input.Description != nil {
		record[schema.SurveyTableDescriptionColName] = *input.Description
	}

	if input.Status != nil {
		record[schema.SurveyTableStatusColName] = *input.Status
	}

	if input.StartDate != nil {
		record[schema.SurveyTableStartDateColName] = *input.StartDate
	}

	if input.EndDate != nil {
		record[schema.SurveyTableEndDateColName] = *input.EndDate
	}

	if len(record) == 0 {
		return s.ByID(ctx, id)
	}

	record[schema.SurveyTableUpdatedAtColName] = goqu.Func("NOW")

	var row schema.SurveyRow

	success, err := s.db.Update(schema.SurveyTable).Set(record).
		Where(schema.SurveyTableIDCol.Eq(id)).
		Returning(schema.SurveyTable.All()).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrSurveyNotFound
	}

	return &row, nil
}

// Delete removes the survey; questions and options cascade in the store.
func (s *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.Delete(schema.SurveyTable).
		Where(schema.SurveyTableIDCol.Eq(id)).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// RegenerateToken invalidates the current public URL by issuing a fresh token.
func (s *Repository) RegenerateToken(ctx context.Context, id int64) (*schema.SurveyRow, error) {
	var row schema.SurveyRow

	success, err := s.db.Update(schema.SurveyTable).Set(goqu.Record{
		schema.SurveyTableUniqueTokenColName: generateToken(),
		schema.SurveyTableUpdatedAtColName:   goqu.Func("NOW"),
	}).
		Where(schema.SurveyTableIDCol.Eq(id)).
		Returning(schema.SurveyTable.All()).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrSurveyNotFound
	}

	return &row, nil
}

func (s *Repository) Question(ctx context.Context, id int64) (*schema.QuestionRow, error) {
	var row schema.QuestionRow

	success, err := s.db.Select(schema.QuestionTable.All()).
		From(schema.QuestionTable).
		Where(schema.QuestionTableIDCol.Eq(id)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrQuestionNotFound
	}

	return &row, nil
}

func (s *Repository) Questions(ctx context.Context, surveyID int64) ([]schema.QuestionRow, error) {
	var rows []schema.QuestionRow

	err := s.db.Select(schema.QuestionTable.All()).
		From(schema.QuestionTable).
		Where(schema.QuestionTableSurveyIDCol.Eq(surveyID)).
		Order(schema.QuestionTableOrderCol.Asc()).
		ScanStructsContext(ctx, &rows)

	return rows, err
}

func (s *Repository) Options(ctx context.Context, questionID int64) ([]schema.OptionRow, error) {
	var rows []schema.OptionRow

	err := s.db.Select(schema.OptionTable.All()).
		From(schema.OptionTable).
		Where(schema.OptionTableQuestionIDCol.Eq(questionID)).
		Order(schema.OptionTableOrderCol.Asc()).
		ScanStructsContext(ctx, &rows)

	return rows, err
}

type CreateQuestion struct {
	SurveyID     int64
	QuestionText string
	QuestionType string
	Order        int32
	IsRequired   bool
}

type CreateOption struct {
	QuestionID int64
	OptionText string
	Order      int32
}

func (s *Repository) CreateQuestion(ctx context.Context, input CreateQuestion) (*schema.QuestionRow, error) {
	var row schema.QuestionRow

	success, err := s.db.Insert(schema.QuestionTable).Rows(goqu.Record{
		schema.QuestionTableSurveyIDColName:   input.SurveyID,
		schema.QuestionTableTextColName:       input.QuestionText,
		schema.QuestionTableTypeColName:       input.QuestionType,
		schema.QuestionTableOrderColName:      input.Order,
		schema.QuestionTableIsRequiredColName: input.IsRequired,
	}).
		Returning(schema.QuestionTable.All()).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, sql.ErrNoRows
	}

	return &row, nil
}

func (s *Repository) CreateOption(ctx context.Context, input CreateOption) (*schema.OptionRow, error) {
	var row schema.OptionRow

	success, err := s.db.Insert(schema.OptionTable).Rows(goqu.Record{
		schema.OptionTableQuestionIDColName: input.QuestionID,
		schema.OptionTableTextColName:       input.OptionText,
		schema.OptionTableOrderColName:      input.Order,
	}).
		Returning(schema.OptionTable.All()).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, sql.ErrNoRows
	}

	return &row, nil
}

func generateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}
