package importer

import (
	"context"

	"school-journal/internal/model"
)

// Strategy turns an uploaded grade sheet into validated rows.
type Strategy interface {
	Parse(ctx context.Context, data []byte) ([]model.GradeRow, error)
	Validate(ctx context.Context, grades []model.GradeRow) error
}

// SheetStrategy reads xlsx grade sheets.
type SheetStrategy struct {
	parser    *Parser
	validator *Validator
}

var _ Strategy = (*SheetStrategy)(nil)

func NewSheetStrategy() *SheetStrategy {
	return &SheetStrategy{
		parser:    NewParser(),
		validator: NewValidator(),
	}
}

func (s *SheetStrategy) Parse(ctx context.Context, data []byte) ([]model.GradeRow, error) {
	return s.parser.Parse(ctx, data)
}

func (s *SheetStrategy) Validate(ctx context.Context, grades []model.GradeRow) error {
	return s.validator.Validate(ctx, grades)
}

// Rows parses data and validates the result.
func Rows(ctx context.Context, s Strategy, data []byte) ([]model.GradeRow, error) {
	grades, err := s.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(ctx, grades); err != nil {
		return nil, err
	}
	return grades, nil
}
