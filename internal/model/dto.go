package model

import "time"

// ImportJob asks the import worker to load a grade sheet into one period.
type ImportJob struct {
	ID       string `json:"id"`
	S3Path   string `json:"s3_path"`
	PeriodID string `json:"period_id"`
}

type ImportRequest struct {
	S3Path   string `json:"s3_path" binding:"required"`
	PeriodID string `json:"period_id" binding:"required"`
}

type ImportResult struct {
	JobID    string   `json:"job_id"`
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type LoadRequest struct {
	ClassID   string `json:"class_id" binding:"required"`
	SubjectID string `json:"subject_id" binding:"required"`
}

type PeriodRequest struct {
	PeriodID string `json:"period_id" binding:"required"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type ConfirmRequest struct {
	Value string `json:"value"`
}

type AttendanceRequest struct {
	Status string `json:"status" binding:"required"`
}

type LoadErrorResponse struct {
	Step      string `json:"step"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// JournalSnapshot is the read-only view handed to renderers.
type JournalSnapshot struct {
	SessionID string             `json:"session_id"`
	Selection Selection          `json:"selection"`
	Periods   []GradingPeriod    `json:"periods"`
	Lessons   []Lesson           `json:"lessons"`
	Loading   bool               `json:"loading"`
	LoadError *LoadErrorResponse `json:"load_error,omitempty"`
	Search    string             `json:"search"`
	Rows      []GridRow          `json:"rows"`
	Version   uint64             `json:"version"`
	At        time.Time          `json:"at"`
}
