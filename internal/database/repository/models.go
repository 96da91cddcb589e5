package repository

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repos work inside WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Service represents a services row.
type Service struct {
	ID          string  `json:"service_id" yaml:"id"`
	Name        string  `json:"service_name" yaml:"name"`
	Description *string `json:"service_description" yaml:"description"`
}

// Form represents a forms row.
type Form struct {
	ID          string  `json:"form_id" yaml:"id"`
	Name        string  `json:"form_name" yaml:"name"`
	Description *string `json:"form_description" yaml:"description"`
	Link        string  `json:"form_link" yaml:"link"`
	ServiceID   string  `json:"service_id" yaml:"service"`
}

// FormListing is a form joined with its service name.
type FormListing struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	FormID      string `json:"form_id"`
	FormName    string `json:"form_name"`
	FormLink    string `json:"form_link"`
}

// Category represents a ques_categories row.
type Category struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description *string `json:"description" yaml:"description"`
}

// Question represents an input_ques row.
type Question struct {
	ID          string  `json:"ques_id" yaml:"id"`
	Text        string  `json:"ques_text" yaml:"text"`
	Placeholder *string `json:"placeholder" yaml:"placeholder"`
	CategoryID  *string `json:"category_id" yaml:"category"`
}
