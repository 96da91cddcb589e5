package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// FormRepo handles forms and their question links.
type FormRepo struct {
	db DBTX
}

func NewFormRepo(db DBTX) *FormRepo { return &FormRepo{db: db} }

func (r *FormRepo) Upsert(ctx context.Context, f Form) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO forms(form_id, form_name, form_description, form_link, service_id)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(form_id) DO UPDATE SET
	 form_name=excluded.form_name,
	 form_description=excluded.form_description,
	 form_link=excluded.form_link,
	 service_id=excluded.service_id;
	`, f.ID, f.Name, f.Description, f.Link, f.ServiceID)
	return err
}

// LinkQuestion attaches a question to a form; repeated links are ignored.
func (r *FormRepo) LinkQuestion(ctx context.Context, formID, questionID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO form_queries(form_id, form_query_id) VALUES(?, ?)`, formID, questionID)
	return err
}

// ListByService returns the forms of serviceID joined with the service name.
func (r *FormRepo) ListByService(ctx context.Context, serviceID string) ([]FormListing, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT s.service_id, s.service_name, f.form_id, f.form_name, f.form_link
	FROM services s
	JOIN forms f ON s.service_id = f.service_id
	WHERE f.service_id = ?
	ORDER BY f.rowid`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FormListing{}
	for rows.Next() {
		var f FormListing
		if err := rows.Scan(&f.ServiceID, &f.ServiceName, &f.FormID, &f.FormName, &f.FormLink); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FormRepo) Get(ctx context.Context, id string) (Form, error) {
	var f Form
	err := r.db.QueryRowContext(ctx, `
	SELECT form_id, form_name, form_description, form_link, service_id FROM forms WHERE form_id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Description, &f.Link, &f.ServiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return Form{}, ErrNotFound
	}
	return f, err
}
