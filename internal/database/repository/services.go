package repository

import (
	"context"
)

// ServiceRepo handles services.
type ServiceRepo struct {
	db DBTX
}

func NewServiceRepo(db DBTX) *ServiceRepo { return &ServiceRepo{db: db} }

func (r *ServiceRepo) Upsert(ctx context.Context, s Service) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO services(service_id, service_name, service_description)
	VALUES (?, ?, ?)
	ON CONFLICT(service_id) DO UPDATE SET
	 service_name=excluded.service_name,
	 service_description=excluded.service_description;
	`, s.ID, s.Name, s.Description)
	return err
}

// List returns services in insertion order.
func (r *ServiceRepo) List(ctx context.Context) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT service_id, service_name, service_description FROM services ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ServiceRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&n)
	return n, err
}
