package repository

import (
	"context"
	"database/sql"
	"errors"
)

// QuestionRepo handles question categories and questions.
type QuestionRepo struct {
	db DBTX
}

func NewQuestionRepo(db DBTX) *QuestionRepo { return &QuestionRepo{db: db} }

func (r *QuestionRepo) UpsertCategory(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO ques_categories(id, name, description)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 description=excluded.description;
	`, c.ID, c.Name, c.Description)
	return err
}

func (r *QuestionRepo) Upsert(ctx context.Context, q Question) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO input_ques(ques_id, ques_text, placeholder, category_id)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(ques_id) DO UPDATE SET
	 ques_text=excluded.ques_text,
	 placeholder=excluded.placeholder,
	 category_id=excluded.category_id;
	`, q.ID, q.Text, q.Placeholder, q.CategoryID)
	return err
}

// CategoriesForForm returns the distinct categories used by formID's questions.
func (r *QuestionRepo) CategoriesForForm(ctx context.Context, formID string) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, name, description FROM ques_categories
	WHERE id IN (
	 SELECT DISTINCT q.category_id FROM input_ques q
	 JOIN form_queries fq ON fq.form_query_id = q.ques_id
	 WHERE fq.form_id = ?)
	ORDER BY rowid`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// QuestionsForForm returns formID's questions in question-table order.
func (r *QuestionRepo) QuestionsForForm(ctx context.Context, formID string) ([]Question, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT ques_id, ques_text, placeholder, category_id FROM input_ques
	WHERE ques_id IN (SELECT form_query_id FROM form_queries WHERE form_id = ?)
	ORDER BY rowid`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Placeholder, &q.CategoryID); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepo) Get(ctx context.Context, id string) (Question, error) {
	var q Question
	err := r.db.QueryRowContext(ctx, `SELECT ques_id, ques_text, placeholder, category_id FROM input_ques WHERE ques_id = ?`, id).
		Scan(&q.ID, &q.Text, &q.Placeholder, &q.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}
