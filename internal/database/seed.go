package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jask/formdesk/internal/database/repository"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the catalog content loaded into a fresh database.
type Seed struct {
	Services   []repository.Service  `yaml:"services"`
	Categories []repository.Category `yaml:"categories"`
	Questions  []repository.Question `yaml:"questions"`
	Forms      []SeedForm            `yaml:"forms"`
}

// SeedForm is a form plus the ids of the questions it asks.
type SeedForm struct {
	repository.Form `yaml:",inline"`
	Questions       []string `yaml:"questions"`
}

// DefaultSeed returns the built-in sample catalog.
func DefaultSeed() (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(defaultSeed, &s); err != nil {
		return Seed{}, fmt.Errorf("parse default seed: %w", err)
	}
	return s, nil
}

// LoadSeed parses a YAML seed document.
func LoadSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

// SeedDefaults loads s into an empty database. It is idempotent and safe to
// run on every startup: a database that already has services is left alone.
func SeedDefaults(ctx context.Context, db *sql.DB, s Seed) error {
	n, err := repository.NewServiceRepo(db).Count(ctx)
	if err != nil {
		return fmt.Errorf("count services: %w", err)
	}
	if n > 0 {
		return nil
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		services := repository.NewServiceRepo(tx)
		forms := repository.NewFormRepo(tx)
		questions := repository.NewQuestionRepo(tx)
		for _, svc := range s.Services {
			if err := services.Upsert(ctx, svc); err != nil {
				return fmt.Errorf("seed service %s: %w", svc.ID, err)
			}
		}
		for _, c := range s.Categories {
			if err := questions.UpsertCategory(ctx, c); err != nil {
				return fmt.Errorf("seed category %s: %w", c.ID, err)
			}
		}
		for _, q := range s.Questions {
			if err := questions.Upsert(ctx, q); err != nil {
				return fmt.Errorf("seed question %s: %w", q.ID, err)
			}
		}
		for _, f := range s.Forms {
			if err := forms.Upsert(ctx, f.Form); err != nil {
				return fmt.Errorf("seed form %s: %w", f.ID, err)
			}
			for _, qid := range f.Questions {
				if err := forms.LinkQuestion(ctx, f.ID, qid); err != nil {
					return fmt.Errorf("link %s to %s: %w", qid, f.ID, err)
				}
			}
		}
		return nil
	})
}
