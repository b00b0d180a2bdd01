// Package catalog loads the condition/symptom/question catalog and the doctor
// directory from YAML into postgres.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"healthsync/internal/triage"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	BodyAreas  []BodyArea  `yaml:"body_areas"`
	Conditions []Condition `yaml:"conditions"`
	Doctors    []Doctor    `yaml:"doctors"`
}

type BodyArea struct {
	Name     string    `yaml:"name"`
	Symptoms []Symptom `yaml:"symptoms"`
}

type Symptom struct {
	Name      string     `yaml:"name"`
	Questions []Question `yaml:"questions"`
}

type Question struct {
	Text       string   `yaml:"text"`
	AnswerType string   `yaml:"answer_type"`
	Options    []string `yaml:"options"`
	Weight     float64  `yaml:"weight"`
}

type Condition struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Urgency        string `yaml:"urgency"`
	Specialization string `yaml:"specialization"`
	Symptoms       []Link `yaml:"symptoms"`
}

type Link struct {
	Symptom string  `yaml:"symptom"`
	Weight  float64 `yaml:"weight"`
	RedFlag bool    `yaml:"red_flag"`
}

type Doctor struct {
	Name           string   `yaml:"name"`
	Specialization string   `yaml:"specialization"`
	City           string   `yaml:"city"`
	Phone          string   `yaml:"phone"`
	Email          string   `yaml:"email"`
	Latitude       *float64 `yaml:"latitude"`
	Longitude      *float64 `yaml:"longitude"`
}

// Load reads the catalog at path, or the built-in starter catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a catalog. Defaults: answer_type yes_no,
// weight 1, urgency self_care.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	symptoms := make(map[string]bool)
	for i := range c.BodyAreas {
		area := &c.BodyAreas[i]
		if strings.TrimSpace(area.Name) == "" {
			return nil, fmt.Errorf("body area %d has no name", i)
		}
		for j := range area.Symptoms {
			s := &area.Symptoms[j]
			if strings.TrimSpace(s.Name) == "" {
				return nil, fmt.Errorf("body area %q: symptom %d has no name", area.Name, j)
			}
			symptoms[strings.ToLower(s.Name)] = true
			for k := range s.Questions {
				q := &s.Questions[k]
				if q.AnswerType == "" {
					q.AnswerType = string(triage.AnswerYesNo)
				}
				switch triage.AnswerType(q.AnswerType) {
				case triage.AnswerYesNo:
					q.Options = []string{"Yes", "No"}
				case triage.AnswerSingleChoice:
					if len(q.Options) < 2 {
						return nil, fmt.Errorf("question %q needs at least two options", q.Text)
					}
				case triage.AnswerText:
				default:
					return nil, fmt.Errorf("question %q: unknown answer type %q", q.Text, q.AnswerType)
				}
				if q.Weight == 0 {
					q.Weight = 1
				}
			}
		}
	}

	for i := range c.Conditions {
		cond := &c.Conditions[i]
		if cond.Urgency == "" {
			cond.Urgency = string(triage.UrgencySelfCare)
		}
		switch triage.UrgencyLevel(cond.Urgency) {
		case triage.UrgencySelfCare, triage.UrgencyClinic, triage.UrgencyEmergency:
		default:
			return nil, fmt.Errorf("condition %q: unknown urgency %q", cond.Name, cond.Urgency)
		}
		for j := range cond.Symptoms {
			l := &cond.Symptoms[j]
			if !symptoms[strings.ToLower(l.Symptom)] {
				return nil, fmt.Errorf("condition %q links unknown symptom %q", cond.Name, l.Symptom)
			}
			if l.Weight == 0 {
				l.Weight = 1
			}
		}
	}
	return &c, nil
}

// Seed writes the catalog in one transaction. Rows that already exist by name
// are reused, so running it twice changes nothing.
func Seed(ctx context.Context, db *sql.DB, c *Catalog, log *zap.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	symptomIDs := make(map[string]int64)
	for _, area := range c.BodyAreas {
		var areaID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO body_areas (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, area.Name).Scan(&areaID)
		if err != nil {
			return fmt.Errorf("seed body area %q: %w", area.Name, err)
		}
		for _, s := range area.Symptoms {
			id, err := findOrInsert(ctx, tx,
				`SELECT id FROM symptoms WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, []any{s.Name},
				`INSERT INTO symptoms (name, body_area_id) VALUES ($1, $2) RETURNING id`, []any{s.Name, areaID})
			if err != nil {
				return fmt.Errorf("seed symptom %q: %w", s.Name, err)
			}
			symptomIDs[strings.ToLower(s.Name)] = id

			for _, q := range s.Questions {
				opts, err := json.Marshal(q.Options)
				if err != nil {
					return err
				}
				_, err = findOrInsert(ctx, tx,
					`SELECT id FROM diagnostic_questions WHERE symptom_id = $1 AND text = $2 LIMIT 1`, []any{id, q.Text},
					`INSERT INTO diagnostic_questions (text, answer_type, options, weight, active, symptom_id)
					 VALUES ($1, $2, $3, $4, TRUE, $5) RETURNING id`, []any{q.Text, q.AnswerType, opts, q.Weight, id})
				if err != nil {
					return fmt.Errorf("seed question %q: %w", q.Text, err)
				}
			}
		}
	}

	for _, cond := range c.Conditions {
		condID, err := findOrInsert(ctx, tx,
			`SELECT id FROM conditions WHERE name = $1 LIMIT 1`, []any{cond.Name},
			`INSERT INTO conditions (name, description, urgency_level, specialization)
			 VALUES ($1, $2, $3, $4) RETURNING id`, []any{cond.Name, cond.Description, cond.Urgency, cond.Specialization})
		if err != nil {
			return fmt.Errorf("seed condition %q: %w", cond.Name, err)
		}
		for _, l := range cond.Symptoms {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO condition_symptoms (condition_id, symptom_id, weight, is_red_flag)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (condition_id, symptom_id) DO UPDATE
				SET weight = EXCLUDED.weight, is_red_flag = EXCLUDED.is_red_flag`,
				condID, symptomIDs[strings.ToLower(l.Symptom)], l.Weight, l.RedFlag)
			if err != nil {
				return fmt.Errorf("seed link %q/%q: %w", cond.Name, l.Symptom, err)
			}
		}
	}

	for _, d := range c.Doctors {
		_, err := findOrInsert(ctx, tx,
			`SELECT id FROM doctors WHERE name = $1 AND specialization = $2 LIMIT 1`, []any{d.Name, d.Specialization},
			`INSERT INTO doctors (name, specialization, city, phone, email, latitude, longitude)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			[]any{d.Name, d.Specialization, d.City, d.Phone, d.Email, d.Latitude, d.Longitude})
		if err != nil {
			return fmt.Errorf("seed doctor %q: %w", d.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("catalog seeded",
		zap.Int("body_areas", len(c.BodyAreas)),
		zap.Int("conditions", len(c.Conditions)),
		zap.Int("doctors", len(c.Doctors)))
	return nil
}

func findOrInsert(ctx context.Context, tx *sql.Tx, find string, findArgs []any, insert string, insertArgs []any) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, find, findArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	err = tx.QueryRowContext(ctx, insert, insertArgs...).Scan(&id)
	return id, err
}
