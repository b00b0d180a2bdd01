package triage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"healthsync/internal/platform/database"
)

type postgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

const sessionColumns = `id, user_id, initial_symptom, age, gender, state, status,
	current_step, top_confidence, emergency_message, created_at, completed_at`

func (r *postgresStore) CreateSession(ctx context.Context, s *SymptomSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	query := `INSERT INTO symptom_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, nullUUID(s.UserID), s.InitialSymptom, nullInt(s.Age), s.Gender, s.State, string(s.Status),
		s.CurrentStep, s.TopConfidence, s.EmergencyMessage, s.CreatedAt, nullTime(s.CompletedAt))
	return err
}

func (r *postgresStore) GetSession(ctx context.Context, id uuid.UUID) (*SymptomSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM symptom_sessions WHERE id = $1`

	var (
		s         SymptomSession
		userID    uuid.NullUUID
		age       sql.NullInt64
		status    string
		completed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&userID,
		&s.InitialSymptom,
		&age,
		&s.Gender,
		&s.State,
		&status,
		&s.CurrentStep,
		&s.TopConfidence,
		&s.EmergencyMessage,
		&s.CreatedAt,
		&completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.Status = SessionStatus(status)
	if userID.Valid {
		u := userID.UUID
		s.UserID = &u
	}
	if age.Valid {
		a := int(age.Int64)
		s.Age = &a
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

func (r *postgresStore) UpdateSession(ctx context.Context, s *SymptomSession) error {
	query := `
		UPDATE symptom_sessions SET
			status = $2,
			current_step = $3,
			top_confidence = $4,
			emergency_message = $5,
			completed_at = $6
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		s.ID, string(s.Status), s.CurrentStep, s.TopConfidence, s.EmergencyMessage, nullTime(s.CompletedAt))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *postgresStore) CreateAnswer(ctx context.Context, a *SessionAnswer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	query := `
		INSERT INTO session_answers (session_id, question_id, answer_value, normalized_bool, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		a.SessionID, a.QuestionID, a.AnswerValue, a.Normalized.Ptr(), a.AnsweredAt,
	).Scan(&a.ID)
}

func (r *postgresStore) ListAnswers(ctx context.Context, sessionID uuid.UUID) ([]SessionAnswer, error) {
	query := `
		SELECT a.id, a.session_id, a.question_id, a.answer_value, a.normalized_bool, a.answered_at,
			q.id, q.text, q.answer_type, q.options, q.weight, q.active, q.symptom_id
		FROM session_answers a
		JOIN diagnostic_questions q ON q.id = a.question_id
		WHERE a.session_id = $1
		ORDER BY a.answered_at, a.id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionAnswer
	for rows.Next() {
		var (
			a          SessionAnswer
			normalized sql.NullBool
			answerType string
			options    []byte
		)
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.QuestionID, &a.AnswerValue, &normalized, &a.AnsweredAt,
			&a.Question.ID, &a.Question.Text, &answerType, &options, &a.Question.Weight,
			&a.Question.Active, &a.Question.SymptomID,
		); err != nil {
			return nil, err
		}
		if normalized.Valid {
			b := normalized.Bool
			a.Normalized = TristateFromPtr(&b)
		}
		a.Question.AnswerType = AnswerType(answerType)
		if a.Question.Options, err = decodeOptions(options); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *postgresStore) ListConditions(ctx context.Context, ids []int64) ([]Condition, error) {
	query := `SELECT id, name, description, urgency_level, specialization FROM conditions`
	var args []any
	if ids != nil {
		query += ` WHERE id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Condition
	for rows.Next() {
		var c Condition
		var urgency string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &urgency, &c.Specialization); err != nil {
			return nil, err
		}
		c.UrgencyLevel = UrgencyLevel(urgency)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresStore) FindConditionByName(ctx context.Context, name string) (*Condition, error) {
	query := `
		SELECT id, name, description, urgency_level, specialization
		FROM conditions
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY id
		LIMIT 1`
	var c Condition
	var urgency string
	err := r.db.QueryRowContext(ctx, query, database.ContainsPattern(name)).
		Scan(&c.ID, &c.Name, &c.Description, &urgency, &c.Specialization)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.UrgencyLevel = UrgencyLevel(urgency)
	return &c, nil
}

func (r *postgresStore) MatchSymptomIDs(ctx context.Context, text string) ([]int64, error) {
	// The reverse direction uses strpos so catalog names are never read as
	// patterns.
	query := `
		SELECT id FROM symptoms
		WHERE name ILIKE $1 ESCAPE '\' OR strpos(lower($2), lower(name)) > 0
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, database.ContainsPattern(text), text)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresStore) LinksForSymptoms(ctx context.Context, symptomIDs []int64) ([]ConditionSymptom, error) {
	if len(symptomIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, condition_id, symptom_id, weight, is_red_flag
		FROM condition_symptoms
		WHERE symptom_id = ANY($1)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(symptomIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConditionSymptom
	for rows.Next() {
		var l ConditionSymptom
		if err := rows.Scan(&l.ID, &l.ConditionID, &l.SymptomID, &l.Weight, &l.IsRedFlag); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const questionColumns = `id, text, answer_type, options, weight, active, symptom_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*DiagnosticQuestion, error) {
	var (
		q          DiagnosticQuestion
		answerType string
		options    []byte
	)
	if err := row.Scan(&q.ID, &q.Text, &answerType, &options, &q.Weight, &q.Active, &q.SymptomID); err != nil {
		return nil, err
	}
	q.AnswerType = AnswerType(answerType)
	var err error
	if q.Options, err = decodeOptions(options); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *postgresStore) GetQuestion(ctx context.Context, id int64) (*DiagnosticQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM diagnostic_questions WHERE id = $1`
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	return q, err
}

func (r *postgresStore) ListActiveQuestions(ctx context.Context) ([]DiagnosticQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM diagnostic_questions WHERE active ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DiagnosticQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *postgresStore) FindQuestion(ctx context.Context, symptomID int64, text string) (*DiagnosticQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM diagnostic_questions
		WHERE symptom_id = $1 AND text = $2
		ORDER BY id LIMIT 1`
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, symptomID, text))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (r *postgresStore) CreateQuestion(ctx context.Context, q *DiagnosticQuestion) error {
	if q.Options == nil {
		q.Options = []string{}
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO diagnostic_questions (text, answer_type, options, weight, active, symptom_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		q.Text, string(q.AnswerType), options, q.Weight, q.Active, q.SymptomID,
	).Scan(&q.ID)
}

func (r *postgresStore) GetOrCreateBodyArea(ctx context.Context, name string) (*BodyArea, error) {
	query := `
		INSERT INTO body_areas (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`
	var b BodyArea
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&b.ID, &b.Name); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *postgresStore) FindSymptomByName(ctx context.Context, name string) (*Symptom, error) {
	query := `SELECT id, name, body_area_id FROM symptoms WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`
	var s Symptom
	err := r.db.QueryRowContext(ctx, query, name).Scan(&s.ID, &s.Name, &s.BodyAreaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *postgresStore) CreateSymptom(ctx context.Context, s *Symptom) error {
	query := `INSERT INTO symptoms (name, body_area_id) VALUES ($1, $2) RETURNING id`
	return r.db.QueryRowContext(ctx, query, s.Name, s.BodyAreaID).Scan(&s.ID)
}

func (r *postgresStore) SaveSnapshots(ctx context.Context, sessionID uuid.UUID, ranked []RankedCondition) error {
	if len(ranked) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO condition_score_snapshots (session_id, condition_id, score, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, condition_id) DO UPDATE SET
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at`
	now := time.Now()
	for _, rc := range ranked {
		if _, err := tx.ExecContext(ctx, query, sessionID, rc.Condition.ID, rc.Score, rc.Confidence, now); err != nil {
			return fmt.Errorf("upsert snapshot for condition %d: %w", rc.Condition.ID, err)
		}
	}
	return tx.Commit()
}

func (r *postgresStore) ListSnapshots(ctx context.Context, sessionID uuid.UUID) ([]RankedCondition, error) {
	query := `
		SELECT c.id, c.name, c.description, c.urgency_level, c.specialization, s.score, s.confidence
		FROM condition_score_snapshots s
		JOIN conditions c ON c.id = s.condition_id
		WHERE s.session_id = $1
		ORDER BY s.score DESC, c.id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RankedCondition
	for rows.Next() {
		var rc RankedCondition
		var urgency string
		if err := rows.Scan(
			&rc.Condition.ID, &rc.Condition.Name, &rc.Condition.Description, &urgency,
			&rc.Condition.Specialization, &rc.Score, &rc.Confidence,
		); err != nil {
			return nil, err
		}
		rc.Condition.UrgencyLevel = UrgencyLevel(urgency)
		out = append(out, rc)
	}
	return out, rows.Err()
}

func decodeOptions(raw []byte) ([]string, error) {
	opts := []string{}
	if len(raw) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode question options: %w", err)
	}
	return opts, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
