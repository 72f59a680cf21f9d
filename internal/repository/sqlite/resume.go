package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/onelink-portfolio/internal/apperror"
	"github.com/sakif/onelink-portfolio/internal/model"
	"github.com/sakif/onelink-portfolio/internal/repository"
)

// ResumeDB stores experience, education and skill entries.
type ResumeDB struct {
	conn *sql.DB
}

var _ repository.ResumeRepository = (*ResumeDB)(nil)

func (db *DB) Resume() *ResumeDB {
	return &ResumeDB{conn: db.conn}
}

// ---- experience ----

const experienceColumns = `id, user_id, title, company, location, description,
	start_date, end_date, is_current, created_at, updated_at`

func scanExperience(row scanner) (*model.Experience, error) {
	var (
		e   model.Experience
		end sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Company, &e.Location, &e.Description,
		&e.StartDate, &end, &e.IsCurrent, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.EndDate = timePtr(end)
	return &e, nil
}

func (s *ResumeDB) CreateExperience(ctx context.Context, e *model.Experience) error {
	e.ID = xid.New().String()
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO experiences (`+experienceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Company, e.Location, e.Description,
		e.StartDate.UTC(), nullTime(e.EndDate), e.IsCurrent, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting experience: %w", err)
	}
	return nil
}

func (s *ResumeDB) GetExperience(ctx context.Context, userID, id string) (*model.Experience, error) {
	e, err := scanExperience(s.conn.QueryRowContext(ctx,
		`SELECT `+experienceColumns+` FROM experiences WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("experience", id)
		}
		return nil, fmt.Errorf("sqlite: getting experience %s: %w", id, err)
	}
	return e, nil
}

// ListExperiences returns current positions first, then by start date.
func (s *ResumeDB) ListExperiences(ctx context.Context, userID string) ([]model.Experience, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+experienceColumns+` FROM experiences WHERE user_id = ?
		 ORDER BY is_current DESC, start_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing experiences: %w", err)
	}
	defer rows.Close()

	out := make([]model.Experience, 0)
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning experience: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *ResumeDB) UpdateExperience(ctx context.Context, e *model.Experience) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE experiences SET title = ?, company = ?, location = ?, description = ?,
			start_date = ?, end_date = ?, is_current = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		e.Title, e.Company, e.Location, e.Description,
		e.StartDate.UTC(), nullTime(e.EndDate), e.IsCurrent, e.UpdatedAt,
		e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating experience %s: %w", e.ID, err)
	}
	return expectOneRow(res, "experience", e.ID)
}

func (s *ResumeDB) DeleteExperience(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, "experiences", "experience", userID, id)
}

// ---- education ----

const educationColumns = `id, user_id, school, degree, field_of_study, description,
	start_date, end_date, is_current, created_at, updated_at`

func scanEducation(row scanner) (*model.Education, error) {
	var (
		e   model.Education
		end sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.School, &e.Degree, &e.FieldOfStudy, &e.Description,
		&e.StartDate, &end, &e.IsCurrent, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.EndDate = timePtr(end)
	return &e, nil
}

func (s *ResumeDB) CreateEducation(ctx context.Context, e *model.Education) error {
	e.ID = xid.New().String()
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO education (`+educationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.School, e.Degree, e.FieldOfStudy, e.Description,
		e.StartDate.UTC(), nullTime(e.EndDate), e.IsCurrent, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting education: %w", err)
	}
	return nil
}

func (s *ResumeDB) GetEducation(ctx context.Context, userID, id string) (*model.Education, error) {
	e, err := scanEducation(s.conn.QueryRowContext(ctx,
		`SELECT `+educationColumns+` FROM education WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("education", id)
		}
		return nil, fmt.Errorf("sqlite: getting education %s: %w", id, err)
	}
	return e, nil
}

func (s *ResumeDB) ListEducation(ctx context.Context, userID string) ([]model.Education, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+educationColumns+` FROM education WHERE user_id = ?
		 ORDER BY is_current DESC, start_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing education: %w", err)
	}
	defer rows.Close()

	out := make([]model.Education, 0)
	for rows.Next() {
		e, err := scanEducation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning education: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *ResumeDB) UpdateEducation(ctx context.Context, e *model.Education) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE education SET school = ?, degree = ?, field_of_study = ?, description = ?,
			start_date = ?, end_date = ?, is_current = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		e.School, e.Degree, e.FieldOfStudy, e.Description,
		e.StartDate.UTC(), nullTime(e.EndDate), e.IsCurrent, e.UpdatedAt,
		e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating education %s: %w", e.ID, err)
	}
	return expectOneRow(res, "education", e.ID)
}

func (s *ResumeDB) DeleteEducation(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, "education", "education", userID, id)
}

// ---- skills ----

const skillColumns = `id, user_id, name, proficiency, category, created_at, updated_at`

func scanSkill(row scanner) (*model.Skill, error) {
	var sk model.Skill
	if err := row.Scan(&sk.ID, &sk.UserID, &sk.Name, &sk.Proficiency, &sk.Category,
		&sk.CreatedAt, &sk.UpdatedAt); err != nil {
		return nil, err
	}
	return &sk, nil
}

func (s *ResumeDB) CreateSkill(ctx context.Context, sk *model.Skill) error {
	sk.ID = xid.New().String()
	now := time.Now().UTC()
	sk.CreatedAt, sk.UpdatedAt = now, now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO skills (`+skillColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sk.ID, sk.UserID, sk.Name, sk.Proficiency, sk.Category, sk.CreatedAt, sk.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting skill: %w", err)
	}
	return nil
}

func (s *ResumeDB) GetSkill(ctx context.Context, userID, id string) (*model.Skill, error) {
	sk, err := scanSkill(s.conn.QueryRowContext(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("skill", id)
		}
		return nil, fmt.Errorf("sqlite: getting skill %s: %w", id, err)
	}
	return sk, nil
}

// ListSkills groups by category, then name.
func (s *ResumeDB) ListSkills(ctx context.Context, userID string) ([]model.Skill, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE user_id = ? ORDER BY category, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing skills: %w", err)
	}
	defer rows.Close()

	out := make([]model.Skill, 0)
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning skill: %w", err)
		}
		out = append(out, *sk)
	}
	return out, rows.Err()
}

func (s *ResumeDB) UpdateSkill(ctx context.Context, sk *model.Skill) error {
	sk.UpdatedAt = time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`UPDATE skills SET name = ?, proficiency = ?, category = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		sk.Name, sk.Proficiency, sk.Category, sk.UpdatedAt, sk.ID, sk.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating skill %s: %w", sk.ID, err)
	}
	return expectOneRow(res, "skill", sk.ID)
}

func (s *ResumeDB) DeleteSkill(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, "skills", "skill", userID, id)
}

// deleteOwned deletes one row of table owned by userID. table is always a
// constant from this file.
func (s *ResumeDB) deleteOwned(ctx context.Context, table, resource, userID, id string) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %s: %w", resource, id, err)
	}
	return expectOneRow(res, resource, id)
}
