package model

import (
	"strings"
	"time"
)

// Experience is one work-history entry. EndDate is nil for a current job.
type Experience struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	IsCurrent   bool       `json:"is_current"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ExperiencePatch struct {
	Title       *string    `json:"title"`
	Company     *string    `json:"company"`
	Location    *string    `json:"location"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsCurrent   *bool      `json:"is_current"`
}

func (p ExperiencePatch) Apply(e *Experience) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Company != nil {
		e.Company = strings.TrimSpace(*p.Company)
	}
	if p.Location != nil {
		e.Location = strings.TrimSpace(*p.Location)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		e.EndDate = &end
	}
	if p.IsCurrent != nil {
		e.IsCurrent = *p.IsCurrent
		if e.IsCurrent {
			e.EndDate = nil
		}
	}
}

// Education is one school entry.
type Education struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	School       string     `json:"school"`
	Degree       string     `json:"degree"`
	FieldOfStudy string     `json:"field_of_study,omitempty"`
	Description  string     `json:"description,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsCurrent    bool       `json:"is_current"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type EducationPatch struct {
	School       *string    `json:"school"`
	Degree       *string    `json:"degree"`
	FieldOfStudy *string    `json:"field_of_study"`
	Description  *string    `json:"description"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	IsCurrent    *bool      `json:"is_current"`
}

func (p EducationPatch) Apply(e *Education) {
	if p.School != nil {
		e.School = strings.TrimSpace(*p.School)
	}
	if p.Degree != nil {
		e.Degree = strings.TrimSpace(*p.Degree)
	}
	if p.FieldOfStudy != nil {
		e.FieldOfStudy = strings.TrimSpace(*p.FieldOfStudy)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		e.EndDate = &end
	}
	if p.IsCurrent != nil {
		e.IsCurrent = *p.IsCurrent
		if e.IsCurrent {
			e.EndDate = nil
		}
	}
}

// Skill is a named skill with optional proficiency ("beginner", "expert")
// and category ("frontend", "devops").
type Skill struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Name        string    `json:"name"`
	Proficiency string    `json:"proficiency,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SkillPatch struct {
	Name        *string `json:"name"`
	Proficiency *string `json:"proficiency"`
	Category    *string `json:"category"`
}

func (p SkillPatch) Apply(s *Skill) {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Proficiency != nil {
		s.Proficiency = strings.TrimSpace(*p.Proficiency)
	}
	if p.Category != nil {
		s.Category = strings.TrimSpace(*p.Category)
	}
}

// Portfolio is the public, read-only view served at /portfolio/{username}.
type Portfolio struct {
	User        PublicUser      `json:"user"`
	Projects    []PublicProject `json:"projects"`
	Experiences []Experience    `json:"experiences"`
	Education   []Education     `json:"education"`
	Skills      []Skill         `json:"skills"`
}
