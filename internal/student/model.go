package student

import (
	"strings"
	"time"

	"student-registry/internal/apperr"

	"github.com/uptrace/bun"
)

// Gender is stored as its string form, matching the MALE/FEMALE wire values.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts the wire form case-insensitively.
func ParseGender(s string) (Gender, error) {
	switch Gender(strings.ToUpper(s)) {
	case GenderMale:
		return GenderMale, nil
	case GenderFemale:
		return GenderFemale, nil
	default:
		return "", apperr.BadArgument("invalid gender %q, must be MALE or FEMALE", s)
	}
}

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID         int       `bun:"id,pk,autoincrement" json:"id"`
	Name       string    `bun:"name,notnull" json:"name" validate:"required,min=2,max=50"`
	Age        int       `bun:"age,notnull" json:"age" validate:"required,gte=15,lte=30"`
	Gender     Gender    `bun:"gender,notnull" json:"gender" validate:"required,oneof=MALE FEMALE"`
	Major      string    `bun:"major,notnull" json:"major" validate:"required,max=100"`
	ClassName  string    `bun:"class_name,notnull" json:"className" validate:"required,max=50"`
	Email      string    `bun:"email,unique,notnull" json:"email" validate:"required,email,max=100"`
	CreateTime time.Time `bun:"create_time,notnull" json:"createTime"`
	UpdateTime time.Time `bun:"update_time,notnull" json:"updateTime"`
}

// UpdateRequest is a partial update: nil means "leave the field untouched".
// Supplied values are merged onto the stored record and the merged record is
// re-validated as a whole, so a supplied blank or out-of-range value fails
// the same rules a create would.
type UpdateRequest struct {
	Name      *string `json:"name"`
	Age       *int    `json:"age"`
	Gender    *Gender `json:"gender"`
	Major     *string `json:"major"`
	ClassName *string `json:"className"`
	Email     *string `json:"email"`
}

// ApplyTo merges the supplied fields onto s.
func (u UpdateRequest) ApplyTo(s *Student) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Age != nil {
		s.Age = *u.Age
	}
	if u.Gender != nil {
		s.Gender = *u.Gender
	}
	if u.Major != nil {
		s.Major = *u.Major
	}
	if u.ClassName != nil {
		s.ClassName = *u.ClassName
	}
	if u.Email != nil {
		s.Email = *u.Email
	}
}

// PageRequest carries the paging and sorting parameters of a paged list.
type PageRequest struct {
	Page          int
	Size          int
	SortBy        string
	SortDirection string
}

// Page is one page of students plus the totals clients need for paging UIs.
type Page struct {
	Content       []Student `json:"content"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
}

// MajorCount is one row of the per-major aggregation.
type MajorCount struct {
	Major string `bun:"major" json:"major"`
	Count int    `bun:"count" json:"count"`
}
