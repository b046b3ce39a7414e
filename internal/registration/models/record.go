package models

import (
	"time"

	id "enrolld/pkg/domain"
)

// DomesticCountry is the country value a domestic-tagged institution must
// pair with.
const DomesticCountry = "JP"

// InstitutionRegion tags where a candidate's institution sits relative to the
// program's home market. The external schema stores this as a small integer;
// the mapping lives in store/record and never leaks past it.
type InstitutionRegion string

const (
	RegionDomestic InstitutionRegion = "domestic"
	RegionOverseas InstitutionRegion = "overseas"
	RegionOther    InstitutionRegion = "other"
)

// IsValid reports whether the region is one of the known tags.
func (r InstitutionRegion) IsValid() bool {
	switch r {
	case RegionDomestic, RegionOverseas, RegionOther:
		return true
	}
	return false
}

// DegreeType classifies the degree being registered.
type DegreeType string

const (
	DegreeBachelor     DegreeType = "bachelor"
	DegreeMaster       DegreeType = "master"
	DegreeDoctorate    DegreeType = "doctorate"
	DegreeProfessional DegreeType = "professional"
)

// IsValid reports whether the degree type is known.
func (d DegreeType) IsValid() bool {
	switch d {
	case DegreeBachelor, DegreeMaster, DegreeDoctorate, DegreeProfessional:
		return true
	}
	return false
}

// ProfessionalDegreeIntroduced is the first year professional degrees were
// awarded; earlier pairings are implausible and flagged as warnings.
const ProfessionalDegreeIntroduced = 2003

// Category is the membership classification derived from the graduation year
// and the admin-controlled benefit cutoff. It is never accepted from client
// input.
type Category string

const (
	CategoryStudent     Category = "student"
	CategoryNewGraduate Category = "new_graduate"
	CategoryGraduate    Category = "graduate"
)

// IsValid reports whether the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryStudent, CategoryNewGraduate, CategoryGraduate:
		return true
	}
	return false
}

// CandidateRecord is the field set staged by the client. Every field is
// optional: a nil pointer means "absent", which validation skips rather than
// fails. The struct is immutable once staged; derived values (the category)
// live on the session and are merged in only when the backend record is
// built.
type CandidateRecord struct {
	GraduationYear    *int               `json:"graduation_year,omitempty"`
	InstitutionName   *string            `json:"institution_name,omitempty"`
	InstitutionRegion *InstitutionRegion `json:"institution_region,omitempty"`
	Country           *string            `json:"country,omitempty"`
	DegreeType        *DegreeType        `json:"degree_type,omitempty"`
	WorksInIndustry   *bool              `json:"works_in_industry,omitempty"`
}

// Clone returns a copy with freshly allocated field pointers.
func (c CandidateRecord) Clone() CandidateRecord {
	out := CandidateRecord{}
	if c.GraduationYear != nil {
		year := *c.GraduationYear
		out.GraduationYear = &year
	}
	if c.InstitutionName != nil {
		name := *c.InstitutionName
		out.InstitutionName = &name
	}
	if c.InstitutionRegion != nil {
		region := *c.InstitutionRegion
		out.InstitutionRegion = &region
	}
	if c.Country != nil {
		country := *c.Country
		out.Country = &country
	}
	if c.DegreeType != nil {
		degree := *c.DegreeType
		out.DegreeType = &degree
	}
	if c.WorksInIndustry != nil {
		works := *c.WorksInIndustry
		out.WorksInIndustry = &works
	}
	return out
}

// EducationRecord is the persisted form of a completed registration.
type EducationRecord struct {
	ID                id.RecordID
	MemberNumber      id.MemberNumber
	AccountID         id.AccountID
	GraduationYear    int
	InstitutionName   string
	InstitutionRegion InstitutionRegion
	Country           string
	DegreeType        DegreeType
	WorksInIndustry   bool
	Category          Category
	CreatedAt         time.Time
}

// RecordFilter expresses the equality and range constraints the persistence
// gateway supports. Zero values mean "no constraint".
type RecordFilter struct {
	MemberNumber id.MemberNumber
	AccountID    id.AccountID
	ExcludeID    id.RecordID
	YearFrom     int
	YearTo       int
}

// Matches reports whether a record satisfies the filter. Store
// implementations that cannot push the predicate down use it directly.
func (f RecordFilter) Matches(record *EducationRecord) bool {
	if !f.MemberNumber.IsEmpty() && record.MemberNumber != f.MemberNumber {
		return false
	}
	if !f.AccountID.IsEmpty() && record.AccountID != f.AccountID {
		return false
	}
	if !f.ExcludeID.IsNil() && record.ID == f.ExcludeID {
		return false
	}
	if f.YearFrom != 0 && record.GraduationYear < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && record.GraduationYear > f.YearTo {
		return false
	}
	return true
}
