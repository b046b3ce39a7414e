// Package rules holds the pure business-rule predicates for candidate
// education records. Functions here never touch I/O and never return Go
// errors; every outcome, including malformed input, is expressed in the
// Result so callers can aggregate and report.
package rules

import (
	"fmt"

	"enrolld/internal/registration/models"
)

// Result is the outcome of a single rule check.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func pass(warnings ...string) Result {
	return Result{Valid: true, Warnings: warnings}
}

func fail(errs ...string) Result {
	return Result{Valid: false, Errors: errs}
}

// Rule names, used in validation outcomes and audit events.
const (
	RuleGeographicAlignment = "geographic_alignment"
	RuleTemporalBound       = "temporal_bound"
	RuleWorkDeclaration     = "work_declaration"
	RuleDegreePlausibility  = "degree_plausibility"
)

// GraduationYearFloor is the program's inception year; earlier graduation
// years cannot be genuine.
const GraduationYearFloor = 1960

// GraduationYearHeadroom bounds how far into the future a declared graduation
// year may lie.
const GraduationYearHeadroom = 10

// GeographicAlignment checks that the institution's region tag and the
// declared country agree. A domestic institution must pair with the domestic
// country; any other pairing of a domestic tag is an error, never a warning.
// Overseas pairings are accepted with an advisory warning, and an "other"
// institution always carries the advisory regardless of country.
func GeographicAlignment(region models.InstitutionRegion, country string) Result {
	if !region.IsValid() {
		return fail(fmt.Sprintf("unknown institution region %q", region))
	}

	if region == models.RegionOther {
		return pass("institution tagged as other may require additional verification")
	}

	domestic := country == models.DomesticCountry
	switch {
	case region == models.RegionDomestic && domestic:
		return pass()
	case region == models.RegionDomestic && !domestic:
		return fail(fmt.Sprintf("domestic institution cannot pair with country %q", country))
	case region == models.RegionOverseas && domestic:
		return fail("overseas institution cannot pair with the domestic country")
	default:
		return pass("overseas registration may require additional verification")
	}
}

// TemporalBound checks that a graduation year sits inside the program's
// plausible range. Years past the current year are accepted with a warning
// as long as they stay within the headroom.
func TemporalBound(year, currentYear int) Result {
	if year < GraduationYearFloor {
		return fail(fmt.Sprintf("graduation year %d precedes program inception (%d)", year, GraduationYearFloor))
	}
	if year > currentYear+GraduationYearHeadroom {
		return fail(fmt.Sprintf("graduation year %d exceeds %d", year, currentYear+GraduationYearHeadroom))
	}
	if year > currentYear {
		return pass(fmt.Sprintf("graduation year %d is in the future", year))
	}
	return pass()
}

// WorkDeclaration checks the industry work declaration. The value must be
// exactly true or exactly false; nil means the question was never answered.
// In a registration context the declaration must be affirmative: false and
// absent are both required-field errors, not formatting problems. Outside
// registration an explicit false is a valid answer.
func WorkDeclaration(declared *bool, registration bool) Result {
	if declared == nil {
		if registration {
			return fail("work declaration is required")
		}
		return fail("work declaration must be explicitly true or false")
	}
	if registration && !*declared {
		return fail("an affirmative work declaration is required")
	}
	return pass()
}

// DegreePlausibility flags historically implausible degree/year pairings.
// These are advisories only and never block a registration.
func DegreePlausibility(degree models.DegreeType, year int) Result {
	if !degree.IsValid() {
		return fail(fmt.Sprintf("unknown degree type %q", degree))
	}
	if degree == models.DegreeProfessional && year < models.ProfessionalDegreeIntroduced {
		return pass(fmt.Sprintf("professional degrees were not awarded before %d", models.ProfessionalDegreeIntroduced))
	}
	return pass()
}
