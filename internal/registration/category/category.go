// Package category derives the membership classification from a graduation
// year and the admin-controlled benefit cutoff date.
//
// The cutoff date is deliberately sourced from the settings subsystem and
// never from client input: the new-graduate benefit window is time-boxed by
// an administrator, so users cannot self-declare discount eligibility.
package category

import (
	"time"

	"enrolld/internal/registration/models"
)

// Determine classifies a registrant. Pure and deterministic in its inputs:
// the same (year, cutoff, now) always yields the same category.
//
// Branch order matters and must not be rearranged:
//  1. year beyond the current year: still enrolled, STUDENT.
//  2. year is the current or previous year and today is on or before the
//     cutoff: inside the benefit window, NEW_GRADUATE.
//  3. everything else: GRADUATE. This single branch covers both years
//     earlier than the previous year and the current/previous year once the
//     cutoff has passed; case analysis shows the two need no distinct
//     handling.
func Determine(year int, cutoff time.Time, now time.Time) models.Category {
	currentYear := now.Year()

	if year > currentYear {
		return models.CategoryStudent
	}
	if (year == currentYear || year == currentYear-1) && !now.After(cutoff) {
		return models.CategoryNewGraduate
	}
	return models.CategoryGraduate
}
