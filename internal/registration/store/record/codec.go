package record

import (
	"fmt"

	"enrolld/internal/registration/models"
)

// The external schema stores every choice field as a small integer. The
// mappings live here, at the persistence boundary, so business logic only
// ever sees the typed constants.

const (
	wireRegionDomestic = 1
	wireRegionOverseas = 2
	wireRegionOther    = 9

	wireDegreeBachelor     = 1
	wireDegreeMaster       = 2
	wireDegreeDoctorate    = 3
	wireDegreeProfessional = 4

	wireCategoryStudent     = 1
	wireCategoryNewGraduate = 2
	wireCategoryGraduate    = 3
)

func encodeRegion(region models.InstitutionRegion) (int, error) {
	switch region {
	case models.RegionDomestic:
		return wireRegionDomestic, nil
	case models.RegionOverseas:
		return wireRegionOverseas, nil
	case models.RegionOther:
		return wireRegionOther, nil
	}
	return 0, fmt.Errorf("unknown institution region %q", region)
}

func decodeRegion(code int) (models.InstitutionRegion, error) {
	switch code {
	case wireRegionDomestic:
		return models.RegionDomestic, nil
	case wireRegionOverseas:
		return models.RegionOverseas, nil
	case wireRegionOther:
		return models.RegionOther, nil
	}
	return "", fmt.Errorf("unknown institution region code %d", code)
}

func encodeDegree(degree models.DegreeType) (int, error) {
	switch degree {
	case models.DegreeBachelor:
		return wireDegreeBachelor, nil
	case models.DegreeMaster:
		return wireDegreeMaster, nil
	case models.DegreeDoctorate:
		return wireDegreeDoctorate, nil
	case models.DegreeProfessional:
		return wireDegreeProfessional, nil
	}
	return 0, fmt.Errorf("unknown degree type %q", degree)
}

func decodeDegree(code int) (models.DegreeType, error) {
	switch code {
	case wireDegreeBachelor:
		return models.DegreeBachelor, nil
	case wireDegreeMaster:
		return models.DegreeMaster, nil
	case wireDegreeDoctorate:
		return models.DegreeDoctorate, nil
	case wireDegreeProfessional:
		return models.DegreeProfessional, nil
	}
	return "", fmt.Errorf("unknown degree type code %d", code)
}

func encodeCategory(category models.Category) (int, error) {
	switch category {
	case models.CategoryStudent:
		return wireCategoryStudent, nil
	case models.CategoryNewGraduate:
		return wireCategoryNewGraduate, nil
	case models.CategoryGraduate:
		return wireCategoryGraduate, nil
	}
	return 0, fmt.Errorf("unknown category %q", category)
}

func decodeCategory(code int) (models.Category, error) {
	switch code {
	case wireCategoryStudent:
		return models.CategoryStudent, nil
	case wireCategoryNewGraduate:
		return models.CategoryNewGraduate, nil
	case wireCategoryGraduate:
		return models.CategoryGraduate, nil
	}
	return "", fmt.Errorf("unknown category code %d", code)
}
