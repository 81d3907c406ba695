// Package categorize implements C3, the pure categorizer: a total function
// from (revenue_type, spot_type) to a processing category (spec.md §4.3).
// Trade spots never reach this function; they are filtered upstream by the
// orchestrator (invariant I5).
package categorize

import "github.com/patrickwarner/spotlang/internal/models"

// Categorize maps a spot's revenue type and spot type to a processing
// category. Missing inputs are treated as empty strings, matching the
// source system's null-as-empty-string convention (spec.md §4.3).
func Categorize(revenueType, spotType string) models.SpotCategory {
	switch revenueType {
	case models.RevenueTypeInternalAdSales:
		switch spotType {
		case models.SpotTypeCommercial, models.SpotTypeBonus:
			return models.CategoryLanguageRequired
		case models.SpotTypePackage, models.SpotTypeCredit, models.SpotTypeAvail:
			return models.CategoryReview
		}
	case models.RevenueTypeLocal:
		return models.CategoryLanguageRequired
	case models.RevenueTypeOther:
		switch spotType {
		case models.SpotTypeCommercial, models.SpotTypeBonus, "":
			return models.CategoryReview
		case models.SpotTypeService, models.SpotTypeProduction:
			return models.CategoryDefaultEnglish
		}
	case models.RevenueTypeDirectResponse, models.RevenueTypePaidProgramming, models.RevenueTypeBrandedContent:
		return models.CategoryDefaultEnglish
	}

	return models.CategoryReview
}
