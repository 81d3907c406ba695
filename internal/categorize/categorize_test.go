package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/spotlang/internal/models"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		name        string
		revenueType string
		spotType    string
		want        models.SpotCategory
	}{
		{"internal com", models.RevenueTypeInternalAdSales, models.SpotTypeCommercial, models.CategoryLanguageRequired},
		{"internal bonus", models.RevenueTypeInternalAdSales, models.SpotTypeBonus, models.CategoryLanguageRequired},
		{"internal pkg review", models.RevenueTypeInternalAdSales, models.SpotTypePackage, models.CategoryReview},
		{"internal crd review", models.RevenueTypeInternalAdSales, models.SpotTypeCredit, models.CategoryReview},
		{"internal av review", models.RevenueTypeInternalAdSales, models.SpotTypeAvail, models.CategoryReview},
		{"internal unknown spot type falls back", models.RevenueTypeInternalAdSales, models.SpotTypeService, models.CategoryReview},
		{"local always language required", models.RevenueTypeLocal, "", models.CategoryLanguageRequired},
		{"local with any spot type", models.RevenueTypeLocal, models.SpotTypePackage, models.CategoryLanguageRequired},
		{"other com review", models.RevenueTypeOther, models.SpotTypeCommercial, models.CategoryReview},
		{"other empty spot type review", models.RevenueTypeOther, "", models.CategoryReview},
		{"other svc default english", models.RevenueTypeOther, models.SpotTypeService, models.CategoryDefaultEnglish},
		{"other prd default english", models.RevenueTypeOther, models.SpotTypeProduction, models.CategoryDefaultEnglish},
		{"other unknown spot type falls back", models.RevenueTypeOther, models.SpotTypePackage, models.CategoryReview},
		{"direct response default english", models.RevenueTypeDirectResponse, models.SpotTypeCommercial, models.CategoryDefaultEnglish},
		{"paid programming default english", models.RevenueTypePaidProgramming, models.SpotTypeProgramming, models.CategoryDefaultEnglish},
		{"branded content default english", models.RevenueTypeBrandedContent, models.SpotTypeCommercial, models.CategoryDefaultEnglish},
		{"unrecognized revenue type falls back", "Barter", models.SpotTypeCommercial, models.CategoryReview},
		{"empty revenue type falls back", "", "", models.CategoryReview},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Categorize(tc.revenueType, tc.spotType)
			assert.Equal(t, tc.want, got)
		})
	}
}
