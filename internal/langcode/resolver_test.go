package langcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/spotlang/internal/models"
	"github.com/patrickwarner/spotlang/internal/refdata"
)

func testRef() *refdata.Store {
	return refdata.New([]models.Language{
		{ID: models.LanguageEnglish, Code: "E", Name: "English"},
		{ID: models.LanguageMandarin, Code: "M", Name: "Mandarin"},
		{ID: models.LanguageCantonese, Code: "C", Name: "Cantonese"},
		{ID: models.LanguageTagalog, Code: "T", Name: "Tagalog"},
		{ID: models.LanguageHmong, Code: "H", Name: "Hmong"},
	}, nil, nil)
}

func TestResolve_MissingSpot(t *testing.T) {
	r := New(testRef())
	a := r.Resolve(nil)
	assert.Equal(t, models.StatusInvalid, a.Status)
	assert.True(t, a.RequiresReview)
	assert.Equal(t, models.MethodErrorFallback, a.Method)
	assert.Equal(t, "E", a.LanguageCode)
}

func TestResolve_ComBBOverride(t *testing.T) {
	r := New(testRef())
	for _, raw := range []string{"", models.UndeterminedLanguageCode} {
		for _, st := range []string{models.SpotTypeCommercial, models.SpotTypeBillboard} {
			spot := &models.Spot{SpotID: 1, SpotType: st, LanguageCode: raw}
			a := r.Resolve(spot)
			require.Equal(t, models.MethodAutoDefaultComBB, a.Method, "spot type %s raw %q", st, raw)
			assert.Equal(t, models.StatusDetermined, a.Status)
			assert.False(t, a.RequiresReview)
			assert.Equal(t, "E", a.LanguageCode)
		}
	}
}

func TestResolve_MissingCodeNonComBB(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 2, SpotType: models.SpotTypePackage, LanguageCode: ""}
	a := r.Resolve(spot)
	assert.Equal(t, models.StatusDefault, a.Status)
	assert.Equal(t, models.MethodDefaultEnglish, a.Method)
	assert.Equal(t, 0.5, a.Confidence)
	assert.False(t, a.RequiresReview)
}

func TestResolve_Undetermined(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 3, SpotType: models.SpotTypePackage, RevenueType: models.RevenueTypeInternalAdSales, LanguageCode: "L"}
	a := r.Resolve(spot)
	assert.Equal(t, models.StatusUndetermined, a.Status)
	assert.True(t, a.RequiresReview)
	assert.Equal(t, models.MethodUndeterminedFlagged, a.Method)
}

func TestResolve_ValidCode(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 4, LanguageCode: "m"}
	a := r.Resolve(spot)
	assert.Equal(t, models.StatusDetermined, a.Status)
	assert.Equal(t, "M", a.LanguageCode)
	assert.Equal(t, models.MethodDirectMapping, a.Method)
	assert.Equal(t, float64(1), a.Confidence)
}

func TestResolve_InvalidCode(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 5, LanguageCode: "ZZ"}
	a := r.Resolve(spot)
	assert.Equal(t, models.StatusInvalid, a.Status)
	assert.True(t, a.RequiresReview)
	assert.Equal(t, "ZZ", a.LanguageCode)
	assert.Equal(t, models.MethodInvalidCodeFlagged, a.Method)
	assert.NotEmpty(t, a.Notes)
}

func TestResolveForCategory_DefaultEnglishBypassesResolver(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 6, LanguageCode: "ZZ"} // would be invalid under the base resolver
	a := r.ResolveForCategory(spot, models.CategoryDefaultEnglish)
	assert.Equal(t, models.StatusDetermined, a.Status)
	assert.Equal(t, models.MethodBusinessDefaultEng, a.Method)
	assert.False(t, a.RequiresReview)
	assert.Equal(t, "E", a.LanguageCode)
}

func TestResolveForCategory_LanguageRequiredUsesBaseResolver(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 7, LanguageCode: "c"}
	a := r.ResolveForCategory(spot, models.CategoryLanguageRequired)
	assert.Equal(t, models.MethodDirectMapping, a.Method)
	assert.Equal(t, "C", a.LanguageCode)
}

// S6 (spec.md §8): COM with raw L auto-defaults.
func TestScenario_S6_ComWithLAutoDefaults(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 8, SpotType: models.SpotTypeCommercial, LanguageCode: "L"}
	a := r.Resolve(spot)
	assert.Equal(t, "E", a.LanguageCode)
	assert.Equal(t, models.StatusDetermined, a.Status)
	assert.False(t, a.RequiresReview)
	assert.Equal(t, models.MethodAutoDefaultComBB, a.Method)
}

// S5 (spec.md §8): undetermined L on a non-COM spot type.
func TestScenario_S5_UndeterminedNonComBB(t *testing.T) {
	r := New(testRef())
	spot := &models.Spot{SpotID: 9, SpotType: models.SpotTypePackage, RevenueType: models.RevenueTypeInternalAdSales, LanguageCode: "L"}
	a := r.Resolve(spot)
	assert.Equal(t, models.StatusUndetermined, a.Status)
	assert.True(t, a.RequiresReview)
}

// P2 (spec.md §8): invalid/undetermined statuses always require review.
func TestInvariant_P2(t *testing.T) {
	r := New(testRef())
	invalid := r.Resolve(&models.Spot{SpotID: 10, LanguageCode: "XX"})
	undetermined := r.Resolve(&models.Spot{SpotID: 11, LanguageCode: "L"})
	assert.True(t, invalid.RequiresReview)
	assert.True(t, undetermined.RequiresReview)
}

// P4 (spec.md §8): COM/BB with null or L raw code always resolves to
// determined English.
func TestInvariant_P4(t *testing.T) {
	r := New(testRef())
	for _, st := range []string{models.SpotTypeCommercial, models.SpotTypeBillboard} {
		for _, raw := range []string{"", "L"} {
			a := r.Resolve(&models.Spot{SpotType: st, LanguageCode: raw})
			assert.Equal(t, "E", a.LanguageCode)
			assert.Equal(t, models.StatusDetermined, a.Status)
		}
	}
}
