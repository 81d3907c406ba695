// Package langcode implements C4, the Language Code Resolver: it turns a
// spot's raw language_code plus its category and spot_type into a
// LanguageAssignment (spec.md §4.4). Rules are applied in order; the first
// match wins.
package langcode

import (
	"strings"
	"time"

	"github.com/patrickwarner/spotlang/internal/models"
	"github.com/patrickwarner/spotlang/internal/refdata"
)

// Resolver resolves language codes against a reference-data snapshot. It
// carries no mutable state of its own (spec.md §9's note on hidden globals:
// the English-code cache lives in refdata.Store, not here), so a single
// Resolver value can be shared across an orchestrator's whole run.
type Resolver struct {
	ref *refdata.Store
	now func() time.Time
}

// New constructs a Resolver bound to a reference-data snapshot.
func New(ref *refdata.Store) *Resolver {
	return &Resolver{ref: ref, now: time.Now}
}

// Resolve implements the base rule cascade of spec.md §4.4, steps 1-6. It
// does not apply the category-level overrides (REVIEW generalization,
// DEFAULT_ENGLISH bypass); callers apply those via ResolveForCategory.
func (r *Resolver) Resolve(spot *models.Spot) models.LanguageAssignment {
	assigned := r.now()

	if spot == nil {
		return models.LanguageAssignment{
			LanguageCode:   r.ref.EnglishCode(),
			Status:         models.StatusInvalid,
			RequiresReview: true,
			Method:         models.MethodErrorFallback,
			AssignedDate:   assigned,
		}
	}

	raw := spot.LanguageCode

	// Rule 2: COM/BB override. A missing or undetermined code on a
	// commercial/billboard spot auto-defaults to English without a review
	// flag, ahead of the generic missing-code and undetermined rules below.
	if spot.SpotType == models.SpotTypeCommercial || spot.SpotType == models.SpotTypeBillboard {
		if raw == "" || raw == models.UndeterminedLanguageCode {
			return models.LanguageAssignment{
				SpotID:         spot.SpotID,
				LanguageCode:   r.ref.EnglishCode(),
				Status:         models.StatusDetermined,
				Confidence:     1,
				Method:         models.MethodAutoDefaultComBB,
				RequiresReview: false,
				AssignedDate:   assigned,
			}
		}
	}

	// Rule 3: missing code.
	if raw == "" {
		return models.LanguageAssignment{
			SpotID:       spot.SpotID,
			LanguageCode: r.ref.EnglishCode(),
			Status:       models.StatusDefault,
			Confidence:   0.5,
			Method:       models.MethodDefaultEnglish,
			AssignedDate: assigned,
		}
	}

	// Rule 4: undetermined sentinel.
	if raw == models.UndeterminedLanguageCode {
		return models.LanguageAssignment{
			SpotID:         spot.SpotID,
			LanguageCode:   models.UndeterminedLanguageCode,
			Status:         models.StatusUndetermined,
			Confidence:     0,
			Method:         models.MethodUndeterminedFlagged,
			RequiresReview: true,
			AssignedDate:   assigned,
		}
	}

	// Rule 5: valid code, direct mapping.
	upper := strings.ToUpper(raw)
	if r.ref.IsValidCode(upper) {
		return models.LanguageAssignment{
			SpotID:       spot.SpotID,
			LanguageCode: upper,
			Status:       models.StatusDetermined,
			Confidence:   1,
			Method:       models.MethodDirectMapping,
			AssignedDate: assigned,
		}
	}

	// Rule 6: invalid code, round-trips as-is so the raw junk is visible to
	// the human reviewer.
	return models.LanguageAssignment{
		SpotID:         spot.SpotID,
		LanguageCode:   raw,
		Status:         models.StatusInvalid,
		Confidence:     0,
		Method:         models.MethodInvalidCodeFlagged,
		RequiresReview: true,
		Notes:          "raw language code not in the languages table",
		AssignedDate:   assigned,
	}
}

// ResolveForCategory applies category-specific overrides on top of the base
// cascade (spec.md §4.4):
//
//   - DEFAULT_ENGLISH bypasses the resolver entirely.
//   - REVIEW generalizes any still-flagged, non-undetermined/invalid result
//     to a fixed business-review assignment.
//   - LANGUAGE_REQUIRED uses the base resolver unmodified.
func (r *Resolver) ResolveForCategory(spot *models.Spot, category models.SpotCategory) models.LanguageAssignment {
	if category == models.CategoryDefaultEnglish {
		return models.LanguageAssignment{
			SpotID:         spot.SpotID,
			LanguageCode:   r.ref.EnglishCode(),
			Status:         models.StatusDetermined,
			Confidence:     1,
			Method:         models.MethodBusinessDefaultEng,
			RequiresReview: false,
			AssignedDate:   r.now(),
		}
	}

	base := r.Resolve(spot)

	if category == models.CategoryReview && base.RequiresReview &&
		base.Status != models.StatusUndetermined && base.Status != models.StatusInvalid {
		return models.LanguageAssignment{
			SpotID:         spot.SpotID,
			LanguageCode:   r.ref.EnglishCode(),
			Status:         models.StatusDefault,
			Confidence:     0.5,
			Method:         models.MethodBusinessReview,
			RequiresReview: true,
			AssignedDate:   base.AssignedDate,
		}
	}

	return base
}
