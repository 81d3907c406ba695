package spotstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/patrickwarner/spotlang/internal/models"
)

// Fake is an in-memory Store used by orchestrator and engine tests. It is
// safe for concurrent use, mirroring the real orchestrator's fan-out over a
// worker pool.
type Fake struct {
	mu sync.Mutex

	spots       map[int]models.Spot
	categories  map[int]models.SpotCategory
	languageAsg map[int]models.LanguageAssignment
	blockAsg    map[int]models.BlockAssignment
	validCodes  map[string]bool
}

// NewFake builds a Fake preloaded with the given spots.
func NewFake(spots []models.Spot) *Fake {
	f := &Fake{
		spots:       make(map[int]models.Spot, len(spots)),
		categories:  make(map[int]models.SpotCategory),
		languageAsg: make(map[int]models.LanguageAssignment),
		blockAsg:    make(map[int]models.BlockAssignment),
		validCodes:  make(map[string]bool),
	}
	for _, s := range spots {
		f.spots[s.SpotID] = s
	}
	return f
}

// SetValidLanguageCodes configures the recognized raw language codes that
// ListReviewRequired checks a spot's language_code against, mirroring the
// languages table the Postgres-backed store joins against. Codes are
// case-insensitive.
func (f *Fake) SetValidLanguageCodes(codes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validCodes = make(map[string]bool, len(codes))
	for _, c := range codes {
		f.validCodes[strings.ToUpper(c)] = true
	}
}

func (f *Fake) GetSpot(ctx context.Context, spotID int) (models.Spot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.spots[spotID]
	return s, ok, nil
}

func (f *Fake) ListUncategorized(ctx context.Context, limit int) ([]models.Spot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Spot
	for _, id := range f.sortedIDs() {
		if f.spots[id].IsTrade() {
			continue
		}
		if _, ok := f.categories[id]; ok {
			continue
		}
		out = append(out, f.spots[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) ListByCategory(ctx context.Context, category models.SpotCategory, limit int) ([]models.Spot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Spot
	for _, id := range f.sortedIDs() {
		if f.categories[id] != category {
			continue
		}
		out = append(out, f.spots[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListReviewRequired returns spots whose raw language_code is "L" or not in
// the recognized set (SetValidLanguageCodes), excluding Trade spots and
// excluding COM/BB spot types (those are resolved by the auto_default_com_bb
// override regardless of raw code). This works off raw spot data, not the
// persisted language/block assignments, so a spot that hasn't been processed
// yet is still reachable here.
func (f *Fake) ListReviewRequired(ctx context.Context, pageSize, offset int) ([]models.Spot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []models.Spot
	for _, id := range f.sortedIDs() {
		s := f.spots[id]
		if s.IsTrade() {
			continue
		}
		if s.SpotType == models.SpotTypeCommercial || s.SpotType == models.SpotTypeBillboard {
			continue
		}
		code := strings.ToUpper(s.LanguageCode)
		if code == "L" || (code != "" && !f.validCodes[code]) {
			matches = append(matches, s)
		}
	}
	if offset >= len(matches) {
		return nil, nil
	}
	end := offset + pageSize
	if pageSize <= 0 || end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

func (f *Fake) SetCategory(ctx context.Context, spotID int, category models.SpotCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[spotID] = category
	return nil
}

func (f *Fake) ClearCategories(ctx context.Context, spotIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range spotIDs {
		delete(f.categories, id)
		delete(f.languageAsg, id)
		delete(f.blockAsg, id)
	}
	return nil
}

func (f *Fake) UpsertLanguageAssignment(ctx context.Context, a models.LanguageAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.languageAsg[a.SpotID] = a
	return nil
}

func (f *Fake) UpsertBlockAssignment(ctx context.Context, a models.BlockAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockAsg[a.SpotID] = a
	return nil
}

// LanguageAssignmentFor is a test helper exposing what was upserted.
func (f *Fake) LanguageAssignmentFor(spotID int) (models.LanguageAssignment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.languageAsg[spotID]
	return a, ok
}

// BlockAssignmentFor is a test helper exposing what was upserted.
func (f *Fake) BlockAssignmentFor(spotID int) (models.BlockAssignment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.blockAsg[spotID]
	return a, ok
}

// CategoryFor is a test helper exposing what was set.
func (f *Fake) CategoryFor(spotID int) (models.SpotCategory, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[spotID]
	return c, ok
}

func (f *Fake) sortedIDs() []int {
	ids := make([]int, 0, len(f.spots))
	for id := range f.spots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
