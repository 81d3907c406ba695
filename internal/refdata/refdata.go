// Package refdata holds the in-memory reference tables the engines consult:
// valid language codes, the language-family map, the language-block grid per
// (schedule, day_of_week), and the market-to-active-schedule resolver
// (spec.md §4.2). It is read-mostly and owned by the orchestrator, rebuilt
// wholesale on reload the same way the teacher's db.DB rebuilds its creative
// indexes (internal/db/db.go's BuildIndexes).
package refdata

import (
	"strings"

	"github.com/patrickwarner/spotlang/internal/models"
)

// Family names the family map is keyed by (spec.md §4.2).
const (
	FamilyChinese    = "Chinese"
	FamilyFilipino   = "Filipino"
	FamilySouthAsian = "SouthAsian"
	FamilyEnglish    = "English"
	FamilyVietnamese = "Vietnamese"
	FamilyKorean     = "Korean"
	FamilyJapanese   = "Japanese"
	FamilyHmong      = "Hmong"
)

// familyMembers is the family map as data, not a chain of if-statements
// (spec.md §9's design note): adding a language is a one-line edit here.
var familyMembers = map[string][]int{
	FamilyChinese:    {models.LanguageMandarin, models.LanguageCantonese},
	FamilyFilipino:   {models.LanguageTagalog},
	FamilySouthAsian: {models.LanguageSouthAsian},
	FamilyEnglish:    {models.LanguageEnglish},
	FamilyVietnamese: {models.LanguageVietnamese},
	FamilyKorean:     {models.LanguageKorean},
	FamilyJapanese:   {models.LanguageJapanese},
	FamilyHmong:      {models.LanguageHmong},
}

// Store is the reference-data snapshot consulted by C4 and C5. A Store is
// immutable once built; new reference data means building a fresh one with
// New rather than mutating in place, so an in-flight batch never observes a
// half-updated grid.
type Store struct {
	languagesByID   map[int]models.Language
	languagesByCode map[string]models.Language
	englishCode     string

	// blocksBySchedule[scheduleID][dayOfWeek] = blocks active that day,
	// pre-filtered to IsActive and indexed with a case-insensitive day key.
	blocksBySchedule map[int]map[string][]models.LanguageBlock

	// scheduleAssignments[marketID] holds every (schedule, date range,
	// priority) row for that market, highest priority first.
	scheduleAssignments map[int][]models.ProgrammingScheduleAssignment
}

// New builds a Store snapshot from freshly loaded reference rows.
func New(languages []models.Language, blocks []models.LanguageBlock, assignments []models.ProgrammingScheduleAssignment) *Store {
	s := &Store{
		languagesByID:       make(map[int]models.Language, len(languages)),
		languagesByCode:     make(map[string]models.Language, len(languages)),
		blocksBySchedule:    make(map[int]map[string][]models.LanguageBlock),
		scheduleAssignments: make(map[int][]models.ProgrammingScheduleAssignment),
	}

	for _, l := range languages {
		s.languagesByID[l.ID] = l
		s.languagesByCode[strings.ToUpper(l.Code)] = l
	}

	if en, ok := s.languagesByID[models.LanguageEnglish]; ok {
		s.englishCode = strings.ToUpper(en.Code)
	} else {
		s.englishCode = "EN"
	}

	for _, b := range blocks {
		if !b.IsActive {
			continue
		}
		day := strings.ToLower(b.DayOfWeek)
		if s.blocksBySchedule[b.ScheduleID] == nil {
			s.blocksBySchedule[b.ScheduleID] = make(map[string][]models.LanguageBlock)
		}
		s.blocksBySchedule[b.ScheduleID][day] = append(s.blocksBySchedule[b.ScheduleID][day], b)
	}

	for _, a := range assignments {
		s.scheduleAssignments[a.MarketID] = append(s.scheduleAssignments[a.MarketID], a)
	}
	for marketID, rows := range s.scheduleAssignments {
		sortByPriorityDesc(rows)
		s.scheduleAssignments[marketID] = rows
	}

	return s
}

func sortByPriorityDesc(rows []models.ProgrammingScheduleAssignment) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && rows[j-1].Priority < rows[j].Priority {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}

// EnglishCode returns the canonical English language code, derived once from
// the language table with a fallback of "EN" (spec.md §4.2).
func (s *Store) EnglishCode() string {
	return s.englishCode
}

// IsValidCode reports whether raw, upper-cased, matches a known language.
func (s *Store) IsValidCode(raw string) bool {
	_, ok := s.languagesByCode[strings.ToUpper(raw)]
	return ok
}

// LanguageName returns the display name for a language ID.
func (s *Store) LanguageName(languageID int) string {
	return s.languagesByID[languageID].Name
}

// LanguageIDForCode returns the language ID for a canonical code, if known.
func (s *Store) LanguageIDForCode(code string) (int, bool) {
	l, ok := s.languagesByCode[strings.ToUpper(code)]
	return l.ID, ok
}

// FamilyOf returns the family name containing languageID, if any.
func FamilyOf(languageID int) (string, bool) {
	for family, members := range familyMembers {
		for _, m := range members {
			if m == languageID {
				return family, true
			}
		}
	}
	return "", false
}

// SameFamily reports whether every language ID in ids belongs to a single
// family in the family map. An empty or single-element set is trivially true
// only when |ids|=1, mirroring the spec's same_language/same_family split,
// which callers distinguish separately.
func SameFamily(ids []int) bool {
	if len(ids) == 0 {
		return false
	}
	family, ok := FamilyOf(ids[0])
	if !ok {
		return false
	}
	for _, id := range ids[1:] {
		f, ok := FamilyOf(id)
		if !ok || f != family {
			return false
		}
	}
	return true
}

// ActiveScheduleFor resolves the schedule for a market on an air date,
// breaking ties by highest priority then latest effective_start_date <=
// air_date; if no date-eligible row matches it falls back to the
// highest-priority active schedule for the market regardless of dates. This
// fallback is preserved from the source system for parity (spec.md §9,
// open question 4): it can silently assign a spot to a schedule whose start
// date in fact follows the air date.
func (s *Store) ActiveScheduleFor(marketID int, airDate string) (int, bool) {
	rows := s.scheduleAssignments[marketID]
	if len(rows) == 0 {
		return 0, false
	}

	var best *models.ProgrammingScheduleAssignment
	for i := range rows {
		r := &rows[i]
		if !r.IsActive {
			continue
		}
		if r.EffectiveStart > airDate {
			continue
		}
		if r.EffectiveEnd != nil && *r.EffectiveEnd < airDate {
			continue
		}
		if best == nil || r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.EffectiveStart > best.EffectiveStart) {
			best = r
		}
	}
	if best != nil {
		return best.ScheduleID, true
	}

	// Fallback: highest-priority active schedule for the market, dates
	// ignored entirely.
	for i := range rows {
		r := &rows[i]
		if r.IsActive {
			return r.ScheduleID, true
		}
	}
	return 0, false
}

// BlocksFor returns the active blocks for a schedule on a day of week. The
// day comparison is case-insensitive.
func (s *Store) BlocksFor(scheduleID int, dayOfWeek string) []models.LanguageBlock {
	return s.blocksBySchedule[scheduleID][strings.ToLower(dayOfWeek)]
}
