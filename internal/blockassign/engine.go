// Package blockassign implements C5, the Block Assignment Engine: the
// ordered rule cascade of spec.md §4.5 that resolves a spot to a single
// block, a set of spanned blocks with a primary, or a coarse campaign_type.
//
// Rules R1-R6 are evaluated in order; the first match wins. R7 (the Tagalog
// pattern) is evaluated during grid analysis rather than the sequential
// cascade, because it needs the actual Tagalog block from the grid to set
// the primary (spec.md §4.5.3).
package blockassign

import (
	"strings"
	"time"

	"github.com/patrickwarner/spotlang/internal/models"
	"github.com/patrickwarner/spotlang/internal/refdata"
)

// business rule tags, persisted verbatim in BlockAssignment.BusinessRuleApplied.
const (
	ruleWorldLink           = "worldlink_direct_response"
	rulePaidProgramming     = "revenue_type_paid_programming"
	ruleOperationalChinese  = "operational_chinese_time"
	ruleEnhancedChinese     = "enhanced_chinese_pattern"
	ruleROSDuration         = "ros_duration"
	ruleROSTimePattern      = "ros_time_pattern"
	ruleChineseFamilySpan   = "chinese_family_span"
	ruleTagalogPattern      = "tagalog_pattern"
	ruleSingleBlockOverlap  = "single_block_overlap"
	ruleSameLanguageSpan    = "same_language_span"
	ruleSameFamilySpan      = "same_family_span"
	ruleDifferentFamiliesRO = "different_families_ros"
	ruleMultiLanguage       = "multi_language_alert"
)

// Engine runs the C5 cascade for a single spot at a time. It holds no
// per-spot mutable state, so one Engine can be shared across an
// orchestrator's whole batch and across goroutines.
type Engine struct {
	ref *refdata.Store
	now func() time.Time
}

// New constructs an Engine bound to a reference-data snapshot.
func New(ref *refdata.Store) (*Engine, error) {
	if ref == nil {
		return nil, ErrNilReferenceData
	}
	return &Engine{ref: ref, now: time.Now}, nil
}

// spotContext precomputes the derived time fields the rule cascade and grid
// analysis both need, so they're parsed exactly once per spot.
type spotContext struct {
	spot *models.Spot

	startMin  int
	rawEndMin int
	duration  int
	hour      int
	hint      string // upper-cased raw language code, used as the "pattern hint" in spec.md §4.5.3
}

func newSpotContext(spot *models.Spot) spotContext {
	start := ToMinutesStart(spot.TimeIn)
	rawEnd := ToMinutesEnd(spot.TimeOut)
	return spotContext{
		spot:      spot,
		startMin:  start,
		rawEndMin: rawEnd,
		duration:  Duration(start, rawEnd),
		hour:      start / 60,
		hint:      strings.ToUpper(spot.LanguageCode),
	}
}

// Assign runs the full cascade for a spot and always returns a
// constraint-satisfying assignment; it never panics (spec.md §7's
// DefensiveFallback policy).
func (e *Engine) Assign(spot *models.Spot) models.BlockAssignment {
	base := models.BlockAssignment{
		SpotID:       spot.SpotID,
		AssignedDate: e.now(),
		AssignedBy:   "blockassign.Engine",
	}

	if spot.MarketID == nil {
		return withNoCoverage(base, "Spot has no market assignment")
	}
	if spot.AirDate.IsZero() || spot.DayOfWeek == "" || spot.TimeIn == "" || spot.TimeOut == "" {
		return withNoCoverage(base, "Spot is missing required market/time fields")
	}

	ctx := newSpotContext(spot)

	if d, ok := e.matchWorldLink(base, spot); ok {
		return d
	}
	if d, ok := e.matchPaidProgramming(base, spot); ok {
		return d
	}
	if d, ok := e.matchOperationalChinese(base, spot, ctx); ok {
		return d
	}
	if d, ok := e.matchEnhancedChinese(base, spot, ctx); ok {
		return d
	}
	if d, ok := e.matchROSByDuration(base, ctx); ok {
		return d
	}
	if d, ok := e.matchROSByTimePattern(base, ctx); ok {
		return d
	}

	return e.gridAnalysis(base, spot, ctx)
}

// withNoCoverage fills in the shared shape for a no-grid-coverage result
// (spec.md §4.5.1, §4.5.4 step 1/2).
func withNoCoverage(base models.BlockAssignment, reason string) models.BlockAssignment {
	base.CustomerIntent = models.IntentNoGridCoverage
	base.RequiresAttention = true
	base.AlertReason = reason
	return base
}

// matchWorldLink implements R1, the highest-precedence rule (spec.md §4.5.3,
// property P7). blocks_spanned is intentionally empty here: WorldLink and
// paid-programming spots never touch the grid, so there is no block set to
// name even though spans_multiple is true. This is a known tension with
// invariant I1 preserved from the source system rather than invented; see
// DESIGN.md.
func (e *Engine) matchWorldLink(base models.BlockAssignment, spot *models.Spot) (models.BlockAssignment, bool) {
	if !containsWorldLink(spot.Agency) && !containsWorldLink(spot.BillCode) {
		return base, false
	}
	scheduleID := 1
	base.ScheduleID = &scheduleID
	base.SpansMultipleBlocks = true
	base.CustomerIntent = models.IntentIndifferent
	base.CampaignType = models.CampaignDirectResponse
	base.BusinessRuleApplied = ruleWorldLink
	return base, true
}

func containsWorldLink(s string) bool {
	return strings.Contains(strings.ToLower(s), "worldlink")
}

// matchPaidProgramming implements R2.
func (e *Engine) matchPaidProgramming(base models.BlockAssignment, spot *models.Spot) (models.BlockAssignment, bool) {
	if spot.RevenueType != models.RevenueTypePaidProgramming {
		return base, false
	}
	scheduleID := 1
	base.ScheduleID = &scheduleID
	base.SpansMultipleBlocks = true
	base.CustomerIntent = models.IntentIndifferent
	base.CampaignType = models.CampaignPaidProgramming
	base.BusinessRuleApplied = rulePaidProgramming
	return base, true
}

// isOperationalChineseShape reports whether a spot matches R3's time/guard
// conditions, independent of whether the grid actually has a Chinese block
// to offer. R6 needs this shape test too, to exclude operational-Chinese
// spots from ROS-by-time-pattern even when R3 silently falls through
// (spec.md §9 open question 2).
func isOperationalChineseShape(spot *models.Spot, ctx spotContext) bool {
	if ctx.duration > 360 {
		return false
	}
	if IsEndOfDay(spot.TimeOut) {
		// End-of-day-terminated segments in this same hour window are the
		// enhanced Chinese pattern's territory (R4), not R3's: without this
		// split R3's guard and trigger window fully contain R4's, making R4
		// unreachable whenever both would otherwise match.
		return false
	}
	trigger := (ctx.hour >= 6 && ctx.hour < 8) || (ctx.hour >= 19 && ctx.hour < 24)
	if !trigger {
		return false
	}
	weekend := spot.DayOfWeek == "Saturday" || spot.DayOfWeek == "Sunday"
	if weekend && ctx.hour < 20 && ctx.hint == "H" {
		return false // Hmong on a weekend evening falls through to the grid
	}
	if ctx.hour == 18 && ctx.hint == "T" {
		return false // let the Tagalog pattern match instead
	}
	return true
}

// matchOperationalChinese implements R3. When the shape matches but no
// Chinese block actually overlaps, the rule silently suppresses itself and
// falls through to the next rule in the cascade (spec.md §9 open question
// 2) rather than misassigning non-Chinese evening programming.
func (e *Engine) matchOperationalChinese(base models.BlockAssignment, spot *models.Spot, ctx spotContext) (models.BlockAssignment, bool) {
	if !isOperationalChineseShape(spot, ctx) {
		return base, false
	}

	scheduleID, blocks, ok := e.overlappingBlocks(spot, ctx)
	if !ok {
		return base, false
	}
	chinese := filterByFamily(blocks, refdata.FamilyChinese)
	if len(chinese) == 0 {
		return base, false
	}
	return chineseSpanAssignment(base, scheduleID, chinese, ruleOperationalChinese), true
}

// isEnhancedChineseShape reports R4's trigger conditions.
func isEnhancedChineseShape(spot *models.Spot, ctx spotContext) bool {
	if ctx.hint != "M" && ctx.hint != "C" && ctx.hint != "M/C" {
		return false
	}
	if !IsEndOfDay(spot.TimeOut) {
		return false
	}
	return ctx.startMin >= 19*60 && ctx.startMin <= 23*60+30
}

// matchEnhancedChinese implements R4.
func (e *Engine) matchEnhancedChinese(base models.BlockAssignment, spot *models.Spot, ctx spotContext) (models.BlockAssignment, bool) {
	if !isEnhancedChineseShape(spot, ctx) {
		return base, false
	}
	scheduleID, blocks, ok := e.overlappingBlocks(spot, ctx)
	if !ok {
		return base, false
	}
	chinese := filterByFamily(blocks, refdata.FamilyChinese)
	if len(chinese) == 0 {
		return base, false
	}
	return chineseSpanAssignment(base, scheduleID, chinese, ruleEnhancedChinese), true
}

// isTagalogShape reports R7's trigger conditions (spec.md §4.5.3).
func isTagalogShape(spot *models.Spot, ctx spotContext) bool {
	if ctx.hint != "T" {
		return false
	}
	if spot.TimeOut != "19:00:00" {
		return false
	}
	return spot.TimeIn == "16:00:00" || spot.TimeIn == "17:00:00"
}

// matchROSByDuration implements R5: excludes the Tagalog pattern only
// (spec.md §9 open question 1 — the two ROS guards are deliberately
// asymmetric about which patterns they exclude).
func (e *Engine) matchROSByDuration(base models.BlockAssignment, ctx spotContext) (models.BlockAssignment, bool) {
	if isTagalogShape(ctx.spot, ctx) {
		return base, false
	}
	if ctx.duration <= 360 {
		return base, false
	}
	return rosAssignment(base, ruleROSDuration), true
}

// matchROSByTimePattern implements R6: excludes both the Chinese and
// Tagalog pattern shapes.
func (e *Engine) matchROSByTimePattern(base models.BlockAssignment, ctx spotContext) (models.BlockAssignment, bool) {
	spot := ctx.spot
	if isOperationalChineseShape(spot, ctx) || isEnhancedChineseShape(spot, ctx) || isTagalogShape(spot, ctx) {
		return base, false
	}

	nextDayEnd := IsEndOfDay(spot.TimeOut)
	trigger := (spot.TimeIn == "13:00:00" && spot.TimeOut == EndOfDayLiteral) ||
		(nextDayEnd && ctx.hour >= 21) ||
		(nextDayEnd && ctx.hour <= 6) ||
		(spot.TimeIn == "06:00:00" && spot.TimeOut == EndOfDayLiteral)
	if !trigger {
		return base, false
	}
	return rosAssignment(base, ruleROSTimePattern), true
}

func rosAssignment(base models.BlockAssignment, rule string) models.BlockAssignment {
	base.CampaignType = models.CampaignROS
	base.CustomerIntent = models.IntentIndifferent
	base.SpansMultipleBlocks = true
	base.BusinessRuleApplied = rule
	return base
}

// overlappingBlocks resolves the active schedule and the blocks on the
// spot's day-of-week that rollover-aware-overlap its time range (spec.md
// §4.5.4 steps 1-2). ok is false when there is no active schedule or no
// overlapping blocks at all.
func (e *Engine) overlappingBlocks(spot *models.Spot, ctx spotContext) (scheduleID int, blocks []models.LanguageBlock, ok bool) {
	scheduleID, found := e.ref.ActiveScheduleFor(*spot.MarketID, spot.AirDate.Format("2006-01-02"))
	if !found {
		return 0, nil, false
	}
	candidates := e.ref.BlocksFor(scheduleID, spot.DayOfWeek)
	if len(candidates) == 0 {
		return scheduleID, nil, false
	}

	spotEnd := AdjustedEnd(ctx.startMin, ctx.rawEndMin)
	for _, b := range candidates {
		blockStart := ToMinutesStart(b.TimeStart)
		blockEnd := ToMinutesEnd(b.TimeEnd)
		if Overlap(ctx.startMin, spotEnd, blockStart, blockEnd) {
			blocks = append(blocks, b)
		}
	}
	return scheduleID, blocks, len(blocks) > 0
}

func filterByFamily(blocks []models.LanguageBlock, family string) []models.LanguageBlock {
	var out []models.LanguageBlock
	for _, b := range blocks {
		if f, ok := refdata.FamilyOf(b.LanguageID); ok && f == family {
			out = append(out, b)
		}
	}
	return out
}

// primaryChineseSelection implements spec.md §4.5.5: prefer a Mandarin block
// whose name contains "Prime", else any Mandarin, else any Cantonese, else
// the first block in the set.
func primaryChineseSelection(blocks []models.LanguageBlock) models.LanguageBlock {
	for _, b := range blocks {
		if b.LanguageID == models.LanguageMandarin && strings.Contains(b.BlockName, "Prime") {
			return b
		}
	}
	for _, b := range blocks {
		if b.LanguageID == models.LanguageMandarin {
			return b
		}
	}
	for _, b := range blocks {
		if b.LanguageID == models.LanguageCantonese {
			return b
		}
	}
	return blocks[0]
}

// chineseSpanAssignment builds the R3/R4 shared shape: language-specific
// targeting over the Chinese subset of the overlap, single-block if there is
// only one such block.
func chineseSpanAssignment(base models.BlockAssignment, scheduleID int, chinese []models.LanguageBlock, rule string) models.BlockAssignment {
	base.ScheduleID = &scheduleID
	base.CustomerIntent = models.IntentLanguageSpecific
	base.CampaignType = models.CampaignLanguageSpecific
	base.BusinessRuleApplied = rule

	ids := blockIDs(chinese)
	if len(chinese) == 1 {
		id := chinese[0].BlockID
		base.BlockID = &id
		base.SpansMultipleBlocks = false
		base.BlocksSpanned = ids
		return base
	}

	primary := primaryChineseSelection(chinese)
	primaryID := primary.BlockID
	base.PrimaryBlockID = &primaryID
	base.SpansMultipleBlocks = true
	base.BlocksSpanned = ids
	return base
}

func blockIDs(blocks []models.LanguageBlock) []int {
	ids := make([]int, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.BlockID)
	}
	return ids
}

// gridAnalysis implements spec.md §4.5.4 once R1-R6 have all declined to
// fire.
func (e *Engine) gridAnalysis(base models.BlockAssignment, spot *models.Spot, ctx spotContext) models.BlockAssignment {
	scheduleID, blocks, ok := e.overlappingBlocks(spot, ctx)
	if !ok {
		if scheduleID == 0 {
			return withNoCoverage(base, "no active programming schedule for market")
		}
		return withNoCoverage(base, "no language blocks overlap the spot's time range")
	}
	base.ScheduleID = &scheduleID

	// Step 3: Chinese family span special case. Treats the literal
	// "23:59:00" end as equivalent to a normalized midnight rollover, per
	// spec.md §9 open question 3.
	if spot.TimeIn == "19:00:00" && IsEndOfDay(spot.TimeOut) {
		if chinese := filterByFamily(blocks, refdata.FamilyChinese); len(chinese) > 0 {
			result := base
			result.CustomerIntent = models.IntentLanguageSpecific
			result.CampaignType = models.CampaignLanguageSpecific
			result.BusinessRuleApplied = ruleChineseFamilySpan
			result.BlocksSpanned = blockIDs(blocks)
			if len(blocks) > 1 {
				result.SpansMultipleBlocks = true
				primary := primaryChineseSelection(chinese)
				id := primary.BlockID
				result.PrimaryBlockID = &id
			} else {
				id := blocks[0].BlockID
				result.BlockID = &id
			}
			return result
		}
	}

	// Step 4: Tagalog pattern (R7), resolved here so the grid's actual
	// Tagalog block can be named as the primary/sole block.
	if isTagalogShape(spot, ctx) {
		for _, b := range blocks {
			if b.LanguageID == models.LanguageTagalog {
				result := base
				id := b.BlockID
				result.BlockID = &id
				result.BlocksSpanned = []int{id}
				result.CustomerIntent = models.IntentLanguageSpecific
				result.CampaignType = models.CampaignLanguageSpecific
				result.BusinessRuleApplied = ruleTagalogPattern
				return result
			}
		}
	}

	// Step 5: single overlap.
	if len(blocks) == 1 {
		result := base
		id := blocks[0].BlockID
		result.BlockID = &id
		result.BlocksSpanned = []int{id}
		result.CustomerIntent = models.IntentLanguageSpecific
		result.CampaignType = models.CampaignLanguageSpecific
		result.BusinessRuleApplied = ruleSingleBlockOverlap
		return result
	}

	// Step 6: multi-overlap, language analysis.
	return e.languageAnalysis(base, spot, ctx, blocks)
}

// languageAnalysis implements spec.md §4.5.4 step 6: classifies a
// multi-block overlap as same_language, same_family, or different_families,
// and picks the primary block per the rule common to every branch.
func (e *Engine) languageAnalysis(base models.BlockAssignment, spot *models.Spot, ctx spotContext, blocks []models.LanguageBlock) models.BlockAssignment {
	languageIDs := distinctLanguageIDs(blocks)
	preferredID, preferredOK := e.preferredLanguageID(spot)
	primary := choosePrimary(blocks, preferredID, preferredOK)
	ids := blockIDs(blocks)

	base.BlocksSpanned = ids

	if len(languageIDs) == 1 {
		base.CustomerIntent = models.IntentLanguageSpecific
		base.CampaignType = models.CampaignLanguageSpecific
		base.BusinessRuleApplied = ruleSameLanguageSpan
		base.SpansMultipleBlocks = true
		id := primary.BlockID
		base.PrimaryBlockID = &id
		return base
	}

	if refdata.SameFamily(languageIDs) {
		base.CustomerIntent = models.IntentLanguageSpecific
		base.CampaignType = models.CampaignLanguageSpecific
		base.BusinessRuleApplied = ruleSameFamilySpan
		base.SpansMultipleBlocks = true
		id := primary.BlockID
		base.PrimaryBlockID = &id
		return base
	}

	// different_families
	id := primary.BlockID
	base.PrimaryBlockID = &id
	base.SpansMultipleBlocks = true
	if ctx.duration >= 1020 || len(blocks) >= 15 {
		base.CampaignType = models.CampaignROS
		base.CustomerIntent = models.IntentIndifferent
		base.RequiresAttention = false
		base.BusinessRuleApplied = ruleDifferentFamiliesRO
		return base
	}

	base.CampaignType = models.CampaignMultiLanguage
	base.CustomerIntent = models.IntentIndifferent
	base.RequiresAttention = true
	base.AlertReason = "spot spans multiple language families: " + e.describeLanguages(languageIDs)
	base.BusinessRuleApplied = ruleMultiLanguage
	return base
}

func (e *Engine) preferredLanguageID(spot *models.Spot) (int, bool) {
	return e.ref.LanguageIDForCode(spot.LanguageCode)
}

func choosePrimary(blocks []models.LanguageBlock, preferred int, ok bool) models.LanguageBlock {
	if ok {
		for _, b := range blocks {
			if b.LanguageID == preferred {
				return b
			}
		}
	}
	return blocks[0]
}

func distinctLanguageIDs(blocks []models.LanguageBlock) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, b := range blocks {
		if !seen[b.LanguageID] {
			seen[b.LanguageID] = true
			ids = append(ids, b.LanguageID)
		}
	}
	return ids
}

func (e *Engine) describeLanguages(ids []int) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name := e.ref.LanguageName(id); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
