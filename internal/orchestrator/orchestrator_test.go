package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/spotlang/internal/models"
	"github.com/patrickwarner/spotlang/internal/refdata"
	"github.com/patrickwarner/spotlang/internal/spotstore"
)

func testRef() *refdata.Store {
	languages := []models.Language{
		{ID: models.LanguageEnglish, Code: "EN", Name: "English"},
		{ID: models.LanguageMandarin, Code: "MA", Name: "Mandarin"},
	}
	blocks := []models.LanguageBlock{
		{
			BlockID: 1, ScheduleID: 1, DayOfWeek: "Monday",
			TimeStart: "09:00:00", TimeEnd: "10:00:00",
			LanguageID: models.LanguageEnglish, BlockName: "English Morning", IsActive: true,
		},
	}
	assignments := []models.ProgrammingScheduleAssignment{
		{ScheduleID: 1, MarketID: 1, EffectiveStart: "2024-01-01", Priority: 1, IsActive: true},
	}
	return refdata.New(languages, blocks, assignments)
}

func marketID() *int {
	id := 1
	return &id
}

func commercialSpot(id int, revenueType string) models.Spot {
	airDate, _ := time.Parse("2006-01-02", "2024-06-03")
	return models.Spot{
		SpotID:       id,
		RevenueType:  revenueType,
		SpotType:     models.SpotTypeCommercial,
		MarketID:     marketID(),
		AirDate:      airDate,
		DayOfWeek:    "Monday",
		TimeIn:       "09:00:00",
		TimeOut:      "09:30:00",
		LanguageCode: "EN",
	}
}

func TestNew_RejectsNilDependencies(t *testing.T) {
	ref := testRef()
	fake := spotstore.NewFake(nil)

	_, err := New(nil, ref, 10, 2)
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = New(fake, nil, 10, 2)
	assert.ErrorIs(t, err, ErrNilReferenceData)
}

func TestCategorize_AssignsCategoryToEveryUncategorizedSpot(t *testing.T) {
	spots := []models.Spot{
		commercialSpot(1, models.RevenueTypeInternalAdSales),
		commercialSpot(2, models.RevenueTypeLocal),
	}
	fake := spotstore.NewFake(spots)
	o, err := New(fake, testRef(), 10, 2)
	require.NoError(t, err)

	stats, err := o.Categorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)

	cat1, ok := fake.CategoryFor(1)
	require.True(t, ok)
	assert.Equal(t, models.CategoryLanguageRequired, cat1)

	cat2, ok := fake.CategoryFor(2)
	require.True(t, ok)
	assert.Equal(t, models.CategoryLanguageRequired, cat2)
}

func TestCategorize_SkipsTradeSpots(t *testing.T) {
	trade := commercialSpot(1, models.RevenueTypeTrade)
	fake := spotstore.NewFake([]models.Spot{trade})
	o, err := New(fake, testRef(), 10, 2)
	require.NoError(t, err)

	stats, err := o.Categorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Processed)

	_, ok := fake.CategoryFor(1)
	assert.False(t, ok)
}

func TestProcessCategory_ResolvesAndPersistsBothAssignments(t *testing.T) {
	spot := commercialSpot(1, models.RevenueTypeInternalAdSales)
	fake := spotstore.NewFake([]models.Spot{spot})
	require.NoError(t, fake.SetCategory(context.Background(), 1, models.CategoryLanguageRequired))

	o, err := New(fake, testRef(), 10, 2)
	require.NoError(t, err)

	stats, err := o.ProcessCategory(context.Background(), models.CategoryLanguageRequired, "test-run")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	la, ok := fake.LanguageAssignmentFor(1)
	require.True(t, ok)
	assert.Equal(t, "EN", la.LanguageCode)

	ba, ok := fake.BlockAssignmentFor(1)
	require.True(t, ok)
	require.NotNil(t, ba.BlockID)
	assert.Equal(t, 1, *ba.BlockID)
}

func TestProcessCategory_MultipleBatches(t *testing.T) {
	var spots []models.Spot
	for i := 1; i <= 5; i++ {
		spots = append(spots, commercialSpot(i, models.RevenueTypeInternalAdSales))
	}
	fake := spotstore.NewFake(spots)
	for _, s := range spots {
		require.NoError(t, fake.SetCategory(context.Background(), s.SpotID, models.CategoryLanguageRequired))
	}

	o, err := New(fake, testRef(), 2, 2)
	require.NoError(t, err)

	stats, err := o.ProcessCategory(context.Background(), models.CategoryLanguageRequired, "test-run")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Processed)
}

func TestForceRecategorize_ClearsCategoryAndAssignments(t *testing.T) {
	spot := commercialSpot(1, models.RevenueTypeInternalAdSales)
	fake := spotstore.NewFake([]models.Spot{spot})
	ctx := context.Background()
	require.NoError(t, fake.SetCategory(ctx, 1, models.CategoryLanguageRequired))

	o, err := New(fake, testRef(), 10, 2)
	require.NoError(t, err)

	_, err = o.ProcessCategory(ctx, models.CategoryLanguageRequired, "test-run")
	require.NoError(t, err)

	require.NoError(t, o.ForceRecategorize(ctx, []int{1}))

	_, ok := fake.CategoryFor(1)
	assert.False(t, ok)
	_, ok = fake.LanguageAssignmentFor(1)
	assert.False(t, ok)
	_, ok = fake.BlockAssignmentFor(1)
	assert.False(t, ok)
}

func TestReviewRequired_ReturnsFlaggedSpots(t *testing.T) {
	invalidCode := commercialSpot(1, models.RevenueTypeOther)
	invalidCode.SpotType = models.SpotTypePackage
	invalidCode.LanguageCode = "ZZ" // not in the recognized set

	undetermined := commercialSpot(2, models.RevenueTypeOther)
	undetermined.SpotType = models.SpotTypePackage
	undetermined.LanguageCode = "L"

	comOverride := commercialSpot(3, models.RevenueTypeOther)
	comOverride.LanguageCode = "L" // COM spot_type: auto-defaults, never review

	tradeSpot := commercialSpot(4, models.RevenueTypeTrade)
	tradeSpot.SpotType = models.SpotTypePackage
	tradeSpot.LanguageCode = "ZZ"

	clean := commercialSpot(5, models.RevenueTypeOther)
	clean.SpotType = models.SpotTypePackage
	clean.LanguageCode = "EN"

	fake := spotstore.NewFake([]models.Spot{invalidCode, undetermined, comOverride, tradeSpot, clean})
	fake.SetValidLanguageCodes([]string{"EN", "MA"})

	ctx := context.Background()
	o, err := New(fake, testRef(), 10, 2)
	require.NoError(t, err)

	// None of these spots have been categorized or processed yet; the
	// raw-data query must still surface the ones that need review.
	flaggedSpots, err := o.ReviewRequired(ctx, 10, 0)
	require.NoError(t, err)

	var ids []int
	for _, s := range flaggedSpots {
		ids = append(ids, s.SpotID)
	}
	assert.ElementsMatch(t, []int{1, 2}, ids)
}

func TestCategoryCounts(t *testing.T) {
	fake := spotstore.NewFake([]models.Spot{
		commercialSpot(1, models.RevenueTypeInternalAdSales),
		commercialSpot(2, models.RevenueTypeLocal),
	})
	ctx := context.Background()
	require.NoError(t, fake.SetCategory(ctx, 1, models.CategoryLanguageRequired))
	require.NoError(t, fake.SetCategory(ctx, 2, models.CategoryLanguageRequired))

	o, err := New(fake, testRef(), 10, 2)
	require.NoError(t, err)

	counts, err := o.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.CategoryLanguageRequired])
	assert.Equal(t, 0, counts[models.CategoryReview])
}
