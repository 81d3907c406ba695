package models

// SpotCategory is the output of the categorizer (C3): the processing bucket
// a spot falls into based on (revenue_type, spot_type), ahead of language
// code resolution.
type SpotCategory string

const (
	CategoryLanguageRequired SpotCategory = "LANGUAGE_REQUIRED"
	CategoryReview           SpotCategory = "REVIEW"
	CategoryDefaultEnglish   SpotCategory = "DEFAULT_ENGLISH"
)
