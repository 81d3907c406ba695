package orchestrator

import "errors"

// ErrNilStore is returned when Orchestrator is constructed without a spot
// store.
var ErrNilStore = errors.New("orchestrator: nil spot store")

// ErrNilReferenceData is returned when Orchestrator is constructed without a
// reference-data snapshot.
var ErrNilReferenceData = errors.New("orchestrator: nil reference data")

// ErrBatchLocked is returned by ProcessCategory when another process already
// holds the distributed batch lock for that category.
var ErrBatchLocked = errors.New("orchestrator: batch already running for category")
