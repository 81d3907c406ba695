package blockassign

import "errors"

// ErrNilReferenceData is returned by New when constructed without a
// reference-data snapshot; the engine cannot resolve schedules or grids
// without one.
var ErrNilReferenceData = errors.New("blockassign: reference data store is nil")
