package storage

import "errors"

// ErrNilRecord is returned when a nil usage record is passed to RecordUsage.
var ErrNilRecord = errors.New("cannot record nil usage")
