package service

import "time"

// Clock abstracts time retrieval so expiry and versioning are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the actual current time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
