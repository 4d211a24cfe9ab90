package allocation

import "time"

// Clock supplies the report generation time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads wall-clock time.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always returns t. Use in tests and for reproducible bills.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
