package date

import (
	"fmt"
	"time"
)

// Day truncates a time to its UTC calendar day
func Day(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two times fall on the same UTC calendar day
func SameDay(t1 time.Time, t2 time.Time) bool {
	return Day(t1).Equal(Day(t2))
}

// Span is a day-granular window between two dates, both ends inclusive
type Span struct {
	Start time.Time `json:"start" bson:"start" validate:"required"`
	End   time.Time `json:"end" bson:"end" validate:"required"`
}

// NewSpan builds a Span normalized to whole days
func NewSpan(start time.Time, end time.Time) Span {
	return Span{Start: Day(start), End: Day(end)}
}

// IsValid checks that the span does not end before it starts
func (s *Span) IsValid() bool {
	return !Day(s.End).Before(Day(s.Start))
}

// ContainsDay checks whether a date falls inside the span, boundaries included
func (s *Span) ContainsDay(t time.Time) bool {
	day := Day(t)
	return !day.Before(Day(s.Start)) && !day.After(Day(s.End))
}

// Overlaps checks whether two spans share at least one day
func (s *Span) Overlaps(other Span) bool {
	return !Day(other.End).Before(Day(s.Start)) && !Day(other.Start).After(Day(s.End))
}

// String prints a span string
func (s *Span) String() string {
	return fmt.Sprintf("%s - %s", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
}
