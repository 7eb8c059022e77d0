package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Trigger decides when a job fires next.
type Trigger interface {
	// NextFireAfter returns the first fire time strictly after t. A zero
	// time means the trigger never fires again.
	NextFireAfter(t time.Time) time.Time
	String() string
}

// Cron fires once a week at Weekday Hour:Minute in Location (UTC when nil).
type Cron struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

func (c Cron) NextFireAfter(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.Hour, c.Minute, 0, 0, loc)
	days := (int(c.Weekday) - int(next.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (c Cron) String() string {
	day := strings.ToLower(c.Weekday.String()[:3])
	tz := "UTC"
	if c.Location != nil {
		tz = c.Location.String()
	}
	return fmt.Sprintf("cron[day_of_week='%s', hour='%d', minute='%d', timezone='%s']", day, c.Hour, c.Minute, tz)
}

// Interval fires every Every, aligned on Start. Scheduler.Schedule fills a
// zero Start with the registration time; used directly, a zero Start fires
// Every after t.
type Interval struct {
	Every time.Duration
	Start time.Time
}

func (i Interval) NextFireAfter(t time.Time) time.Time {
	if i.Every <= 0 {
		return time.Time{}
	}
	if i.Start.IsZero() {
		return t.Add(i.Every)
	}
	if t.Before(i.Start) {
		return i.Start
	}
	n := t.Sub(i.Start)/i.Every + 1
	return i.Start.Add(n * i.Every)
}

func (i Interval) String() string {
	d := i.Every.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("interval[%d:%02d:%02d]", h, m, s)
}
