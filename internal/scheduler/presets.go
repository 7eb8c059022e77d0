package scheduler

import (
	"strings"
	"time"

	"digest-backend/internal/shared/faults"
)

// Well-known job ids. Registering a preset twice replaces these jobs.
const (
	JobWeeklyScan    = "weekly_drive_scan"
	JobWeeklySummary = "weekly_email_summary"
	JobTestScan      = "test_drive_scan"
	JobTestSummary   = "test_email_summary"
)

// Schedule modes accepted by RegisterMode.
const (
	ModeWeekly = "weekly"
	ModeTest   = "test"
	ModeNone   = "none"
)

// Jobs are the two recurring actions the presets bind.
type Jobs struct {
	Scan      Action
	Summaries Action
}

// RegisterWeekly schedules the production cadence: scan Monday 06:00,
// summaries Monday 09:00 in loc.
func RegisterWeekly(s *Scheduler, jobs Jobs, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if err := s.Schedule(JobWeeklyScan, "Weekly Drive Scan",
		Cron{Weekday: time.Monday, Hour: 6, Minute: 0, Location: loc}, jobs.Scan, true); err != nil {
		return err
	}
	return s.Schedule(JobWeeklySummary, "Weekly Email Summary",
		Cron{Weekday: time.Monday, Hour: 9, Minute: 0, Location: loc}, jobs.Summaries, true)
}

// RegisterTest schedules the short cadence: scan every 5 minutes,
// summaries every 10 minutes.
func RegisterTest(s *Scheduler, jobs Jobs) error {
	if err := s.Schedule(JobTestScan, "Test Drive Scan (5 min)",
		Interval{Every: 5 * time.Minute}, jobs.Scan, true); err != nil {
		return err
	}
	return s.Schedule(JobTestSummary, "Test Email Summary (10 min)",
		Interval{Every: 10 * time.Minute}, jobs.Summaries, true)
}

// RegisterMode applies the preset named by mode.
func RegisterMode(s *Scheduler, mode string, jobs Jobs, loc *time.Location) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeWeekly:
		return RegisterWeekly(s, jobs, loc)
	case ModeTest:
		return RegisterTest(s, jobs)
	case "", ModeNone:
		return nil
	default:
		return faults.Configuration("unknown schedule mode " + mode)
	}
}
