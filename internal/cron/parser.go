// Package cron turns five-field cron expressions into concrete fire
// times. The scheduler keeps no recurrence state: an expression is
// materialized into a one-shot task for its next occurrence, and the
// caller re-materializes after each fire.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relaycore/relaycore/internal/domain"
)

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Parse compiles a five-field expression against an IANA timezone.
// Occurrences are computed on the zone's wall clock, so "0 9 * * *" in
// Europe/Paris tracks local 9am across DST transitions.
func (p *Parser) Parse(expression string, timezone string) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	return &schedule{sched: sched, loc: loc}, nil
}

type Schedule interface {
	// Next returns the first occurrence strictly after the given instant.
	Next(after time.Time) time.Time
	// NextExecuteAt formats the first occurrence after the given instant
	// in the timeline's fixed-width UTC layout.
	NextExecuteAt(after time.Time) string
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

func (s *schedule) NextExecuteAt(after time.Time) string {
	return domain.FormatTime(s.Next(after))
}
