// Package merge applies a proposal's ordered change list to an itinerary
// snapshot. It is a pure transform: the input days are never mutated, and a
// failure in any change aborts the whole merge so nothing is half-applied.
package merge

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
)

// ChangeError reports which change aborted a merge.
// It unwraps to the underlying domain error (ErrNotFound, ErrValidation).
type ChangeError struct {
	Index int
	Type  domain.ChangeType
	Err   error
}

func (e *ChangeError) Error() string {
	return fmt.Sprintf("change %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ChangeError) Unwrap() error { return e.Err }

// Warning is a non-fatal condition encountered while merging.
type Warning struct {
	Index    int
	Type     domain.ChangeType
	TargetID string
	Message  string
}

// Report summarises a successful merge.
type Report struct {
	Applied  int
	Skipped  int
	Warnings []Warning
	// AddedIDs lists the ids of items created by add_activity, in order,
	// including any that were generated.
	AddedIDs []string
}

// Engine applies changes. The zero value is not usable; call New.
type Engine struct {
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides how ids are minted for added items that arrive
// without one. Tests use it for deterministic output.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New returns an Engine that mints random UUIDs for new items.
func New(opts ...Option) *Engine {
	e := &Engine{newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Apply runs changes against days with the default Engine.
func Apply(days []domain.TripDay, changes []domain.ProposedChange) ([]domain.TripDay, Report, error) {
	return defaultEngine.Apply(days, changes)
}

// Apply runs changes in declaration order. Each change sees the snapshot left
// by the ones before it, so a remove after a modify of the same item removes it.
//
// A remove_activity whose target is already gone is recorded as a warning and
// skipped. Any other failure returns a *ChangeError and no days.
func (e *Engine) Apply(days []domain.TripDay, changes []domain.ProposedChange) ([]domain.TripDay, Report, error) {
	s := &snapshot{days: domain.CloneDays(days)}
	var report Report

	for i, c := range changes {
		if err := c.Validate(); err != nil {
			return nil, Report{}, &ChangeError{Index: i, Type: c.Type, Err: err}
		}

		var err error
		switch c.Type {
		case domain.ChangeAddActivity:
			var id string
			id, err = e.add(s, c)
			if err == nil {
				report.AddedIDs = append(report.AddedIDs, id)
			}
		case domain.ChangeRemoveActivity:
			if !s.remove(c.TargetID) {
				report.Skipped++
				report.Warnings = append(report.Warnings, Warning{
					Index:    i,
					Type:     c.Type,
					TargetID: c.TargetID,
					Message:  "target item not found; already removed",
				})
				continue
			}
		case domain.ChangeModifyActivity:
			err = s.update(c.TargetID, func(item *domain.TripItem) { applyPatch(item, *c.Patch) })
		case domain.ChangeMoveActivity:
			err = s.move(c.TargetID, c.ToDay, c.Position)
		case domain.ChangeTime:
			err = s.update(c.TargetID, func(item *domain.TripItem) {
				item.StartTime = c.StartTime
				item.EndTime = c.EndTime
			})
		case domain.ChangeRestaurant, domain.ChangeHotel:
			err = s.update(c.TargetID, func(item *domain.TripItem) { applyReplacement(item, *c.Replacement) })
		default:
			err = fmt.Errorf("%w: unknown change type %q", domain.ErrValidation, c.Type)
		}
		if err != nil {
			return nil, Report{}, &ChangeError{Index: i, Type: c.Type, Err: err}
		}
		report.Applied++
	}

	return s.days, report, nil
}

func (e *Engine) add(s *snapshot, c domain.ProposedChange) (string, error) {
	di, ok := s.day(c.DayNumber)
	if !ok {
		return "", fmt.Errorf("day %d: %w", c.DayNumber, domain.ErrNotFound)
	}
	item := c.Item.Clone()
	if item.ID == "" {
		item.ID = e.newID()
	}
	if item.Type == "" {
		item.Type = domain.ItemActivity
	}
	if _, _, exists := s.locate(item.ID); exists {
		return "", fmt.Errorf("%w: item id %q already exists", domain.ErrValidation, item.ID)
	}
	s.days[di].Items = append(s.days[di].Items, item)
	return item.ID, nil
}

// snapshot is the accumulating itinerary a merge works on.
type snapshot struct {
	days []domain.TripDay
}

func (s *snapshot) day(n int) (int, bool) {
	for i, d := range s.days {
		if d.DayNumber == n {
			return i, true
		}
	}
	return 0, false
}

func (s *snapshot) locate(id string) (dayIdx, itemIdx int, ok bool) {
	for di, d := range s.days {
		for ii, item := range d.Items {
			if item.ID == id {
				return di, ii, true
			}
		}
	}
	return 0, 0, false
}

func (s *snapshot) remove(id string) bool {
	di, ii, ok := s.locate(id)
	if !ok {
		return false
	}
	s.days[di].Items = slices.Delete(s.days[di].Items, ii, ii+1)
	return true
}

func (s *snapshot) update(id string, fn func(*domain.TripItem)) error {
	di, ii, ok := s.locate(id)
	if !ok {
		return fmt.Errorf("item %q: %w", id, domain.ErrNotFound)
	}
	fn(&s.days[di].Items[ii])
	return nil
}

func (s *snapshot) move(id string, toDay int, position *int) error {
	di, ii, ok := s.locate(id)
	if !ok {
		return fmt.Errorf("item %q: %w", id, domain.ErrNotFound)
	}
	ti, ok := s.day(toDay)
	if !ok {
		return fmt.Errorf("day %d: %w", toDay, domain.ErrNotFound)
	}

	item := s.days[di].Items[ii]
	s.days[di].Items = slices.Delete(s.days[di].Items, ii, ii+1)

	items := s.days[ti].Items
	pos := len(items)
	if position != nil && *position < pos {
		pos = *position
	}
	s.days[ti].Items = slices.Insert(items, pos, item)
	return nil
}

func applyPatch(item *domain.TripItem, p domain.ItemPatch) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.StartTime != nil {
		item.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		item.EndTime = *p.EndTime
	}
	if p.Type != nil {
		item.Type = *p.Type
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Details != nil {
		item.Details = maps.Clone(p.Details)
	}
}

func applyReplacement(item *domain.TripItem, r domain.ItemReplacement) {
	item.Title = r.Title
	item.Location = r.Location
	item.Description = r.Description
	item.Details = maps.Clone(r.Details)
}

// IsChangeError reports whether err came from a specific change in a merge.
func IsChangeError(err error) bool {
	var ce *ChangeError
	return errors.As(err, &ce)
}
