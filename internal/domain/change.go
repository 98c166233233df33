package domain

import (
	"fmt"
	"strings"
)

// ChangeType tags the variant carried by a ProposedChange.
type ChangeType string

const (
	ChangeAddActivity    ChangeType = "add_activity"
	ChangeRemoveActivity ChangeType = "remove_activity"
	ChangeModifyActivity ChangeType = "modify_activity"
	ChangeMoveActivity   ChangeType = "move_activity"
	ChangeTime           ChangeType = "change_time"
	ChangeRestaurant     ChangeType = "change_restaurant"
	ChangeHotel          ChangeType = "change_hotel"
)

// ProposedChange is one structured edit inside a proposal.
// Only the fields belonging to Type are meaningful; Validate enforces that the
// required ones are present. Description is free text kept verbatim for audit.
type ProposedChange struct {
	Type        ChangeType `json:"type"`
	Description string     `json:"description,omitempty"`

	// add_activity
	DayNumber int       `json:"day_number,omitempty"`
	Item      *TripItem `json:"item,omitempty"`

	// every variant except add_activity
	TargetID string `json:"target_id,omitempty"`

	// modify_activity
	Patch *ItemPatch `json:"patch,omitempty"`

	// move_activity; a nil Position appends to the end of the day.
	ToDay    int  `json:"to_day,omitempty"`
	Position *int `json:"position,omitempty"`

	// change_time
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	// change_restaurant, change_hotel
	Replacement *ItemReplacement `json:"replacement,omitempty"`
}

// ItemPatch is a shallow field patch: nil fields are left untouched.
// A non-nil Details replaces the whole map.
type ItemPatch struct {
	Title       *string           `json:"title,omitempty"`
	StartTime   *string           `json:"start_time,omitempty"`
	EndTime     *string           `json:"end_time,omitempty"`
	Type        *ItemType         `json:"type,omitempty"`
	Location    *string           `json:"location,omitempty"`
	Description *string           `json:"description,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.StartTime == nil && p.EndTime == nil && p.Type == nil &&
		p.Location == nil && p.Description == nil && p.Details == nil
}

// ItemReplacement is the venue payload swapped in by change_restaurant and
// change_hotel. The target keeps its id, times and type.
type ItemReplacement struct {
	Title       string            `json:"title"`
	Location    string            `json:"location,omitempty"`
	Description string            `json:"description,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Validate checks that the change is well formed for its type. It does not
// look at any itinerary; target existence is the merge engine's concern.
// Errors wrap ErrValidation.
func (c ProposedChange) Validate() error {
	needTarget := func() error {
		if strings.TrimSpace(c.TargetID) == "" {
			return fmt.Errorf("%w: %s: target_id is required", ErrValidation, c.Type)
		}
		return nil
	}

	switch c.Type {
	case ChangeAddActivity:
		if c.DayNumber < 1 {
			return fmt.Errorf("%w: add_activity: day_number must be >= 1", ErrValidation)
		}
		if c.Item == nil {
			return fmt.Errorf("%w: add_activity: item is required", ErrValidation)
		}
		// An empty id is assigned at merge time. A supplied one must already
		// be a valid item id.
		if c.Item.ID != strings.TrimSpace(c.Item.ID) {
			return fmt.Errorf("%w: add_activity: item id %q must not be blank or padded", ErrValidation, c.Item.ID)
		}
		if strings.TrimSpace(c.Item.Title) == "" {
			return fmt.Errorf("%w: add_activity: item title is required", ErrValidation)
		}
		if c.Item.Type != "" && !c.Item.Type.Valid() {
			return fmt.Errorf("%w: add_activity: unknown item type %q", ErrValidation, c.Item.Type)
		}
		if err := ValidateWallClock(c.Item.StartTime); err != nil {
			return fmt.Errorf("add_activity: start_time: %w", err)
		}
		if err := ValidateWallClock(c.Item.EndTime); err != nil {
			return fmt.Errorf("add_activity: end_time: %w", err)
		}
		return nil

	case ChangeRemoveActivity:
		return needTarget()

	case ChangeModifyActivity:
		if err := needTarget(); err != nil {
			return err
		}
		if c.Patch == nil || c.Patch.IsEmpty() {
			return fmt.Errorf("%w: modify_activity: patch must set at least one field", ErrValidation)
		}
		if c.Patch.Title != nil && strings.TrimSpace(*c.Patch.Title) == "" {
			return fmt.Errorf("%w: modify_activity: title cannot be blank", ErrValidation)
		}
		if c.Patch.Type != nil && !c.Patch.Type.Valid() {
			return fmt.Errorf("%w: modify_activity: unknown item type %q", ErrValidation, *c.Patch.Type)
		}
		if c.Patch.StartTime != nil {
			if err := ValidateWallClock(*c.Patch.StartTime); err != nil {
				return fmt.Errorf("modify_activity: start_time: %w", err)
			}
		}
		if c.Patch.EndTime != nil {
			if err := ValidateWallClock(*c.Patch.EndTime); err != nil {
				return fmt.Errorf("modify_activity: end_time: %w", err)
			}
		}
		return nil

	case ChangeMoveActivity:
		if err := needTarget(); err != nil {
			return err
		}
		if c.ToDay < 1 {
			return fmt.Errorf("%w: move_activity: to_day must be >= 1", ErrValidation)
		}
		if c.Position != nil && *c.Position < 0 {
			return fmt.Errorf("%w: move_activity: position cannot be negative", ErrValidation)
		}
		return nil

	case ChangeTime:
		if err := needTarget(); err != nil {
			return err
		}
		if c.StartTime == "" || c.EndTime == "" {
			return fmt.Errorf("%w: change_time: start_time and end_time are required", ErrValidation)
		}
		if err := ValidateWallClock(c.StartTime); err != nil {
			return fmt.Errorf("change_time: start_time: %w", err)
		}
		if err := ValidateWallClock(c.EndTime); err != nil {
			return fmt.Errorf("change_time: end_time: %w", err)
		}
		return nil

	case ChangeRestaurant, ChangeHotel:
		if err := needTarget(); err != nil {
			return err
		}
		if c.Replacement == nil || strings.TrimSpace(c.Replacement.Title) == "" {
			return fmt.Errorf("%w: %s: replacement title is required", ErrValidation, c.Type)
		}
		return nil
	}

	return fmt.Errorf("%w: unknown change type %q", ErrValidation, c.Type)
}
