package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// ItinerarySchemaVersion is the version written with every itinerary.
// DecodeItinerary rejects any other version rather than guessing at its shape.
const ItinerarySchemaVersion = 1

// wallClockLayout is the local wall-clock format used for item start/end times.
const wallClockLayout = "15:04"

// ItemType classifies a TripItem.
type ItemType string

const (
	ItemActivity  ItemType = "activity"
	ItemMeal      ItemType = "meal"
	ItemTransport ItemType = "transport"
	ItemHotel     ItemType = "hotel"
	ItemOther     ItemType = "other"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemActivity, ItemMeal, ItemTransport, ItemHotel, ItemOther:
		return true
	}
	return false
}

// Itinerary is the canonical day-by-day plan of a trip.
// It is stored as a single JSON document alongside the trip row.
type Itinerary struct {
	SchemaVersion int       `json:"schema_version"`
	Days          []TripDay `json:"days"`
}

// TripDay is one 1-based day of the itinerary. Items are in chronological order.
type TripDay struct {
	DayNumber int        `json:"day_number"`
	Items     []TripItem `json:"items"`
}

// TripItem is a single activity, meal, transport leg or stay.
// ID is unique across the whole trip and never changes once assigned.
type TripItem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	StartTime   string            `json:"start_time,omitempty"`
	EndTime     string            `json:"end_time,omitempty"`
	Type        ItemType          `json:"type"`
	Location    string            `json:"location,omitempty"`
	Description string            `json:"description,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// NewItinerary returns an empty itinerary stamped with the current schema version.
func NewItinerary(days ...TripDay) Itinerary {
	if days == nil {
		days = []TripDay{}
	}
	return Itinerary{SchemaVersion: ItinerarySchemaVersion, Days: days}
}

// Clone returns a deep copy so that callers can mutate the result freely.
func (it Itinerary) Clone() Itinerary {
	return Itinerary{SchemaVersion: it.SchemaVersion, Days: CloneDays(it.Days)}
}

// CloneDays deep-copies a day list, including every item's Details map.
func CloneDays(days []TripDay) []TripDay {
	out := make([]TripDay, len(days))
	for i, d := range days {
		items := make([]TripItem, len(d.Items))
		for j, item := range d.Items {
			items[j] = item.Clone()
		}
		out[i] = TripDay{DayNumber: d.DayNumber, Items: items}
	}
	return out
}

// Clone returns a copy of the item that shares no maps with the original.
func (i TripItem) Clone() TripItem {
	i.Details = maps.Clone(i.Details)
	return i
}

// Validate checks the structural invariants of an itinerary: the schema
// version, 1-based unique day numbers, and item ids unique across all days.
// Errors wrap ErrValidation.
func (it Itinerary) Validate() error {
	if it.SchemaVersion != ItinerarySchemaVersion {
		return fmt.Errorf("%w: unsupported itinerary schema version %d", ErrValidation, it.SchemaVersion)
	}
	days := make(map[int]bool, len(it.Days))
	ids := make(map[string]bool)
	for _, d := range it.Days {
		if d.DayNumber < 1 {
			return fmt.Errorf("%w: day number must be >= 1, got %d", ErrValidation, d.DayNumber)
		}
		if days[d.DayNumber] {
			return fmt.Errorf("%w: duplicate day number %d", ErrValidation, d.DayNumber)
		}
		days[d.DayNumber] = true
		for _, item := range d.Items {
			if err := item.Validate(); err != nil {
				return err
			}
			if ids[item.ID] {
				return fmt.Errorf("%w: duplicate item id %q", ErrValidation, item.ID)
			}
			ids[item.ID] = true
		}
	}
	return nil
}

// Validate checks a single stored item.
func (i TripItem) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: item %q: title is required", ErrValidation, i.ID)
	}
	if !i.Type.Valid() {
		return fmt.Errorf("%w: item %q: unknown type %q", ErrValidation, i.ID, i.Type)
	}
	if err := ValidateWallClock(i.StartTime); err != nil {
		return fmt.Errorf("item %q: start_time: %w", i.ID, err)
	}
	if err := ValidateWallClock(i.EndTime); err != nil {
		return fmt.Errorf("item %q: end_time: %w", i.ID, err)
	}
	return nil
}

// ValidateWallClock accepts an empty string or a 24h "HH:MM" time.
func ValidateWallClock(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(wallClockLayout, s); err != nil {
		return fmt.Errorf("%w: %q is not an HH:MM time", ErrValidation, s)
	}
	return nil
}

// DecodeItinerary parses and validates a stored itinerary document.
// A NULL or empty column decodes to an empty itinerary at the current version.
func DecodeItinerary(raw []byte) (Itinerary, error) {
	if len(raw) == 0 {
		return NewItinerary(), nil
	}
	var it Itinerary
	if err := json.Unmarshal(raw, &it); err != nil {
		return Itinerary{}, fmt.Errorf("decode itinerary: %w", err)
	}
	if it.Days == nil {
		it.Days = []TripDay{}
	}
	if err := it.Validate(); err != nil {
		return Itinerary{}, fmt.Errorf("decode itinerary: %w", err)
	}
	return it, nil
}

// EncodeItinerary validates and serialises an itinerary for storage.
func EncodeItinerary(it Itinerary) ([]byte, error) {
	if err := it.Validate(); err != nil {
		return nil, fmt.Errorf("encode itinerary: %w", err)
	}
	return json.Marshal(it)
}
