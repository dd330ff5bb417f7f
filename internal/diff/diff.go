// Package diff compares two product snapshots and reports what an operator would care
// about: new listings, listings that went away and listings whose availability flipped.
package diff

import (
	"fmt"

	"hdymonitor/internal/scrapers/hdy"
)

// Key identifies a product across snapshots.
type Key struct {
	Name   string
	Price  string
	Core   string
	Memory string
}

func KeyOf(p hdy.Product) Key {
	return Key{
		Name:   p.Name,
		Price:  p.Price,
		Core:   p.Core,
		Memory: p.Memory,
	}
}

type Kind int

const (
	KindNew Kind = iota
	KindRemoved
	KindAvailabilityChanged
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindRemoved:
		return "removed"
	case KindAvailabilityChanged:
		return "availability_changed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a single change between two snapshots. Previous is zero for KindNew and
// Current is zero for KindRemoved.
type Event struct {
	Kind     Kind
	Previous hdy.Product
	Current  hdy.Product
}

// NotificationWorthy reports whether the event means something can be bought now that
// could not be before.
func (e Event) NotificationWorthy() bool {
	switch e.Kind {
	case KindNew:
		return e.Current.Purchasable
	case KindAvailabilityChanged:
		return e.Current.Purchasable
	}
	return false
}

type Options struct {
	// DetectRemovals emits KindRemoved for previous products that have no match.
	DetectRemovals bool
}

type Result struct {
	Events []Event
	// Changed is true when the current snapshot should replace the stored one.
	Changed bool
}

// Compare diffs current against previous. When several previous products share a key
// only the first one is matched against.
func Compare(previous, current []hdy.Product, opts Options) Result {
	index := make(map[Key]hdy.Product, len(previous))
	for _, p := range previous {
		key := KeyOf(p)
		if _, exists := index[key]; !exists {
			index[key] = p
		}
	}

	var events []Event
	for _, cur := range current {
		prev, ok := index[KeyOf(cur)]
		if !ok {
			events = append(events, Event{Kind: KindNew, Current: cur})
			continue
		}
		if prev.Purchasable != cur.Purchasable {
			events = append(events, Event{
				Kind:     KindAvailabilityChanged,
				Previous: prev,
				Current:  cur,
			})
		}
	}

	if opts.DetectRemovals {
		seen := make(map[Key]struct{}, len(current))
		for _, cur := range current {
			seen[KeyOf(cur)] = struct{}{}
		}
		reported := make(map[Key]struct{})
		for _, prev := range previous {
			key := KeyOf(prev)
			if _, ok := seen[key]; ok {
				continue
			}
			if _, ok := reported[key]; ok {
				continue
			}
			reported[key] = struct{}{}
			events = append(events, Event{Kind: KindRemoved, Previous: prev})
		}
	}

	return Result{
		Events:  events,
		Changed: len(events) > 0 || len(previous) != len(current),
	}
}
