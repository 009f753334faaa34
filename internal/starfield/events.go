// Package starfield holds the engine-independent selection state of the
// starfield view and the events it announces.
package starfield

// Star is the part of a star the selection logic cares about
type Star struct {
	Key     string
	Name    string
	SectorX int64
	SectorY int64
	OffsetX int
	OffsetY int
}

// Fleet is the part of a fleet the selection logic cares about
type Fleet struct {
	Key       string
	StarKey   string
	EmpireKey string
	DesignID  string
	NumShips  float32
}

// SelectionEvent is implemented by every event that announces a new selection.
// SelectedKey is empty when the selection was cleared.
type SelectionEvent interface {
	SelectedKey() string
}

// StarSelectedEvent is published when a star is selected or deselected (nil Star)
type StarSelectedEvent struct {
	Star *Star
}

func (e *StarSelectedEvent) SelectedKey() string {
	if e.Star == nil {
		return ""
	}
	return e.Star.Key
}

// FleetSelectedEvent is published when a fleet is selected or deselected (nil Fleet)
type FleetSelectedEvent struct {
	Fleet *Fleet
}

func (e *FleetSelectedEvent) SelectedKey() string {
	if e.Fleet == nil {
		return ""
	}
	return e.Fleet.Key
}

// SpaceTapEvent is published when empty space is tapped
type SpaceTapEvent struct {
	SectorX int64
	SectorY int64
	OffsetX int
	OffsetY int
}
