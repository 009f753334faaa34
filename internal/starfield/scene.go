package starfield

import (
	"sync"

	"go.uber.org/zap"

	"github.com/KirkDiggler/starbus/internal/errors"
)

// Publisher is where the scene announces selection changes
type Publisher interface {
	Publish(event any) error
}

// Poster runs selection changes on the update goroutine
type Poster interface {
	Post(fn func())
}

// SceneConfig holds the dependencies of a Scene
type SceneConfig struct {
	SectorX      int64
	SectorY      int64
	SectorRadius int

	Publisher Publisher
	Poster    Poster
	Logger    *zap.Logger
}

// Scene tracks the stars and fleets of a block of sectors and which of them is
// selected. Selection changes are applied on the Poster and announced on the
// Publisher; at most one star or one fleet is selected at a time.
type Scene struct {
	mu sync.Mutex

	sectorX      int64
	sectorY      int64
	sectorRadius int

	stars         map[string]*Star
	fleets        map[string]*Fleet
	selectedStar  *Star
	selectedFleet *Fleet

	// starToSelect is a star key requested before the star was added
	starToSelect string

	publisher Publisher
	poster    Poster
	logger    *zap.Logger
}

// NewScene creates an empty scene
func NewScene(cfg *SceneConfig) (*Scene, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("scene config is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.InvalidArgument("scene publisher is required")
	}
	if cfg.Poster == nil {
		return nil, errors.InvalidArgument("scene poster is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scene{
		sectorX:      cfg.SectorX,
		sectorY:      cfg.SectorY,
		sectorRadius: cfg.SectorRadius,
		stars:        make(map[string]*Star),
		fleets:       make(map[string]*Fleet),
		publisher:    cfg.Publisher,
		poster:       cfg.Poster,
		logger: logger.Named("starfield").With(
			zap.Int64("sector_x", cfg.SectorX),
			zap.Int64("sector_y", cfg.SectorY)),
	}, nil
}

// SectorX returns the x coordinate of the centre sector
func (s *Scene) SectorX() int64 { return s.sectorX }

// SectorY returns the y coordinate of the centre sector
func (s *Scene) SectorY() int64 { return s.sectorY }

// SectorRadius returns how many sectors around the centre the scene covers
func (s *Scene) SectorRadius() int { return s.sectorRadius }

// AddStar indexes a star. If the star was asked for before it arrived it is
// selected now.
func (s *Scene) AddStar(star *Star) {
	if star == nil {
		return
	}

	s.mu.Lock()
	s.stars[star.Key] = star
	pending := s.starToSelect == star.Key
	if pending {
		s.starToSelect = ""
	}
	s.mu.Unlock()

	if pending {
		s.selectStar(star)
	}
}

// AddFleet indexes a fleet
func (s *Scene) AddFleet(fleet *Fleet) {
	if fleet == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fleets[fleet.Key] = fleet
}

// Stars returns the number of indexed stars
func (s *Scene) Stars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stars)
}

// Selection returns the selected star and fleet; at most one is non-nil
func (s *Scene) Selection() (*Star, *Fleet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedStar, s.selectedFleet
}

// SelectStar selects the star with the given key. An empty key deselects; an
// unknown key is remembered until AddStar brings that star in. Any newer
// selection, tap or deselect forgets the remembered key.
func (s *Scene) SelectStar(key string) {
	s.mu.Lock()
	star, ok := s.stars[key]
	if ok || key == "" {
		s.starToSelect = ""
	} else {
		s.starToSelect = key
	}
	s.mu.Unlock()

	if key == "" {
		s.selectStar(nil)
		return
	}

	if !ok {
		s.logger.Debug("star not in scene yet, deferring selection", zap.String("star", key))
		return
	}
	s.selectStar(star)
}

// SelectFleet selects the fleet with the given key. An empty or unknown key
// deselects.
func (s *Scene) SelectFleet(key string) {
	s.mu.Lock()
	fleet := s.fleets[key]
	s.starToSelect = ""
	s.mu.Unlock()

	s.selectFleet(fleet)
}

// SelectNothing clears the selection after a tap on empty space, announcing
// each cleared selection and then the tap itself.
func (s *Scene) SelectNothing(sectorX, sectorY int64, offsetX, offsetY int) {
	s.mu.Lock()
	s.starToSelect = ""
	s.mu.Unlock()

	s.poster.Post(func() {
		s.mu.Lock()
		hadStar := s.selectedStar != nil
		hadFleet := s.selectedFleet != nil
		s.selectedStar = nil
		s.selectedFleet = nil
		s.mu.Unlock()

		if hadStar {
			s.publish(&StarSelectedEvent{})
		}
		if hadFleet {
			s.publish(&FleetSelectedEvent{})
		}
		s.publish(&SpaceTapEvent{
			SectorX: sectorX,
			SectorY: sectorY,
			OffsetX: offsetX,
			OffsetY: offsetY,
		})
	})
}

// StarFetched replaces a star with a freshly fetched copy, including the
// selected star when the keys match.
func (s *Scene) StarFetched(star *Star) {
	if star == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stars[star.Key]; ok {
		s.stars[star.Key] = star
	}
	if s.selectedStar != nil && s.selectedStar.Key == star.Key {
		s.selectedStar = star
	}
}

// CopySelection makes whatever is selected in other selected here too. A star
// or fleet that this scene does not hold clears the selection instead.
func (s *Scene) CopySelection(other *Scene) {
	star, fleet := other.Selection()
	if star == nil && fleet == nil {
		return
	}

	s.mu.Lock()
	s.starToSelect = ""
	var ownStar *Star
	if star != nil {
		ownStar = s.stars[star.Key]
	}
	var ownFleet *Fleet
	if fleet != nil {
		ownFleet = s.fleets[fleet.Key]
	}
	s.mu.Unlock()

	if star != nil {
		s.selectStar(ownStar)
	}
	if fleet != nil {
		s.selectFleet(ownFleet)
	}
}

func (s *Scene) selectStar(star *Star) {
	s.poster.Post(func() {
		s.mu.Lock()
		s.selectedStar = star
		s.selectedFleet = nil
		s.mu.Unlock()

		s.publish(&StarSelectedEvent{Star: star})
	})
}

func (s *Scene) selectFleet(fleet *Fleet) {
	s.poster.Post(func() {
		s.mu.Lock()
		s.selectedStar = nil
		s.selectedFleet = fleet
		s.mu.Unlock()

		s.publish(&FleetSelectedEvent{Fleet: fleet})
	})
}

func (s *Scene) publish(event any) {
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("selection event not fully delivered", zap.Error(err))
	}
}
