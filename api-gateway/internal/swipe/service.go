package swipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/metrics"
	"github.com/aaronwang/pickup-auction/shared/models"
)

var (
	// ErrEmptyProfile is returned when no profile id is given.
	ErrEmptyProfile = errors.New("profile id is required")

	// ErrInvalidMembership is returned for an unknown tier.
	ErrInvalidMembership = errors.New("invalid membership")
)

// StateStore persists deck state between restarts.
type StateStore interface {
	// LoadSwipeState returns nil data when nothing is stored for profile.
	LoadSwipeState(ctx context.Context, profile string) ([]byte, error)
	SaveSwipeState(ctx context.Context, profile string, data []byte) error
}

// Service owns one deck per profile and persists it after every mutation.
type Service struct {
	characters []models.Character
	store      StateStore
	logger     *zap.Logger
	opts       []DeckOption

	mu    sync.Mutex
	decks map[string]*profileDeck
}

// profileDeck serializes mutations of one profile with their saves, so the
// stored state never moves backwards.
type profileDeck struct {
	mu   sync.Mutex
	deck *Deck
}

// NewService creates a deck service. A nil store keeps state in memory only.
func NewService(characters []models.Character, store StateStore, logger *zap.Logger, opts ...DeckOption) *Service {
	return &Service{
		characters: characters,
		store:      store,
		logger:     logger,
		opts:       opts,
		decks:      make(map[string]*profileDeck),
	}
}

// Deck returns the profile's deck, restoring persisted state on first use.
func (s *Service) Deck(ctx context.Context, profile string) (*Deck, error) {
	p, err := s.profile(ctx, profile)
	if err != nil {
		return nil, err
	}
	return p.deck, nil
}

// profile loads outside s.mu so a slow store only delays its own profile.
func (s *Service) profile(ctx context.Context, profile string) (*profileDeck, error) {
	if profile == "" {
		return nil, ErrEmptyProfile
	}

	s.mu.Lock()
	p, ok := s.decks[profile]
	s.mu.Unlock()
	if ok {
		return p, nil
	}

	d, err := s.load(ctx, profile)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent first access may have won the race
	if p, ok := s.decks[profile]; ok {
		return p, nil
	}
	p = &profileDeck{deck: d}
	s.decks[profile] = p
	return p, nil
}

func (s *Service) load(ctx context.Context, profile string) (*Deck, error) {
	d := NewDeck(s.characters, s.opts...)
	if s.store == nil {
		return d, nil
	}

	data, err := s.store.LoadSwipeState(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load swipe state: %w", err)
	}
	if data != nil {
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			s.logger.Warn("discarding unreadable swipe state",
				zap.String("profile", profile), zap.Error(err))
		} else {
			d.Restore(st)
		}
	}
	return d, nil
}

// save persists the deck. Failures are logged; the in-memory state stays
// authoritative.
func (s *Service) save(ctx context.Context, profile string, d *Deck) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(d.State())
	if err != nil {
		s.logger.Error("failed to marshal swipe state", zap.String("profile", profile), zap.Error(err))
		return
	}
	if err := s.store.SaveSwipeState(ctx, profile, data); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("save_swipe_state").Inc()
		s.logger.Warn("failed to persist swipe state", zap.String("profile", profile), zap.Error(err))
	}
}

// mutate holds the profile lock across fn and the save.
func (s *Service) mutate(ctx context.Context, profile string, fn func(*Deck) error) (*Deck, error) {
	p, err := s.profile(ctx, profile)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := fn(p.deck); err != nil {
		return p.deck, err
	}
	s.save(ctx, profile, p.deck)
	return p.deck, nil
}

// View renders the profile's deck.
func (s *Service) View(ctx context.Context, profile string) (View, error) {
	d, err := s.Deck(ctx, profile)
	if err != nil {
		return View{}, err
	}
	return d.View(), nil
}

// Swipe applies direction to the profile's top card.
func (s *Service) Swipe(ctx context.Context, profile string, direction models.SwipeDirection) (SwipeResult, error) {
	var res SwipeResult
	_, err := s.mutate(ctx, profile, func(d *Deck) error {
		var err error
		res, err = d.Swipe(direction)
		return err
	})
	if err != nil {
		return SwipeResult{}, err
	}

	metrics.SwipesTotal.WithLabelValues(string(direction)).Inc()
	if res.Matched {
		metrics.SwipeMatchesTotal.Inc()
		s.logger.Info("new match",
			zap.String("profile", profile),
			zap.String("character", res.Character.ID),
			zap.String("direction", string(direction)))
	}
	return res, nil
}

// Undo reverts the profile's most recent swipe.
func (s *Service) Undo(ctx context.Context, profile string) (models.Character, error) {
	var c models.Character
	_, err := s.mutate(ctx, profile, func(d *Deck) error {
		var err error
		c, err = d.Undo()
		return err
	})
	if err != nil {
		return models.Character{}, err
	}
	metrics.SwipeUndosTotal.Inc()
	return c, nil
}

// Reset reshuffles the profile's deck.
func (s *Service) Reset(ctx context.Context, profile string) (View, error) {
	return s.viewAfter(ctx, profile, func(d *Deck) error {
		d.Reset()
		return nil
	})
}

// SetPreferences replaces the profile's preferences.
func (s *Service) SetPreferences(ctx context.Context, profile string, p models.Preferences) (View, error) {
	return s.viewAfter(ctx, profile, func(d *Deck) error {
		d.SetPreferences(p)
		return nil
	})
}

// SetMembership changes the profile's tier.
func (s *Service) SetMembership(ctx context.Context, profile string, m models.Membership) (View, error) {
	if !m.Valid() {
		return View{}, fmt.Errorf("%w: %q", ErrInvalidMembership, m)
	}
	return s.viewAfter(ctx, profile, func(d *Deck) error {
		d.SetMembership(m)
		return nil
	})
}

// CompleteOnboarding records whether the profile finished onboarding.
func (s *Service) CompleteOnboarding(ctx context.Context, profile string, complete bool) (View, error) {
	return s.viewAfter(ctx, profile, func(d *Deck) error {
		d.SetOnboardingComplete(complete)
		return nil
	})
}

// DismissMatch hides the profile's match overlay.
func (s *Service) DismissMatch(ctx context.Context, profile string) (View, error) {
	return s.viewAfter(ctx, profile, func(d *Deck) error {
		d.DismissMatch()
		return nil
	})
}

// MarkMatchesSeen flags all of the profile's matches as seen.
func (s *Service) MarkMatchesSeen(ctx context.Context, profile string) (View, error) {
	return s.viewAfter(ctx, profile, func(d *Deck) error {
		d.MarkMatchesSeen()
		return nil
	})
}

// Matches lists the profile's matched characters.
func (s *Service) Matches(ctx context.Context, profile string) ([]models.Character, error) {
	d, err := s.Deck(ctx, profile)
	if err != nil {
		return nil, err
	}
	return d.MatchedCharacters(), nil
}

func (s *Service) viewAfter(ctx context.Context, profile string, fn func(*Deck) error) (View, error) {
	d, err := s.mutate(ctx, profile, fn)
	if err != nil {
		return View{}, err
	}
	return d.View(), nil
}
