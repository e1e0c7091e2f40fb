// Package swipe implements the companion discovery deck: a shuffled card
// stack consumed by left/right/up swipes, with undo, matches and premium
// tiers.
package swipe

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/aaronwang/pickup-auction/shared/models"
)

// Match probabilities per gesture.
const (
	LikeMatchProbability      = 0.4
	SuperLikeMatchProbability = 0.8
)

var (
	ErrNoMoreProfiles   = errors.New("no more profiles")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNoSuperLikes     = errors.New("no super likes left")
	ErrInvalidDirection = errors.New("invalid swipe direction")
)

type undoEntry struct {
	characterID string
	direction   models.SwipeDirection
	matched     bool

	// show-match state before the swipe
	showMatch   bool
	lastMatched *models.Character
}

// SwipeResult describes the outcome of a swipe.
type SwipeResult struct {
	Character models.Character      `json:"character"`
	Direction models.SwipeDirection `json:"direction"`
	Matched   bool                  `json:"matched"`
	Match     *models.Match         `json:"match,omitempty"`
}

// Deck is one profile's swipe state. It is safe for concurrent use.
type Deck struct {
	mu sync.Mutex

	catalog    []models.Character
	characters []models.Character
	index      int
	undoStack  []undoEntry

	matches            []models.Match
	passed             []string
	superLiked         []string
	swipeCount         int
	superLikesLeft     int
	membership         models.Membership
	preferences        models.Preferences
	showMatch          bool
	lastMatched        *models.Character
	onboardingComplete bool

	rng  *rand.Rand
	roll func() float64
	now  func() time.Time
}

// DeckOption configures a Deck.
type DeckOption func(*Deck)

// WithRand sets the source used for shuffling and compatibility jitter.
func WithRand(r *rand.Rand) DeckOption {
	return func(d *Deck) { d.rng = r }
}

// WithRoll overrides the match roll; a roll below the gesture's
// probability is a match.
func WithRoll(roll func() float64) DeckOption {
	return func(d *Deck) { d.roll = roll }
}

// WithClock overrides time.Now for match timestamps.
func WithClock(now func() time.Time) DeckOption {
	return func(d *Deck) { d.now = now }
}

// NewDeck creates a fresh free-tier deck over a shuffled copy of characters.
func NewDeck(characters []models.Character, opts ...DeckOption) *Deck {
	d := &Deck{
		catalog:        slices.Clone(characters),
		matches:        []models.Match{},
		passed:         []string{},
		superLiked:     []string{},
		membership:     models.MembershipFree,
		superLikesLeft: models.MembershipFree.SuperLikeAllowance(),
		preferences:    models.Preferences{Language: []string{"English"}},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if d.roll == nil {
		d.roll = d.rng.Float64
	}
	d.characters = d.shuffled()
	return d
}

func (d *Deck) shuffled() []models.Character {
	out := slices.Clone(d.catalog)
	d.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Swipe applies direction to the top card and advances the cursor.
func (d *Deck) Swipe(direction models.SwipeDirection) (SwipeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !direction.Valid() {
		return SwipeResult{}, ErrInvalidDirection
	}
	if d.index >= len(d.characters) {
		return SwipeResult{}, ErrNoMoreProfiles
	}
	if direction == models.SwipeUp && d.superLikesLeft == 0 {
		return SwipeResult{}, ErrNoSuperLikes
	}

	character := d.characters[d.index]
	entry := undoEntry{
		characterID: character.ID,
		direction:   direction,
		showMatch:   d.showMatch,
		lastMatched: d.lastMatched,
	}

	d.index++
	d.swipeCount++

	probability := 0.0
	switch direction {
	case models.SwipeRight:
		probability = LikeMatchProbability
	case models.SwipeUp:
		probability = SuperLikeMatchProbability
		d.superLiked = append(d.superLiked, character.ID)
		if d.superLikesLeft > 0 {
			d.superLikesLeft--
		}
	case models.SwipeLeft:
		d.passed = append(d.passed, character.ID)
	}

	res := SwipeResult{Character: character, Direction: direction}
	if probability > 0 && d.roll() < probability {
		match := models.Match{CharacterID: character.ID, Timestamp: d.now()}
		d.matches = append(d.matches, match)
		d.showMatch = true
		d.lastMatched = &character
		entry.matched = true
		res.Matched = true
		res.Match = &match
	}

	d.undoStack = append(d.undoStack, entry)
	return res, nil
}

// Undo reverts the most recent swipe exactly: cursor, counters, outcome
// lists and the show-match flag return to their previous values.
func (d *Deck) Undo() (models.Character, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.undoStack) == 0 || d.index == 0 {
		return models.Character{}, ErrNothingToUndo
	}

	last := d.undoStack[len(d.undoStack)-1]
	d.undoStack = d.undoStack[:len(d.undoStack)-1]
	d.index--
	d.swipeCount--

	switch last.direction {
	case models.SwipeLeft:
		d.passed = removeLast(d.passed, last.characterID)
	case models.SwipeUp:
		d.superLiked = removeLast(d.superLiked, last.characterID)
		if d.superLikesLeft != models.UnlimitedSuperLikes {
			d.superLikesLeft++
		}
	}
	if last.matched {
		if i := lastMatchIndex(d.matches, last.characterID); i >= 0 {
			d.matches = slices.Delete(slices.Clone(d.matches), i, i+1)
		}
	}
	d.showMatch = last.showMatch
	d.lastMatched = last.lastMatched

	return d.characters[d.index], nil
}

func removeLast(ids []string, id string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			return slices.Delete(slices.Clone(ids), i, i+1)
		}
	}
	return ids
}

func lastMatchIndex(matches []models.Match, characterID string) int {
	for i := len(matches) - 1; i >= 0; i-- {
		if matches[i].CharacterID == characterID {
			return i
		}
	}
	return -1
}

// Reset reshuffles the deck and restarts from the first card.
// Outcomes and counters are kept.
func (d *Deck) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.characters = d.shuffled()
	d.index = 0
	d.undoStack = nil
}

// SetMembership switches tier and grants its super-like allowance.
func (d *Deck) SetMembership(m models.Membership) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.membership = m
	d.superLikesLeft = m.SuperLikeAllowance()
}

// SetPreferences replaces the matching preferences.
func (d *Deck) SetPreferences(p models.Preferences) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preferences = p
}

// SetOnboardingComplete records whether onboarding finished.
func (d *Deck) SetOnboardingComplete(complete bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onboardingComplete = complete
}

// DismissMatch hides the match overlay.
func (d *Deck) DismissMatch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.showMatch = false
}

// MarkMatchesSeen flags every match as seen.
func (d *Deck) MarkMatchesSeen() {
	d.mu.Lock()
	defer d.mu.Unlock()

	matches := slices.Clone(d.matches)
	for i := range matches {
		matches[i].Seen = true
	}
	d.matches = matches
}

// IsMatched reports whether characterID has matched.
func (d *Deck) IsMatched(characterID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lastMatchIndex(d.matches, characterID) >= 0
}

// MatchedCharacters resolves matches to catalog profiles in match order.
func (d *Deck) MatchedCharacters() []models.Character {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Character, 0, len(d.matches))
	for _, m := range d.matches {
		idx := slices.IndexFunc(d.catalog, func(c models.Character) bool { return c.ID == m.CharacterID })
		if idx >= 0 {
			out = append(out, d.catalog[idx])
		}
	}
	return out
}

// View is the rendered state of a deck.
type View struct {
	Current            *models.Character  `json:"current,omitempty"`
	Index              int                `json:"index"`
	Total              int                `json:"total"`
	Remaining          int                `json:"remaining"`
	Exhausted          bool               `json:"exhausted"`
	CanUndo            bool               `json:"can_undo"`
	SwipeCount         int                `json:"swipe_count"`
	SuperLikesLeft     int                `json:"super_likes_left"`
	Membership         models.Membership  `json:"membership"`
	Matches            []models.Match     `json:"matches"`
	UnseenMatches      int                `json:"unseen_matches"`
	Passed             []string           `json:"passed"`
	SuperLiked         []string           `json:"super_liked"`
	ShowMatch          bool               `json:"show_match"`
	LastMatched        *models.Character  `json:"last_matched,omitempty"`
	Preferences        models.Preferences `json:"preferences"`
	OnboardingComplete bool               `json:"onboarding_complete"`
}

// View returns the current state with compatibility scored for the top card.
func (d *Deck) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Index:              d.index,
		Total:              len(d.characters),
		Remaining:          len(d.characters) - d.index,
		Exhausted:          d.index >= len(d.characters),
		CanUndo:            len(d.undoStack) > 0 && d.index > 0,
		SwipeCount:         d.swipeCount,
		SuperLikesLeft:     d.superLikesLeft,
		Membership:         d.membership,
		Matches:            d.matches,
		Passed:             d.passed,
		SuperLiked:         d.superLiked,
		ShowMatch:          d.showMatch,
		LastMatched:        d.lastMatched,
		Preferences:        d.preferences,
		OnboardingComplete: d.onboardingComplete,
	}
	for _, m := range d.matches {
		if !m.Seen {
			v.UnseenMatches++
		}
	}
	if !v.Exhausted {
		current := d.characters[d.index]
		current.Compatibility = Compatibility(d.preferences.Personality, current.Personality, d.rng)
		v.Current = &current
	}
	return v
}

// State is the persisted part of a deck. Deck order and cursor are not
// kept; a restored deck starts on a fresh shuffle.
type State struct {
	Matches            []models.Match     `json:"matches"`
	Passed             []string           `json:"passed"`
	SuperLiked         []string           `json:"superLiked"`
	SwipeCount         int                `json:"swipeCount"`
	SuperLikesLeft     int                `json:"superLikesLeft"`
	Membership         models.Membership  `json:"membership"`
	Preferences        models.Preferences `json:"preferences"`
	OnboardingComplete bool               `json:"onboardingComplete"`
}

// State returns the persistable part of the deck.
func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return State{
		Matches:            d.matches,
		Passed:             d.passed,
		SuperLiked:         d.superLiked,
		SwipeCount:         d.swipeCount,
		SuperLikesLeft:     d.superLikesLeft,
		Membership:         d.membership,
		Preferences:        d.preferences,
		OnboardingComplete: d.onboardingComplete,
	}
}

// Restore loads persisted state into the deck and clears the undo stack.
func (d *Deck) Restore(st State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.matches = nonNil(st.Matches)
	d.passed = nonNil(st.Passed)
	d.superLiked = nonNil(st.SuperLiked)
	d.swipeCount = st.SwipeCount
	d.superLikesLeft = st.SuperLikesLeft
	d.membership = st.Membership
	if !d.membership.Valid() {
		d.membership = models.MembershipFree
	}
	d.preferences = st.Preferences
	d.onboardingComplete = st.OnboardingComplete
	d.undoStack = nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
