package models

import "time"

// Character is an AI companion profile shown on the swipe deck.
type Character struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Age            int      `json:"age"`
	Tagline        string   `json:"tagline"`
	Bio            string   `json:"bio"`
	Personality    []string `json:"personality"`
	Interests      []string `json:"interests"`
	Style          string   `json:"style"`
	Platform       string   `json:"platform"`
	PlatformURL    string   `json:"platform_url"`
	Images         []string `json:"images"`
	Rating         float64  `json:"rating"`
	MatchCount     int      `json:"match_count"`
	VoiceAvailable bool     `json:"voice_available"`
	FirstMessage   string   `json:"first_message"`
	Compatibility  int      `json:"compatibility,omitempty"`
	Badge          string   `json:"badge,omitempty"`
	Location       string   `json:"location,omitempty"`
}

// SwipeDirection is the gesture applied to the top card.
type SwipeDirection string

// Swipe directions.
const (
	SwipeLeft  SwipeDirection = "left"  // pass
	SwipeRight SwipeDirection = "right" // like
	SwipeUp    SwipeDirection = "up"    // super like
)

// Valid reports whether d is one of the known directions.
func (d SwipeDirection) Valid() bool {
	switch d {
	case SwipeLeft, SwipeRight, SwipeUp:
		return true
	default:
		return false
	}
}

// Match records a mutual like with a character.
type Match struct {
	CharacterID string    `json:"character_id"`
	Timestamp   time.Time `json:"timestamp"`
	Seen        bool      `json:"seen"`
}

// Preferences drive compatibility scoring.
type Preferences struct {
	Personality []string `json:"personality"`
	Vibe        []string `json:"vibe"`
	Style       []string `json:"style"`
	Language    []string `json:"language"`
}

// Membership is the premium tier of a swipe profile.
type Membership string

// Membership tiers.
const (
	MembershipFree     Membership = "free"
	MembershipGold     Membership = "gold"
	MembershipPlatinum Membership = "platinum"
)

// UnlimitedSuperLikes marks a tier without a super-like allowance.
const UnlimitedSuperLikes = -1

// SuperLikeAllowance returns the daily super likes granted by the tier.
func (m Membership) SuperLikeAllowance() int {
	switch m {
	case MembershipGold:
		return 15
	case MembershipPlatinum:
		return UnlimitedSuperLikes
	default:
		return 3
	}
}

// Valid reports whether m is a known tier.
func (m Membership) Valid() bool {
	switch m {
	case MembershipFree, MembershipGold, MembershipPlatinum:
		return true
	default:
		return false
	}
}
