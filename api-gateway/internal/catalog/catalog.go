// Package catalog holds the embedded seed data: auction lots, pickup
// sessions and swipe-deck characters. Times in the seed files are offsets
// relative to the moment the catalog is loaded.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaronwang/pickup-auction/shared/models"
)

//go:embed data/*.json
var content embed.FS

type seedBid struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	UserName string  `json:"user_name"`
	Amount   float64 `json:"amount"`
	Age      string  `json:"age"`
}

type seedItem struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Condition     models.Condition `json:"condition"`
	Category      string           `json:"category"`
	Images        []string         `json:"images"`
	StartingPrice float64          `json:"starting_price"`
	CurrentPrice  float64          `json:"current_price"`
	EndsIn        string           `json:"ends_in"`
	Bids          []seedBid        `json:"bids"`
}

type seedEvent struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Location string             `json:"location"`
	Address  string             `json:"address"`
	StartsIn string             `json:"starts_in"`
	Status   models.EventStatus `json:"status"`
	ItemIDs  []string           `json:"item_ids"`
}

// Items returns the seed auction lots with end times anchored at now.
func Items(now time.Time) ([]models.Item, error) {
	var seeds []seedItem
	if err := readJSON("data/items.json", &seeds); err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(seeds))
	for _, s := range seeds {
		endsIn, err := time.ParseDuration(s.EndsIn)
		if err != nil {
			return nil, fmt.Errorf("item %s: parsing ends_in: %w", s.ID, err)
		}

		bids := make([]models.Bid, 0, len(s.Bids))
		for _, b := range s.Bids {
			age, err := time.ParseDuration(b.Age)
			if err != nil {
				return nil, fmt.Errorf("bid %s: parsing age: %w", b.ID, err)
			}
			bids = append(bids, models.Bid{
				ID:        b.ID,
				ItemID:    s.ID,
				UserID:    b.UserID,
				UserName:  b.UserName,
				Amount:    b.Amount,
				CreatedAt: now.Add(-age),
			})
		}

		items = append(items, models.Item{
			ID:            s.ID,
			Title:         s.Title,
			Description:   s.Description,
			Condition:     s.Condition,
			Category:      s.Category,
			Images:        s.Images,
			StartingPrice: s.StartingPrice,
			CurrentPrice:  s.CurrentPrice,
			EndsAt:        now.Add(endsIn),
			Status:        models.ItemStatusActive,
			Bids:          bids,
		})
	}
	return items, nil
}

// Events returns the seed pickup sessions with start times anchored at now.
func Events(now time.Time) ([]models.AuctionEvent, error) {
	var seeds []seedEvent
	if err := readJSON("data/events.json", &seeds); err != nil {
		return nil, err
	}

	events := make([]models.AuctionEvent, 0, len(seeds))
	for _, s := range seeds {
		startsIn, err := time.ParseDuration(s.StartsIn)
		if err != nil {
			return nil, fmt.Errorf("event %s: parsing starts_in: %w", s.ID, err)
		}
		events = append(events, models.AuctionEvent{
			ID:        s.ID,
			Title:     s.Title,
			Location:  s.Location,
			Address:   s.Address,
			StartTime: now.Add(startsIn),
			Status:    s.Status,
			ItemIDs:   s.ItemIDs,
		})
	}
	return events, nil
}

// Characters returns the swipe-deck profiles in catalog order.
func Characters() ([]models.Character, error) {
	var characters []models.Character
	if err := readJSON("data/characters.json", &characters); err != nil {
		return nil, err
	}
	return characters, nil
}

func readJSON(name string, target any) error {
	data, err := content.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
