// Package keys names the Redis channels and keys shared between services.
package keys

import (
	"fmt"
	"strings"
)

const (
	// BidChannelPrefix prefixes the Pub/Sub channel of every item.
	BidChannelPrefix = "bid_events:"

	// BidChannelPattern matches the bid channels of all items.
	BidChannelPattern = BidChannelPrefix + "*"

	swipeStatePrefix = "swipe-ai-storage:"
)

// BidChannel is the Pub/Sub channel carrying bid events for itemID.
func BidChannel(itemID string) string { return BidChannelPrefix + itemID }

// ItemIDFromChannel extracts the item id from a bid channel name.
// Example: "bid_events:item123" -> "item123"
func ItemIDFromChannel(channel string) string {
	itemID, ok := strings.CutPrefix(channel, BidChannelPrefix)
	if !ok {
		return ""
	}
	return itemID
}

// CurrentBidKey holds the latest accepted amount for an item.
func CurrentBidKey(itemID string) string { return fmt.Sprintf("item:%s:current_bid", itemID) }

// HighestBidderKey holds the user id behind the current bid.
func HighestBidderKey(itemID string) string { return fmt.Sprintf("item:%s:highest_bidder", itemID) }

// SwipeState holds the persisted swipe deck of a profile.
func SwipeState(profile string) string { return swipeStatePrefix + profile }
