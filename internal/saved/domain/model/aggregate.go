package model

import "time"

// PlaceAggregate holds the per-place social counters maintained by the
// backend's counter pipeline. The engine reads and overlays it, never writes
// it.
type PlaceAggregate struct {
	WishlistCount  int64 `json:"wishlistCount" bson:"wishlistCount"`
	FavouriteCount int64 `json:"favouriteCount" bson:"favouriteCount"`
}

// Count returns the counter for one bucket.
func (a PlaceAggregate) Count(bucket Bucket) int64 {
	switch bucket {
	case BucketWishlist:
		return a.WishlistCount
	case BucketFavourite:
		return a.FavouriteCount
	default:
		return 0
	}
}

// AggregateSnapshot is one delivery from a place-aggregate subscription.
// Exists distinguishes "no saves yet" from "no data observed yet"; until the
// first snapshot arrives counters must not be rendered at all.
type AggregateSnapshot struct {
	PlaceKey  string         `json:"placeKey"`
	Aggregate PlaceAggregate `json:"aggregate"`
	Exists    bool           `json:"exists"`
	Timestamp time.Time      `json:"timestamp"`
}

// SaveRecord is one followee's save state for a place.
type SaveRecord struct {
	AccountID string `json:"accountId" bson:"accountId"`
	Bucket    Bucket `json:"bucket" bson:"bucket"`
	SavedAt   int64  `json:"savedAt" bson:"savedAt"`
}

// DisplayLabel is the resolvable naming info for an account.
type DisplayLabel struct {
	Username    string `json:"username,omitempty" bson:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty" bson:"displayName,omitempty"`
}

// Resolve picks the label to show: username first, then display name, then a
// generic fallback.
func (l DisplayLabel) Resolve() string {
	if l.Username != "" {
		return "@" + l.Username
	}
	if l.DisplayName != "" {
		return l.DisplayName
	}
	return "Someone"
}
