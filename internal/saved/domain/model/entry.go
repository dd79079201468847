package model

// Bucket is one of the two mutually exclusive save categories a pin can
// occupy within a list.
type Bucket string

const (
	BucketWishlist  Bucket = "wishlist"
	BucketFavourite Bucket = "favourite"
	// BucketNone is used in transitions to express "not saved".
	BucketNone Bucket = ""
)

// SavedEntry is a pin saved into a list. ListName is a denormalized copy
// captured at save time and may drift from the live list name.
type SavedEntry struct {
	ListID   string   `json:"listId" bson:"listId"`
	ListName string   `json:"listName" bson:"listName"`
	Bucket   Bucket   `json:"bucket" bson:"bucket"`
	Pin      PlacePin `json:"pin" bson:"pin"`
	SavedAt  int64    `json:"savedAt" bson:"savedAt"`
}

// SameSlot reports whether another entry occupies the same (list, place)
// slot. At most one entry per slot may exist; a duplicate add replaces the
// earlier entry.
func (e SavedEntry) SameSlot(other SavedEntry) bool {
	return e.ListID == other.ListID && SamePlace(e.Pin, other.Pin)
}
