package model

// LikedListRef is a read-only cached copy of another account's list that the
// viewer has starred. At most one ref exists per (owner, list) pair.
type LikedListRef struct {
	OwnerID     string     `json:"ownerId" bson:"ownerId"`
	ListID      string     `json:"listId" bson:"listId"`
	ListName    string     `json:"listName" bson:"listName"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Wishlist    []PlacePin `json:"wishlist" bson:"wishlist"`
	Favourite   []PlacePin `json:"favourite" bson:"favourite"`
}

// SameRef reports whether two refs point at the same remote list.
func (r LikedListRef) SameRef(ownerID, listID string) bool {
	return r.OwnerID == ownerID && r.ListID == listID
}
