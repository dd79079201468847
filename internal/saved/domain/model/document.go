package model

// AccountDocument is the unit of remote persistence: the whole saved-place
// state of one account. It is always read and written as a complete document,
// never partially.
type AccountDocument struct {
	Lists             []ListDefinition `json:"lists" bson:"lists"`
	Entries           []SavedEntry     `json:"entries" bson:"entries"`
	LikedLists        []LikedListRef   `json:"likedLists" bson:"likedLists"`
	LikedListsVisible bool             `json:"likedListsVisible" bson:"likedListsVisible"`
}

// Clone returns a deep copy of the document. Snapshots handed to
// presentation code must not alias the store's internal slices.
func (d AccountDocument) Clone() AccountDocument {
	out := AccountDocument{
		Lists:             make([]ListDefinition, len(d.Lists)),
		Entries:           make([]SavedEntry, len(d.Entries)),
		LikedLists:        make([]LikedListRef, len(d.LikedLists)),
		LikedListsVisible: d.LikedListsVisible,
	}
	copy(out.Lists, d.Lists)
	copy(out.Entries, d.Entries)
	for i, ref := range d.LikedLists {
		cloned := ref
		cloned.Wishlist = append([]PlacePin(nil), ref.Wishlist...)
		cloned.Favourite = append([]PlacePin(nil), ref.Favourite...)
		out.LikedLists[i] = cloned
	}
	return out
}

// ProfileSnapshot is one delivery from a profile subscription. Exists is
// false when the remote document is absent (fresh account).
type ProfileSnapshot struct {
	Document AccountDocument
	Exists   bool
}
