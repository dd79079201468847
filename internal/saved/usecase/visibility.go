package usecase

import "placesync/internal/saved/domain/model"

// CanView reports whether a viewer with the given relation to a list's owner
// may read the list. The function is total: any visibility value not
// recognized (including the zero value on documents written before
// visibility existed) is treated as public.
func CanView(v model.Visibility, rel model.ViewerRelation) bool {
	switch v {
	case model.VisibilityPrivate:
		return rel.IsSelf
	case model.VisibilityFollowers:
		return rel.IsSelf || rel.IsFollower
	default:
		return true
	}
}

// FilterViewable returns the subset of lists the viewer may read, preserving
// order. Used by profile-viewing surfaces to decide which of another
// account's lists to render.
func FilterViewable(lists []model.ListDefinition, rel model.ViewerRelation) []model.ListDefinition {
	out := make([]model.ListDefinition, 0, len(lists))
	for _, l := range lists {
		if CanView(l.Visibility, rel) {
			out = append(out, l)
		}
	}
	return out
}
