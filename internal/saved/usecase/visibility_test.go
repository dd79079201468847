package usecase_test

import (
	"testing"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/usecase"

	"github.com/stretchr/testify/assert"
)

func TestCanView_TotalOverAllCombinations(t *testing.T) {
	relations := []model.ViewerRelation{
		{IsSelf: false, IsFollower: false},
		{IsSelf: false, IsFollower: true},
		{IsSelf: true, IsFollower: false},
		{IsSelf: true, IsFollower: true},
	}

	tests := []struct {
		visibility model.Visibility
		want       [4]bool // aligned with relations above
	}{
		{model.VisibilityPublic, [4]bool{true, true, true, true}},
		{model.VisibilityFollowers, [4]bool{false, true, true, true}},
		{model.VisibilityPrivate, [4]bool{false, false, true, true}},
		// Unset visibility predates the feature and must read as public.
		{model.Visibility(""), [4]bool{true, true, true, true}},
	}

	for _, tt := range tests {
		for i, rel := range relations {
			got := usecase.CanView(tt.visibility, rel)
			assert.Equalf(t, tt.want[i], got,
				"CanView(%q, self=%v follower=%v)", tt.visibility, rel.IsSelf, rel.IsFollower)
		}
	}
}

func TestCanView_Deterministic(t *testing.T) {
	rel := model.ViewerRelation{IsFollower: true}
	first := usecase.CanView(model.VisibilityFollowers, rel)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, usecase.CanView(model.VisibilityFollowers, rel))
	}
}

func TestFilterViewable(t *testing.T) {
	lists := []model.ListDefinition{
		{ID: "a", Visibility: model.VisibilityPublic},
		{ID: "b", Visibility: model.VisibilityPrivate},
		{ID: "c", Visibility: model.VisibilityFollowers},
		{ID: "d"}, // unset, treated as public
	}

	stranger := usecase.FilterViewable(lists, model.ViewerRelation{})
	ids := make([]string, 0, len(stranger))
	for _, l := range stranger {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"a", "d"}, ids)

	owner := usecase.FilterViewable(lists, model.ViewerRelation{IsSelf: true})
	assert.Len(t, owner, 4)
}
