package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/usecase"
	apperrors "placesync/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProofUsecase(t *testing.T, feed *fakeAggregateFeed, graph *fakeSocialGraph) *usecase.SocialProofUsecase {
	t.Helper()
	uc := usecase.NewSocialProofUsecase(feed, graph, nil, nil, usecase.SocialProofConfig{})
	t.Cleanup(uc.Unwatch)
	return uc
}

func viewerSession() model.Session {
	return model.Session{AccountID: "viewer"}
}

func TestSocialProof_ViewBeforeFirstSnapshotNotLoaded(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	uc := newProofUsecase(t, feed, graph)

	pin := model.PlacePin{PlaceID: "A"}
	require.NoError(t, uc.Watch(context.Background(), pin, viewerSession(), usecase.WatchOptions{}))

	_, err := uc.View()
	assert.ErrorIs(t, err, apperrors.ErrAggregateNotLoaded)

	feed.push("g_A", model.PlaceAggregate{WishlistCount: 3})
	require.Eventually(t, func() bool {
		_, err := uc.View()
		return err == nil
	}, time.Second, 5*time.Millisecond)

	view, err := uc.View()
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Counts.WishlistCount)
	assert.False(t, view.Pending)
}

func TestSocialProof_WatchRequiresSession(t *testing.T) {
	uc := newProofUsecase(t, newFakeAggregateFeed(), newFakeSocialGraph())
	err := uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, model.Session{}, usecase.WatchOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNotSignedIn)
}

func TestSocialProof_OptimisticTransitionAndSettlement(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	uc := newProofUsecase(t, feed, graph)

	pin := model.PlacePin{PlaceID: "A"}
	require.NoError(t, uc.Watch(context.Background(), pin, viewerSession(), usecase.WatchOptions{}))

	// No baseline yet: the transition cannot be anchored.
	err := uc.BeginTransition(usecase.SaveTransition{To: model.BucketWishlist}, nil)
	assert.ErrorIs(t, err, apperrors.ErrAggregateNotLoaded)

	feed.push("g_A", model.PlaceAggregate{WishlistCount: 3})
	require.Eventually(t, func() bool {
		_, err := uc.View()
		return err == nil
	}, time.Second, 5*time.Millisecond)

	var settled atomic.Int32
	require.NoError(t, uc.BeginTransition(
		usecase.SaveTransition{From: model.BucketNone, To: model.BucketWishlist},
		func() { settled.Add(1) },
	))

	view, err := uc.View()
	require.NoError(t, err)
	assert.Equal(t, int64(4), view.Counts.WishlistCount, "own save shows before the backend confirms")
	assert.True(t, view.Pending)

	// Remote catches up; the callback fires exactly once.
	feed.push("g_A", model.PlaceAggregate{WishlistCount: 4})
	require.Eventually(t, func() bool { return settled.Load() == 1 }, time.Second, 5*time.Millisecond)

	feed.push("g_A", model.PlaceAggregate{WishlistCount: 5})
	require.Eventually(t, func() bool {
		view, err := uc.View()
		return err == nil && view.Counts.WishlistCount == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), settled.Load())

	view, err = uc.View()
	require.NoError(t, err)
	assert.False(t, view.Pending)
}

func TestSocialProof_FriendAttribution(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	graph.followees = []string{"f1", "f2"}
	graph.records["g_A"] = []model.SaveRecord{
		{AccountID: "f1", Bucket: model.BucketWishlist, SavedAt: 100},
		{AccountID: "f2", Bucket: model.BucketWishlist, SavedAt: 200},
	}
	graph.labels["f2"] = model.DisplayLabel{Username: "alex"}
	uc := newProofUsecase(t, feed, graph)

	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{}))
	feed.push("g_A", model.PlaceAggregate{WishlistCount: 4})

	require.Eventually(t, func() bool {
		view, err := uc.View()
		if err != nil || len(view.Lines) == 0 {
			return false
		}
		return view.Lines[0].Text == "@alex and 3 others"
	}, time.Second, 5*time.Millisecond, "most recent followee save wins the attribution")
}

func TestSocialProof_AttributionTieBreaksToSmallerAccountID(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	graph.followees = []string{"f9", "f2"}
	graph.records["g_A"] = []model.SaveRecord{
		{AccountID: "f9", Bucket: model.BucketFavourite, SavedAt: 100},
		{AccountID: "f2", Bucket: model.BucketFavourite, SavedAt: 100},
	}
	graph.labels["f2"] = model.DisplayLabel{DisplayName: "Sam"}
	graph.labels["f9"] = model.DisplayLabel{DisplayName: "Zoe"}
	uc := newProofUsecase(t, feed, graph)

	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{}))
	feed.push("g_A", model.PlaceAggregate{FavouriteCount: 2})

	require.Eventually(t, func() bool {
		view, err := uc.View()
		if err != nil || len(view.Lines) == 0 {
			return false
		}
		return view.Lines[0].Text == "Sam and 1 other"
	}, time.Second, 5*time.Millisecond)
}

func TestSocialProof_AttributionFailureDegradesToCounts(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	graph.followees = []string{"f1"}
	graph.records["g_A"] = []model.SaveRecord{
		{AccountID: "f1", Bucket: model.BucketWishlist, SavedAt: 100},
	}
	graph.labelErr = errors.New("profile service down")
	uc := newProofUsecase(t, feed, graph)

	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{}))
	feed.push("g_A", model.PlaceAggregate{WishlistCount: 4})

	require.Eventually(t, func() bool {
		view, err := uc.View()
		return err == nil && len(view.Lines) == 1
	}, time.Second, 5*time.Millisecond)

	view, err := uc.View()
	require.NoError(t, err)
	assert.Equal(t, "4 people", view.Lines[0].Text, "a failed lookup never blocks the counts")
}

func TestSocialProof_StaleAttributionNeverCommits(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	graph.followees = []string{"f1"}
	graph.records["g_A"] = []model.SaveRecord{
		{AccountID: "f1", Bucket: model.BucketWishlist, SavedAt: 100},
	}
	graph.records["g_B"] = []model.SaveRecord{
		{AccountID: "f1", Bucket: model.BucketWishlist, SavedAt: 100},
	}
	graph.labels["f1"] = model.DisplayLabel{Username: "alex"}

	block := make(chan struct{})
	graph.mu.Lock()
	graph.blockRecords = block
	graph.mu.Unlock()

	uc := newProofUsecase(t, feed, graph)

	// Viewer opens place A, then navigates to place B before A's lookup
	// resolves.
	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{}))
	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "B"}, viewerSession(), usecase.WatchOptions{}))
	feed.push("g_B", model.PlaceAggregate{WishlistCount: 2})
	close(block)

	require.Eventually(t, func() bool {
		view, err := uc.View()
		if err != nil || len(view.Lines) == 0 {
			return false
		}
		return strings.HasPrefix(view.Lines[0].Text, "@alex")
	}, time.Second, 5*time.Millisecond)

	view, err := uc.View()
	require.NoError(t, err)
	assert.Equal(t, "g_B", view.PlaceKey, "only the current place's lookup may commit")
}

func TestSocialProof_SelfBucketInLines(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	uc := newProofUsecase(t, feed, graph)

	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{
		SelfBucket: model.BucketWishlist,
	}))
	feed.push("g_A", model.PlaceAggregate{WishlistCount: 1})

	require.Eventually(t, func() bool {
		view, err := uc.View()
		return err == nil && len(view.Lines) == 1 && view.Lines[0].Text == "you"
	}, time.Second, 5*time.Millisecond)

	uc.SetSelfBucket(model.BucketNone)
	view, err := uc.View()
	require.NoError(t, err)
	assert.Equal(t, "1 person", view.Lines[0].Text)
}

func TestSocialProof_OnUpdateDeliversViews(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	uc := newProofUsecase(t, feed, graph)

	updates := make(chan usecase.ProofView, 8)
	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{
		OnUpdate: func(v usecase.ProofView) { updates <- v },
	}))

	feed.push("g_A", model.PlaceAggregate{})
	select {
	case view := <-updates:
		assert.Empty(t, view.Lines)
		assert.Equal(t, "Be the first to save this spot.", view.Incentive)
	case <-time.After(time.Second):
		t.Fatal("no update delivered after first snapshot")
	}
}

func TestSocialProof_RewatchCancelsPreviousFeed(t *testing.T) {
	feed := newFakeAggregateFeed()
	graph := newFakeSocialGraph()
	uc := newProofUsecase(t, feed, graph)

	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "A"}, viewerSession(), usecase.WatchOptions{}))
	require.NoError(t, uc.Watch(context.Background(), model.PlacePin{PlaceID: "B"}, viewerSession(), usecase.WatchOptions{}))

	feed.mu.Lock()
	cancels := feed.cancels
	feed.mu.Unlock()
	assert.Equal(t, 1, cancels)

	uc.Unwatch()
	_, err := uc.View()
	assert.ErrorIs(t, err, apperrors.ErrAggregateNotLoaded)
}
