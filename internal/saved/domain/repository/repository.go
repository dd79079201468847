package repository

import (
	"context"

	"placesync/internal/saved/domain/model"
)

// CancelFunc tears a subscription down. Implementations must close the
// delivery channel so consumer loops terminate deterministically; calling it
// more than once is safe.
type CancelFunc func()

// ProfileRepository is the remote document store holding one saved-place
// document per account.
type ProfileRepository interface {
	// Subscribe opens a realtime stream of the account's document. The first
	// delivery reflects the current remote state (absent for fresh accounts);
	// later deliveries follow remote changes in arrival order.
	Subscribe(ctx context.Context, accountID string) (<-chan model.ProfileSnapshot, CancelFunc, error)

	// Persist writes the whole document for the account with merge semantics.
	Persist(ctx context.Context, accountID string, doc model.AccountDocument) error
}

// AggregateFeed streams per-place social counters maintained by the backend's
// counter pipeline.
type AggregateFeed interface {
	// Subscribe opens a realtime stream of the place's aggregate counters.
	// The first delivery carries Exists=false when the place has no counter
	// record yet.
	Subscribe(ctx context.Context, placeKey string) (<-chan model.AggregateSnapshot, CancelFunc, error)
}

// SocialGraph resolves the viewer's follow relationships and followee save
// state, used to attribute social proof to a named friend.
type SocialGraph interface {
	// FolloweeIDs returns up to limit accounts the viewer follows. The limit
	// bounds friend-attribution fan-out.
	FolloweeIDs(ctx context.Context, accountID string, limit int) ([]string, error)

	// SaveRecords returns the save state of the given accounts for one place.
	// Accounts without a save are omitted from the result.
	SaveRecords(ctx context.Context, placeKey string, accountIDs []string) ([]model.SaveRecord, error)

	// DisplayLabel resolves the naming info for an account.
	DisplayLabel(ctx context.Context, accountID string) (model.DisplayLabel, error)
}
