package usecase

import "placesync/internal/saved/domain/model"

// SaveTransition expresses a local toggle of the viewer's own save state for
// a place: From and To are each a bucket or none.
type SaveTransition struct {
	From model.Bucket
	To   model.Bucket
}

// IsZero reports whether the transition changes nothing.
func (t SaveTransition) IsZero() bool {
	return t.From == t.To
}

// OverlayPhase is the lifecycle of an optimistic counter overlay.
type OverlayPhase int

const (
	// OverlayIdle means the raw remote aggregate is trusted as-is.
	OverlayIdle OverlayPhase = iota
	// OverlayPending means a local transition is applied on top of the
	// baseline until the remote aggregate catches up.
	OverlayPending
	// OverlaySettled means the remote aggregate has moved in the expected
	// direction; the overlay is spent and no longer adjusts counts.
	OverlaySettled
)

// Overlay is the per-place optimistic counter state machine. Transitions are
// driven only by user action (Begin) and aggregate-update events (Observe);
// rendering reads through Apply. Not safe for concurrent use; the owning
// watcher serializes access.
type Overlay struct {
	phase      OverlayPhase
	baseline   model.PlaceAggregate
	transition SaveTransition
}

// Phase returns the current overlay phase.
func (o *Overlay) Phase() OverlayPhase {
	return o.phase
}

// Begin starts a pending overlay, snapshotting the aggregate counts at the
// moment the transition begins. A transition that changes nothing resets the
// overlay to idle.
func (o *Overlay) Begin(t SaveTransition, baseline model.PlaceAggregate) {
	if t.IsZero() {
		o.Clear()
		return
	}
	o.phase = OverlayPending
	o.baseline = baseline
	o.transition = t
}

// Observe feeds a fresh remote aggregate into the machine. It returns true
// exactly once: when the aggregate has moved in the expected direction
// relative to the baseline, meaning the backend has absorbed the viewer's
// action and the overlay can be discarded.
func (o *Overlay) Observe(agg model.PlaceAggregate) bool {
	if o.phase != OverlayPending {
		return false
	}
	if t := o.transition.To; t != model.BucketNone {
		if agg.Count(t) <= o.baseline.Count(t) {
			return false
		}
	}
	if f := o.transition.From; f != model.BucketNone {
		if agg.Count(f) >= o.baseline.Count(f) {
			return false
		}
	}
	o.phase = OverlaySettled
	return true
}

// Apply returns the counts to display: the remote aggregate adjusted by the
// pending transition, floored at zero. Outside the pending phase the remote
// aggregate passes through untouched.
func (o *Overlay) Apply(agg model.PlaceAggregate) model.PlaceAggregate {
	if o.phase != OverlayPending {
		return agg
	}
	return model.PlaceAggregate{
		WishlistCount:  applyDelta(agg.WishlistCount, o.delta(model.BucketWishlist)),
		FavouriteCount: applyDelta(agg.FavouriteCount, o.delta(model.BucketFavourite)),
	}
}

func (o *Overlay) delta(bucket model.Bucket) int64 {
	var d int64
	if o.transition.To == bucket {
		d++
	}
	if o.transition.From == bucket {
		d--
	}
	return d
}

func applyDelta(count, delta int64) int64 {
	if adjusted := count + delta; adjusted > 0 {
		return adjusted
	}
	return 0
}

// Clear resets the machine to idle.
func (o *Overlay) Clear() {
	*o = Overlay{}
}
