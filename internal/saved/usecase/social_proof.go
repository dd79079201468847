package usecase

import (
	"context"
	"sync"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
	apperrors "placesync/internal/shared/errors"
	"placesync/internal/shared/eventbus"
	"placesync/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFollowSampleSize bounds friend-attribution fan-out. Hand-tuned
	// upstream; configurable here.
	DefaultFollowSampleSize = 50
	// DefaultAttributionBatchSize is how many followee save records one
	// batched lookup covers.
	DefaultAttributionBatchSize = 10
)

// SocialProofConfig tunes the aggregator.
type SocialProofConfig struct {
	FollowSampleSize     int
	AttributionBatchSize int
}

func (c *SocialProofConfig) applyDefaults() {
	if c.FollowSampleSize <= 0 {
		c.FollowSampleSize = DefaultFollowSampleSize
	}
	if c.AttributionBatchSize <= 0 {
		c.AttributionBatchSize = DefaultAttributionBatchSize
	}
}

// ProofView is the renderable social-proof state for the watched place.
type ProofView struct {
	PlaceKey  string
	Counts    model.PlaceAggregate
	Lines     []ProofLine
	Incentive string
	Pending   bool
}

// WatchOptions configures a place watch.
type WatchOptions struct {
	// SelfBucket is the viewer's own save bucket for the place when the view
	// opens, or none.
	SelfBucket model.Bucket
	// OnUpdate is invoked after every state change with a fresh view.
	// Optional.
	OnUpdate func(ProofView)
}

type friendAttribution struct {
	wishlistLabel  string
	favouriteLabel string
}

type placeWatch struct {
	gen         uint64
	placeKey    string
	session     model.Session
	cancel      repository.CancelFunc
	overlay     Overlay
	loaded      bool
	latest      model.PlaceAggregate
	attribution friendAttribution
	selfBucket  model.Bucket
	onUpdate    func(ProofView)
	onSettled   func()
}

// SocialProofUsecase produces the "N people saved this, led by @friend"
// state for the place in view, blending the live remote aggregate, friend
// attribution and the viewer's own optimistic transition. One place is
// watched at a time; watching a new place cancels the previous watch and
// guarantees that late results from it never commit.
type SocialProofUsecase struct {
	feed  repository.AggregateFeed
	graph repository.SocialGraph
	bus   *eventbus.EventBus
	log   logger.Logger
	cfg   SocialProofConfig

	mu         sync.Mutex
	generation uint64
	watch      *placeWatch
}

// NewSocialProofUsecase creates the aggregator.
func NewSocialProofUsecase(feed repository.AggregateFeed, graph repository.SocialGraph, bus *eventbus.EventBus, log logger.Logger, cfg SocialProofConfig) *SocialProofUsecase {
	if log == nil {
		log = logger.Noop()
	}
	cfg.applyDefaults()
	return &SocialProofUsecase{
		feed:  feed,
		graph: graph,
		bus:   bus,
		log:   log.WithComponent("social_proof"),
		cfg:   cfg,
	}
}

// Watch starts observing a place for the viewer. It subscribes the aggregate
// feed and kicks off friend attribution; both deliver asynchronously through
// OnUpdate. Rendering is suppressed (View returns ErrAggregateNotLoaded)
// until the first aggregate snapshot arrives, so "no saves yet" is never
// confused with "data not loaded yet".
func (uc *SocialProofUsecase) Watch(ctx context.Context, pin model.PlacePin, session model.Session, opts WatchOptions) error {
	if !session.Valid() {
		return apperrors.ErrNotSignedIn
	}
	placeKey := pin.Key()

	uc.mu.Lock()
	if uc.watch != nil && uc.watch.cancel != nil {
		uc.watch.cancel()
	}
	uc.generation++
	w := &placeWatch{
		gen:        uc.generation,
		placeKey:   placeKey,
		session:    session,
		selfBucket: opts.SelfBucket,
		onUpdate:   opts.OnUpdate,
	}
	uc.watch = w
	uc.mu.Unlock()

	snapshots, cancel, err := uc.feed.Subscribe(ctx, placeKey)
	if err != nil {
		uc.log.Errorf("Aggregate subscription failed for place %s: %v", placeKey, err)
		return apperrors.NewInfrastructureError("aggregate subscription failed").WithCause(err)
	}

	uc.mu.Lock()
	if uc.watch != w {
		uc.mu.Unlock()
		cancel()
		return nil
	}
	w.cancel = cancel
	uc.mu.Unlock()

	go uc.consumeAggregates(w, snapshots)
	go uc.resolveAttribution(ctx, w)
	return nil
}

// Unwatch stops observing the current place.
func (uc *SocialProofUsecase) Unwatch() {
	uc.mu.Lock()
	w := uc.watch
	uc.watch = nil
	uc.generation++
	uc.mu.Unlock()
	if w != nil && w.cancel != nil {
		w.cancel()
	}
}

// consumeAggregates applies feed deliveries in arrival order and drives the
// overlay machine. The settlement callback fires exactly once, when the
// remote aggregate has moved in the expected direction past the baseline.
func (uc *SocialProofUsecase) consumeAggregates(w *placeWatch, snapshots <-chan model.AggregateSnapshot) {
	for snap := range snapshots {
		uc.mu.Lock()
		if uc.watch != w {
			uc.mu.Unlock()
			return
		}
		w.latest = snap.Aggregate
		w.loaded = true
		settled := w.overlay.Observe(snap.Aggregate)
		var onSettled func()
		if settled {
			onSettled = w.onSettled
			w.onSettled = nil
			w.overlay.Clear()
		}
		view := uc.viewLocked(w)
		onUpdate := w.onUpdate
		uc.mu.Unlock()

		if settled {
			uc.publish(eventbus.EventTypeTransitionSettled, w.placeKey)
			if onSettled != nil {
				onSettled()
			}
		}
		uc.publish(eventbus.EventTypeAggregateUpdated, w.placeKey)
		if onUpdate != nil {
			onUpdate(view)
		}
	}
}

// resolveAttribution runs the bounded scatter-gather over the viewer's
// followees and commits the winning labels, unless the viewer has navigated
// away in the meantime. Failures degrade to no friend label.
func (uc *SocialProofUsecase) resolveAttribution(ctx context.Context, w *placeWatch) {
	attribution, err := uc.lookupAttribution(ctx, w.placeKey, w.session)
	if err != nil {
		uc.log.Warnf("Friend attribution failed for place %s: %v", w.placeKey, err)
		return
	}

	uc.mu.Lock()
	if uc.watch != w {
		uc.mu.Unlock()
		return
	}
	w.attribution = attribution
	loaded := w.loaded
	view := uc.viewLocked(w)
	onUpdate := w.onUpdate
	uc.mu.Unlock()

	if loaded && onUpdate != nil {
		onUpdate(view)
	}
}

func (uc *SocialProofUsecase) lookupAttribution(ctx context.Context, placeKey string, session model.Session) (friendAttribution, error) {
	ids, err := uc.graph.FolloweeIDs(ctx, session.AccountID, uc.cfg.FollowSampleSize)
	if err != nil {
		return friendAttribution{}, err
	}
	followees := ids[:0:0]
	for _, id := range ids {
		if id != session.AccountID {
			followees = append(followees, id)
		}
	}
	if len(followees) == 0 {
		return friendAttribution{}, nil
	}

	records, err := uc.fetchSaveRecords(ctx, placeKey, followees)
	if err != nil {
		return friendAttribution{}, err
	}

	wishlistID, hasWishlist := pickLatestCandidate(records, model.BucketWishlist)
	favouriteID, hasFavourite := pickLatestCandidate(records, model.BucketFavourite)

	var attribution friendAttribution
	g, gctx := errgroup.WithContext(ctx)
	if hasWishlist {
		g.Go(func() error {
			label, err := uc.graph.DisplayLabel(gctx, wishlistID)
			if err != nil {
				return err
			}
			attribution.wishlistLabel = label.Resolve()
			return nil
		})
	}
	if hasFavourite {
		g.Go(func() error {
			label, err := uc.graph.DisplayLabel(gctx, favouriteID)
			if err != nil {
				return err
			}
			attribution.favouriteLabel = label.Resolve()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return friendAttribution{}, err
	}
	return attribution, nil
}

// fetchSaveRecords scatters the capped followee sample over batched lookups
// and gathers the results. The batches run in parallel; only the final join
// is ordered with respect to the commit.
func (uc *SocialProofUsecase) fetchSaveRecords(ctx context.Context, placeKey string, followees []string) ([]model.SaveRecord, error) {
	batchSize := uc.cfg.AttributionBatchSize
	batches := make([][]string, 0, (len(followees)+batchSize-1)/batchSize)
	for start := 0; start < len(followees); start += batchSize {
		end := start + batchSize
		if end > len(followees) {
			end = len(followees)
		}
		batches = append(batches, followees[start:end])
	}

	results := make([][]model.SaveRecord, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			records, err := uc.graph.SaveRecords(gctx, placeKey, batch)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []model.SaveRecord
	for _, batch := range results {
		records = append(records, batch...)
	}
	return records, nil
}

// pickLatestCandidate picks the followee whose save in the bucket is most
// recent. Ties break toward the smaller account id so the winner is
// deterministic regardless of batch arrival order.
func pickLatestCandidate(records []model.SaveRecord, bucket model.Bucket) (string, bool) {
	var winner model.SaveRecord
	found := false
	for _, r := range records {
		if r.Bucket != bucket {
			continue
		}
		if !found || r.SavedAt > winner.SavedAt ||
			(r.SavedAt == winner.SavedAt && r.AccountID < winner.AccountID) {
			winner = r
			found = true
		}
	}
	return winner.AccountID, found
}

// BeginTransition registers the viewer's just-performed save toggle. The
// displayed counts reflect it immediately; onSettled fires once the remote
// aggregate catches up. Requires a loaded aggregate so the baseline is the
// counts at the moment the transition began.
func (uc *SocialProofUsecase) BeginTransition(t SaveTransition, onSettled func()) error {
	uc.mu.Lock()
	w := uc.watch
	if w == nil || !w.loaded {
		uc.mu.Unlock()
		return apperrors.ErrAggregateNotLoaded
	}
	w.overlay.Begin(t, w.latest)
	w.selfBucket = t.To
	w.onSettled = onSettled
	view := uc.viewLocked(w)
	onUpdate := w.onUpdate
	uc.mu.Unlock()

	if onUpdate != nil {
		onUpdate(view)
	}
	return nil
}

// SetSelfBucket overrides the viewer's own bucket, e.g. after hydration
// reveals the place was already saved.
func (uc *SocialProofUsecase) SetSelfBucket(b model.Bucket) {
	uc.mu.Lock()
	if w := uc.watch; w != nil {
		w.selfBucket = b
	}
	uc.mu.Unlock()
}

// View returns the current renderable state. Before the first aggregate
// snapshot it returns ErrAggregateNotLoaded and nothing should be rendered.
func (uc *SocialProofUsecase) View() (ProofView, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	w := uc.watch
	if w == nil || !w.loaded {
		return ProofView{}, apperrors.ErrAggregateNotLoaded
	}
	return uc.viewLocked(w), nil
}

// viewLocked computes the renderable state. Callers hold uc.mu.
func (uc *SocialProofUsecase) viewLocked(w *placeWatch) ProofView {
	displayed := w.overlay.Apply(w.latest)
	lines, incentive := FormatProofLines(ProofInput{
		WishlistCount:        displayed.WishlistCount,
		FavouriteCount:       displayed.FavouriteCount,
		WishlistFriendLabel:  w.attribution.wishlistLabel,
		FavouriteFriendLabel: w.attribution.favouriteLabel,
		SelfBucket:           w.selfBucket,
	})
	return ProofView{
		PlaceKey:  w.placeKey,
		Counts:    displayed,
		Lines:     lines,
		Incentive: incentive,
		Pending:   w.overlay.Phase() == OverlayPending,
	}
}

func (uc *SocialProofUsecase) publish(eventType, placeKey string) {
	if uc.bus == nil {
		return
	}
	uc.bus.PublishAndForget(context.Background(),
		eventbus.NewBasicEventWithSource(eventType, placeKey, "social_proof"))
}
