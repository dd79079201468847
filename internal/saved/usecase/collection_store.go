package usecase

import (
	"context"
	"reflect"
	"sync"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
	apperrors "placesync/internal/shared/errors"
	"placesync/internal/shared/eventbus"
	"placesync/internal/shared/logger"
)

// CollectionStore owns the canonical in-memory saved-place state for the
// signed-in account. Mutators apply synchronously and schedule a
// fire-and-forget persist through the WriteSerializer; the remote round trip
// never blocks the caller. All state is discarded wholesale on account
// switch.
type CollectionStore struct {
	profiles   repository.ProfileRepository
	serializer *WriteSerializer
	bus        *eventbus.EventBus
	log        logger.Logger

	mu         sync.Mutex
	session    model.Session
	doc        model.AccountDocument
	ready      bool
	generation uint64
	cancelSub  repository.CancelFunc
}

// NewCollectionStore creates a store. The profile repository may be nil when
// hydration is driven externally via Hydrate.
func NewCollectionStore(profiles repository.ProfileRepository, serializer *WriteSerializer, bus *eventbus.EventBus, log logger.Logger) *CollectionStore {
	if log == nil {
		log = logger.Noop()
	}
	return &CollectionStore{
		profiles:   profiles,
		serializer: serializer,
		bus:        bus,
		log:        log.WithComponent("collection_store"),
	}
}

func (s *CollectionStore) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// BindAccount switches the store to a new account. All in-memory state is
// replaced, the previous profile subscription is torn down, and a new one is
// opened; its deliveries re-hydrate the store in arrival order. Snapshots
// from the previous subscription cannot land after the switch because the
// consumer loop checks its generation before applying.
func (s *CollectionStore) BindAccount(ctx context.Context, session model.Session) error {
	if !session.Valid() {
		s.reset(model.Session{})
		return nil
	}

	unlock := s.lock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.session = session
	s.doc = model.AccountDocument{}
	s.ready = false
	s.generation++
	gen := s.generation
	unlock()

	if s.serializer != nil {
		s.serializer.Bind(session)
	}
	s.publish(eventbus.EventTypeStoreReset, session.AccountID)

	if s.profiles == nil {
		return nil
	}

	snapshots, cancel, err := s.profiles.Subscribe(ctx, session.AccountID)
	if err != nil {
		s.log.Errorf("Profile subscription failed for account %q: %v", session.AccountID, err)
		return apperrors.NewInfrastructureError("profile subscription failed").WithCause(err)
	}

	unlock = s.lock()
	if s.generation != gen {
		// Another bind raced us. Drop this subscription.
		unlock()
		cancel()
		return nil
	}
	s.cancelSub = cancel
	unlock()

	go s.consumeProfile(gen, session, snapshots)
	return nil
}

// consumeProfile applies subscription deliveries in arrival order. The loop
// exits when the subscription channel closes.
func (s *CollectionStore) consumeProfile(gen uint64, session model.Session, snapshots <-chan model.ProfileSnapshot) {
	for snap := range snapshots {
		doc := model.AccountDocument{}
		if snap.Exists {
			doc = snap.Document
		}
		if !s.applyHydration(gen, doc) {
			return
		}
		s.publish(eventbus.EventTypeStoreHydrated, session.AccountID)
		s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	}
}

func (s *CollectionStore) applyHydration(gen uint64, doc model.AccountDocument) bool {
	unlock := s.lock()
	defer unlock()
	if s.generation != gen {
		return false
	}
	s.doc = doc.Clone()
	s.ready = true
	return true
}

// Hydrate replaces the whole in-memory state from a remote snapshot and
// marks the store ready. Used directly when the subscription is managed by
// the caller.
func (s *CollectionStore) Hydrate(session model.Session, doc model.AccountDocument) {
	unlock := s.lock()
	s.session = session
	s.doc = doc.Clone()
	s.ready = true
	unlock()
	if s.serializer != nil {
		s.serializer.Bind(session)
	}
	s.publish(eventbus.EventTypeStoreHydrated, session.AccountID)
	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
}

func (s *CollectionStore) reset(session model.Session) {
	unlock := s.lock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.session = session
	s.doc = model.AccountDocument{}
	s.ready = false
	s.generation++
	unlock()
	if s.serializer != nil {
		s.serializer.Bind(session)
	}
	s.publish(eventbus.EventTypeStoreReset, session.AccountID)
}

// Ready reports whether the first hydration has completed. Writes are
// suppressed before that to avoid clobbering server state with an empty
// local default.
func (s *CollectionStore) Ready() bool {
	unlock := s.lock()
	defer unlock()
	return s.ready
}

// Snapshot returns a deep copy of the current state for rendering.
func (s *CollectionStore) Snapshot() model.AccountDocument {
	unlock := s.lock()
	defer unlock()
	return s.doc.Clone()
}

func (s *CollectionStore) checkSession(session model.Session) error {
	if !session.Valid() {
		return apperrors.ErrNotSignedIn
	}
	if s.session.Valid() && !s.session.SameAccount(session) {
		// A caller holding a session from a previous sign-in. Treated the
		// same as not being signed in; the serializer-level re-check covers
		// the async half of this race.
		return apperrors.ErrNotSignedIn
	}
	return nil
}

// schedulePersist clones the current document and hands it to the
// serializer. Must be called with the lock held; the clone decouples the
// in-flight write from later mutations.
func (s *CollectionStore) schedulePersist(session model.Session) {
	if !s.ready {
		s.log.Debug("Persist suppressed before first hydration")
		return
	}
	if s.serializer == nil {
		return
	}
	s.serializer.Schedule(session, s.doc.Clone())
}

// AddEntry saves a pin into a list. Any existing entry for the same
// (list, place) slot is replaced, so a list holds at most one entry per
// place.
func (s *CollectionStore) AddEntry(session model.Session, entry model.SavedEntry) error {
	if err := s.checkSession(session); err != nil {
		return err
	}
	if err := entry.Pin.Validate(); err != nil {
		return apperrors.NewValidationError("invalid place pin").WithCause(err)
	}

	unlock := s.lock()
	kept := s.doc.Entries[:0:0]
	for _, e := range s.doc.Entries {
		if !e.SameSlot(entry) {
			kept = append(kept, e)
		}
	}
	s.doc.Entries = append(kept, entry)
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// RemoveEntry removes the entry for the (list, place) slot if present. A
// missing entry is a no-op, not an error.
func (s *CollectionStore) RemoveEntry(session model.Session, listID string, pin model.PlacePin) error {
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	probe := model.SavedEntry{ListID: listID, Pin: pin}
	kept := s.doc.Entries[:0:0]
	removed := false
	for _, e := range s.doc.Entries {
		if e.SameSlot(probe) {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		unlock()
		return nil
	}
	s.doc.Entries = kept
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// AddList creates a list and returns its definition synchronously. The id is
// generated client-side and never reused.
func (s *CollectionStore) AddList(session model.Session, name string, visibility model.Visibility) (model.ListDefinition, error) {
	trimmed, err := model.ValidateListName(name)
	if err != nil {
		return model.ListDefinition{}, apperrors.NewValidationError(err.Error()).WithCause(apperrors.ErrEmptyListName)
	}
	if err := s.checkSession(session); err != nil {
		return model.ListDefinition{}, err
	}

	def := model.ListDefinition{
		ID:         model.NewListID(),
		Name:       trimmed,
		Visibility: visibility,
	}

	unlock := s.lock()
	s.doc.Lists = append(s.doc.Lists, def)
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return def, nil
}

// RemoveList deletes a list and every entry referencing it. Both arrays go
// out in one persist call so the remote never observes a half-applied
// cascade.
func (s *CollectionStore) RemoveList(session model.Session, listID string) error {
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	lists := s.doc.Lists[:0:0]
	found := false
	for _, l := range s.doc.Lists {
		if l.ID == listID {
			found = true
			continue
		}
		lists = append(lists, l)
	}
	if !found {
		unlock()
		return nil
	}
	entries := s.doc.Entries[:0:0]
	for _, e := range s.doc.Entries {
		if e.ListID != listID {
			entries = append(entries, e)
		}
	}
	s.doc.Lists = lists
	s.doc.Entries = entries
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// RenameList updates a list's name. Denormalized entry list names are left
// as captured at save time.
func (s *CollectionStore) RenameList(session model.Session, listID, name string) error {
	trimmed, err := model.ValidateListName(name)
	if err != nil {
		return apperrors.NewValidationError(err.Error()).WithCause(apperrors.ErrEmptyListName)
	}
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	idx := -1
	for i, l := range s.doc.Lists {
		if l.ID == listID {
			idx = i
			break
		}
	}
	if idx < 0 {
		unlock()
		return apperrors.ErrListNotFound
	}
	if s.doc.Lists[idx].Name == trimmed {
		unlock()
		return nil
	}
	s.doc.Lists[idx].Name = trimmed
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// UpdateListVisibility changes who may read the list. A same-value update is
// a no-op and schedules no write.
func (s *CollectionStore) UpdateListVisibility(session model.Session, listID string, v model.Visibility) error {
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	idx := -1
	for i, l := range s.doc.Lists {
		if l.ID == listID {
			idx = i
			break
		}
	}
	if idx < 0 {
		unlock()
		return apperrors.ErrListNotFound
	}
	if s.doc.Lists[idx].Visibility == v {
		unlock()
		return nil
	}
	s.doc.Lists[idx].Visibility = v
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// LikeList stars another account's list. At most one ref exists per
// (owner, list) pair; re-liking with identical content is a no-op.
func (s *CollectionStore) LikeList(session model.Session, ref model.LikedListRef) error {
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	idx := -1
	for i, r := range s.doc.LikedLists {
		if r.SameRef(ref.OwnerID, ref.ListID) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		if reflect.DeepEqual(s.doc.LikedLists[idx], ref) {
			unlock()
			return nil
		}
		s.doc.LikedLists[idx] = ref
	} else {
		s.doc.LikedLists = append(s.doc.LikedLists, ref)
	}
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// UnlikeList removes the star for a (owner, list) pair. Idempotent: a second
// call is a no-op and schedules no write.
func (s *CollectionStore) UnlikeList(session model.Session, ownerID, listID string) error {
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	kept := s.doc.LikedLists[:0:0]
	removed := false
	for _, r := range s.doc.LikedLists {
		if r.SameRef(ownerID, listID) {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		unlock()
		return nil
	}
	s.doc.LikedLists = kept
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// SetLikedListsVisibility flips whether the account's liked lists are shown
// on its profile. A same-value call is a no-op and schedules no write.
func (s *CollectionStore) SetLikedListsVisibility(session model.Session, visible bool) error {
	if err := s.checkSession(session); err != nil {
		return err
	}

	unlock := s.lock()
	if s.doc.LikedListsVisible == visible {
		unlock()
		return nil
	}
	s.doc.LikedListsVisible = visible
	s.schedulePersist(session)
	unlock()

	s.publish(eventbus.EventTypeSnapshotUpdated, session.AccountID)
	return nil
}

// Close tears down the profile subscription.
func (s *CollectionStore) Close() {
	unlock := s.lock()
	if s.cancelSub != nil {
		s.cancelSub()
		s.cancelSub = nil
	}
	s.generation++
	unlock()
}

func (s *CollectionStore) publish(eventType, accountID string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(),
		eventbus.NewBasicEventWithSource(eventType, accountID, "collection_store")); err != nil {
		s.log.Errorf("Failed to publish %s: %v", eventType, err)
	}
}
