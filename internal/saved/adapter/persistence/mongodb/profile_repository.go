package mongodb

import (
	"context"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
	"placesync/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	profilesCollection   = "profiles"
	followsCollection    = "follows"
	placeSavesCollection = "place_saves"
)

// profileDocument is the persisted shape of one account's saved-place state
// plus its public naming fields.
type profileDocument struct {
	ID                string                 `bson:"_id"`
	Lists             []model.ListDefinition `bson:"lists"`
	Entries           []model.SavedEntry     `bson:"entries"`
	LikedLists        []model.LikedListRef   `bson:"likedLists"`
	LikedListsVisible bool                   `bson:"likedListsVisible"`
	Username          string                 `bson:"username,omitempty"`
	DisplayName       string                 `bson:"displayName,omitempty"`
}

type followDocument struct {
	FollowerID string `bson:"followerId"`
	FolloweeID string `bson:"followeeId"`
}

type placeSaveDocument struct {
	PlaceKey  string       `bson:"placeKey"`
	AccountID string       `bson:"accountId"`
	Bucket    model.Bucket `bson:"bucket"`
	SavedAt   int64        `bson:"savedAt"`
}

// ProfileRepository implements the profile store and social graph contracts
// on MongoDB. Profile subscriptions use change streams, so the deployment
// must run a replica set.
type ProfileRepository struct {
	db     *mongo.Database
	logger logger.Logger
}

// NewProfileRepository creates a MongoDB-backed profile repository.
func NewProfileRepository(db *mongo.Database, log logger.Logger) *ProfileRepository {
	if log == nil {
		log = logger.Noop()
	}
	return &ProfileRepository{
		db:     db,
		logger: log.WithComponent("mongodb_profile_repository"),
	}
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
var _ repository.SocialGraph = (*ProfileRepository)(nil)

// Persist writes the account's whole saved-place document with merge
// semantics: only the saved-collection fields are replaced, naming fields
// and anything else on the profile stay untouched.
func (r *ProfileRepository) Persist(ctx context.Context, accountID string, doc model.AccountDocument) error {
	update := bson.M{
		"$set": bson.M{
			"lists":             normalizeLists(doc.Lists),
			"entries":           normalizeEntries(doc.Entries),
			"likedLists":        normalizeLikedLists(doc.LikedLists),
			"likedListsVisible": doc.LikedListsVisible,
		},
	}
	_, err := r.db.Collection(profilesCollection).UpdateOne(
		ctx,
		bson.M{"_id": accountID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		r.logger.Errorf("Failed to persist profile for account %s: %v", accountID, err)
		return err
	}
	return nil
}

// Subscribe opens a change-stream-backed profile subscription. The first
// delivery is the current remote state; later deliveries follow remote
// writes in commit order. The returned cancel closes the delivery channel.
func (r *ProfileRepository) Subscribe(ctx context.Context, accountID string) (<-chan model.ProfileSnapshot, repository.CancelFunc, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: accountID}}}},
	}
	streamCtx, cancelStream := context.WithCancel(context.Background())
	stream, err := r.db.Collection(profilesCollection).Watch(
		streamCtx,
		pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		cancelStream()
		r.logger.Errorf("Failed to open profile change stream for account %s: %v", accountID, err)
		return nil, nil, err
	}

	out := make(chan model.ProfileSnapshot, 8)

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		// Initial snapshot before streaming changes.
		snap, err := r.loadSnapshot(streamCtx, accountID)
		if err != nil {
			if streamCtx.Err() != nil {
				return
			}
			r.logger.Errorf("Failed to load initial profile snapshot for account %s: %v", accountID, err)
		} else {
			select {
			case out <- snap:
			case <-streamCtx.Done():
				return
			}
		}

		for stream.Next(streamCtx) {
			var change struct {
				OperationType string           `bson:"operationType"`
				FullDocument  *profileDocument `bson:"fullDocument"`
			}
			if err := stream.Decode(&change); err != nil {
				r.logger.Errorf("Failed to decode profile change for account %s: %v", accountID, err)
				continue
			}
			snap := model.ProfileSnapshot{}
			if change.OperationType != "delete" && change.FullDocument != nil {
				snap = snapshotFromDocument(*change.FullDocument)
			}
			select {
			case out <- snap:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	cancel := func() { cancelStream() }
	return out, cancel, nil
}

func (r *ProfileRepository) loadSnapshot(ctx context.Context, accountID string) (model.ProfileSnapshot, error) {
	var doc profileDocument
	err := r.db.Collection(profilesCollection).FindOne(ctx, bson.M{"_id": accountID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return model.ProfileSnapshot{}, nil
	}
	if err != nil {
		return model.ProfileSnapshot{}, err
	}
	return snapshotFromDocument(doc), nil
}

func snapshotFromDocument(doc profileDocument) model.ProfileSnapshot {
	return model.ProfileSnapshot{
		Exists: true,
		Document: model.AccountDocument{
			Lists:             normalizeLists(doc.Lists),
			Entries:           normalizeEntries(doc.Entries),
			LikedLists:        normalizeLikedLists(doc.LikedLists),
			LikedListsVisible: doc.LikedListsVisible,
		},
	}
}

// normalize* keep the persisted arrays non-nil so documents round-trip as
// empty arrays rather than nulls.
func normalizeLists(in []model.ListDefinition) []model.ListDefinition {
	if in == nil {
		return []model.ListDefinition{}
	}
	return in
}

func normalizeEntries(in []model.SavedEntry) []model.SavedEntry {
	if in == nil {
		return []model.SavedEntry{}
	}
	return in
}

func normalizeLikedLists(in []model.LikedListRef) []model.LikedListRef {
	if in == nil {
		return []model.LikedListRef{}
	}
	return in
}

// FolloweeIDs returns up to limit accounts the viewer follows.
func (r *ProfileRepository) FolloweeIDs(ctx context.Context, accountID string, limit int) ([]string, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetProjection(bson.M{"followeeId": 1})
	cursor, err := r.db.Collection(followsCollection).Find(ctx, bson.M{"followerId": accountID}, opts)
	if err != nil {
		r.logger.Errorf("Failed to list followees for account %s: %v", accountID, err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc followDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.FolloweeID)
	}
	return ids, cursor.Err()
}

// SaveRecords returns the save state of the given accounts for one place.
// Accounts that never saved the place are simply absent from the result.
func (r *ProfileRepository) SaveRecords(ctx context.Context, placeKey string, accountIDs []string) ([]model.SaveRecord, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"placeKey":  placeKey,
		"accountId": bson.M{"$in": accountIDs},
	}
	cursor, err := r.db.Collection(placeSavesCollection).Find(ctx, filter)
	if err != nil {
		r.logger.Errorf("Failed to load save records for place %s: %v", placeKey, err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []model.SaveRecord
	for cursor.Next(ctx) {
		var doc placeSaveDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, model.SaveRecord{
			AccountID: doc.AccountID,
			Bucket:    doc.Bucket,
			SavedAt:   doc.SavedAt,
		})
	}
	return records, cursor.Err()
}

// DisplayLabel resolves an account's naming fields.
func (r *ProfileRepository) DisplayLabel(ctx context.Context, accountID string) (model.DisplayLabel, error) {
	opts := options.FindOne().SetProjection(bson.M{"username": 1, "displayName": 1})
	var doc profileDocument
	err := r.db.Collection(profilesCollection).FindOne(ctx, bson.M{"_id": accountID}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return model.DisplayLabel{}, nil
	}
	if err != nil {
		return model.DisplayLabel{}, err
	}
	return model.DisplayLabel{Username: doc.Username, DisplayName: doc.DisplayName}, nil
}
