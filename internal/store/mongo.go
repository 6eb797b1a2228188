package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/models"
)

// MongoStore backs the record store with a MongoDB collection. Live
// subscriptions are driven by a change stream: every change event triggers
// a re-query so subscribers always receive full snapshots.
type MongoStore struct {
	coll *mongo.Collection
	log  *zap.SugaredLogger
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewMongoStore(coll *mongo.Collection, log *zap.SugaredLogger) *MongoStore {
	idx := mongo.IndexModel{
		Keys: bson.D{
			{Key: models.FieldSender, Value: 1},
			{Key: models.FieldRecipient, Value: 1},
			{Key: models.FieldTimestamp, Value: 1},
		},
		Options: options.Index().SetName("pair_timestamp_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), idx)
	return &MongoStore{coll: coll, log: log}
}

func (f PairFilter) bson() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{models.FieldSender: f.Local, models.FieldRecipient: f.Peer},
		bson.M{models.FieldSender: f.Peer, models.FieldRecipient: f.Local},
	}}
}

type mongoSub struct {
	cancel  context.CancelFunc
	batches chan []Record
	errs    chan error
	once    sync.Once
}

func (s *mongoSub) Batches() <-chan []Record { return s.batches }
func (s *mongoSub) Err() <-chan error        { return s.errs }

func (s *mongoSub) Close() error {
	s.once.Do(s.cancel)
	return nil
}

func (m *MongoStore) Subscribe(ctx context.Context, filter PairFilter) (Subscription, error) {
	if !filter.Valid() {
		return nil, ErrInvalidFilter
	}

	ctx, cancel := context.WithCancel(ctx)
	cs, err := m.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &mongoSub{
		cancel:  cancel,
		batches: make(chan []Record, 8),
		errs:    make(chan error, 1),
	}

	go func() {
		defer cs.Close(context.Background())
		defer close(sub.batches)

		snapshot, err := m.query(ctx, filter)
		if err != nil {
			sub.fail(ctx, err)
			return
		}
		sub.push(ctx, snapshot)

		for cs.Next(ctx) {
			snapshot, err := m.query(ctx, filter)
			if err != nil {
				sub.fail(ctx, err)
				return
			}
			sub.push(ctx, snapshot)
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			sub.fail(ctx, err)
		}
	}()

	return sub, nil
}

func (m *MongoStore) query(ctx context.Context, filter PairFilter) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: models.FieldTimestamp, Value: 1}})
	cur, err := m.coll.Find(ctx, filter.bson(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, recordFromDoc(doc))
	}
	return out, cur.Err()
}

func recordFromDoc(doc bson.M) Record {
	rec := Record{Fields: map[string]any(doc)}
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	delete(doc, "_id")
	return rec
}

func (m *MongoStore) Append(ctx context.Context, fields map[string]any) (string, error) {
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	if _, ok := doc[models.FieldTimestamp]; !ok {
		doc[models.FieldTimestamp] = time.Now().UTC()
	}
	res, err := m.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// unknown id shape: nothing to delete
		return nil
	}
	_, err = m.coll.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (m *MongoStore) Get(ctx context.Context, id string) (map[string]any, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc bson.M
	if err := m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

func (s *mongoSub) push(ctx context.Context, batch []Record) {
	select {
	case s.batches <- batch:
	case <-ctx.Done():
	}
}

func (s *mongoSub) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}
