package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/cache"
)

var ErrNotFound = errors.New("profile not found")

// Profile carries the display fields for a participant. Consumed read-only
// by the display layer, never by the sync engine.
type Profile struct {
	FirstName   string `bson:"firstName" json:"first_name"`
	LastName    string `bson:"lastName" json:"last_name"`
	ImageURL    string `bson:"profile_image_url" json:"profile_image_url"`
	PhoneNumber string `bson:"telnyxAssignedPhoneNumber" json:"phone_number"`
}

type Resolver struct {
	coll  *mongo.Collection
	cache *cache.Client
	ttl   time.Duration
	log   *zap.SugaredLogger
}

func NewResolver(coll *mongo.Collection, c *cache.Client, ttl time.Duration, log *zap.SugaredLogger) *Resolver {
	return &Resolver{coll: coll, cache: c, ttl: ttl, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, id string) (*Profile, error) {
	if r.cache != nil {
		if s, err := r.cache.Get(ctx, "profile:"+id); err == nil && s != "" {
			var p Profile
			if json.Unmarshal([]byte(s), &p) == nil {
				return &p, nil
			}
		}
	}

	var p Profile
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.cache != nil {
		if b, err := json.Marshal(p); err == nil {
			if err := r.cache.Set(ctx, "profile:"+id, string(b), r.ttl); err != nil && r.log != nil {
				r.log.Warnw("cache profile", "id", id, "error", err)
			}
		}
	}
	return &p, nil
}
