package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
)

const (
	realmAccountCollection = "accounts"
	realmIPBanCollection   = "ip_bans"
	realmCounterCollection = "counters"
)

// MongoRealmAdapter implements the realm port against the realm's own
// database. Password hashing lives entirely on this side of the boundary;
// the auth core never sees a hash.
type MongoRealmAdapter struct {
	accounts *mongo.Collection
	bans     *mongo.Collection
	counters *mongo.Collection
}

func NewRealmAdapter(db *mongo.Database) *MongoRealmAdapter {
	return &MongoRealmAdapter{
		accounts: db.Collection(realmAccountCollection),
		bans:     db.Collection(realmIPBanCollection),
		counters: db.Collection(realmCounterCollection),
	}
}

type realmAccountDoc struct {
	ID           int64  `bson:"_id"`
	Username     string `bson:"username"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	JoinDate     int64  `bson:"join_date,omitempty"`
	Locked       bool   `bson:"locked"`
}

func (r *MongoRealmAdapter) ValidateCredentials(ctx context.Context, username, password string) (bool, error) {
	var doc realmAccountDoc
	err := r.accounts.FindOne(ctx, bson.M{"username": domain.NormalizeUsername(username)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("realm validate: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)) == nil, nil
}

func (r *MongoRealmAdapter) AccountExists(ctx context.Context, username string) (bool, error) {
	n, err := r.accounts.CountDocuments(ctx, bson.M{"username": domain.NormalizeUsername(username)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("realm exists: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRealmAdapter) IPBanned(ctx context.Context, ip string) (bool, error) {
	n, err := r.bans.CountDocuments(ctx, bson.M{"_id": ip}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("realm ip ban: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRealmAdapter) CreateAccount(ctx context.Context, username, password, email, ip string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("realm create: hash: %w", err)
	}

	id, err := r.nextAccountID(ctx)
	if err != nil {
		return 0, fmt.Errorf("realm create: %w", err)
	}

	doc := realmAccountDoc{
		ID:           id,
		Username:     domain.NormalizeUsername(username),
		Email:        email,
		PasswordHash: string(hash),
		JoinDate:     time.Now().Unix(),
	}
	if _, err := r.accounts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, domain.ErrAccountExists
		}
		return 0, fmt.Errorf("realm create: %w", err)
	}
	return id, nil
}

func (r *MongoRealmAdapter) FetchAccountByID(ctx context.Context, id int64) (ports.AccountHandle, error) {
	return r.fetch(ctx, bson.M{"_id": id})
}

func (r *MongoRealmAdapter) FetchAccountByUsername(ctx context.Context, username string) (ports.AccountHandle, error) {
	return r.fetch(ctx, bson.M{"username": domain.NormalizeUsername(username)})
}

func (r *MongoRealmAdapter) fetch(ctx context.Context, filter bson.M) (ports.AccountHandle, error) {
	var doc realmAccountDoc
	if err := r.accounts.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("realm fetch: %w", err)
	}
	return &realmAccountHandle{coll: r.accounts, doc: doc}, nil
}

// nextAccountID allocates a monotonically increasing account id from an
// atomic counter document.
func (r *MongoRealmAdapter) nextAccountID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": realmAccountCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next account id: %w", err)
	}
	return counter.Seq, nil
}

// realmAccountHandle stages mutations on a fetched realm account until Save.
type realmAccountHandle struct {
	coll *mongo.Collection
	doc  realmAccountDoc
}

func (h *realmAccountHandle) ID() int64        { return h.doc.ID }
func (h *realmAccountHandle) Username() string { return h.doc.Username }
func (h *realmAccountHandle) Email() string    { return h.doc.Email }

func (h *realmAccountHandle) JoinDate() time.Time {
	if h.doc.JoinDate == 0 {
		return time.Time{}
	}
	return time.Unix(h.doc.JoinDate, 0).UTC()
}

func (h *realmAccountHandle) SetLocked(locked bool) { h.doc.Locked = locked }

func (h *realmAccountHandle) Save(ctx context.Context) error {
	_, err := h.coll.UpdateOne(ctx, bson.M{"_id": h.doc.ID}, bson.M{"$set": bson.M{"locked": h.doc.Locked}})
	if err != nil {
		return fmt.Errorf("realm save: %w", err)
	}
	return nil
}
