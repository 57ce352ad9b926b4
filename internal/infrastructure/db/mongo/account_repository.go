package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

const accountCollection = "accounts"

// MongoAccountRepository persists the local account mirror rows. The account
// id is the realm's id, used directly as _id so a provisioning race between
// two requests surfaces as a duplicate-key error.
type MongoAccountRepository struct {
	accounts *mongo.Collection
	groups   *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{
		accounts: db.Collection(accountCollection),
		groups:   db.Collection(groupCollection),
	}
}

type accountDoc struct {
	ID             int64  `bson:"_id"`
	Username       string `bson:"username"`
	Email          string `bson:"email"`
	GroupID        int64  `bson:"group_id"`
	Activated      bool   `bson:"activated"`
	Registered     int64  `bson:"registered"`
	RegistrationIP string `bson:"registration_ip"`
	LastSeen       int64  `bson:"last_seen,omitempty"`

	Language      string `bson:"language,omitempty"`
	SelectedTheme string `bson:"selected_theme,omitempty"`

	Votes            int `bson:"votes"`
	VotePoints       int `bson:"vote_points"`
	VotePointsEarned int `bson:"vote_points_earned"`
	VotePointsSpent  int `bson:"vote_points_spent"`
	Donations        int `bson:"donations"`

	RecoveryBlob string `bson:"_account_recovery,omitempty"`
}

func (d accountDoc) toDomain() *domain.AccountRecord {
	return &domain.AccountRecord{
		ID:               d.ID,
		Username:         d.Username,
		Email:            d.Email,
		GroupID:          d.GroupID,
		Activated:        d.Activated,
		Registered:       unixToTime(d.Registered),
		RegistrationIP:   d.RegistrationIP,
		LastSeen:         unixToTime(d.LastSeen),
		Language:         d.Language,
		SelectedTheme:    d.SelectedTheme,
		Votes:            d.Votes,
		VotePoints:       d.VotePoints,
		VotePointsEarned: d.VotePointsEarned,
		VotePointsSpent:  d.VotePointsSpent,
		Donations:        d.Donations,
		RecoveryBlob:     d.RecoveryBlob,
	}
}

// FindWithGroup loads an account joined with its group via two single-document
// reads. No transaction: both documents are immutable within a resolution.
func (r *MongoAccountRepository) FindWithGroup(ctx context.Context, accountID int64) (*domain.AccountRecord, *domain.AccountGroup, error) {
	var acc accountDoc
	if err := r.accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(&acc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil, domain.ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("find account: %w", err)
	}

	var grp groupDoc
	if err := r.groups.FindOne(ctx, bson.M{"_id": acc.GroupID}).Decode(&grp); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil, fmt.Errorf("find account: %w (group %d)", domain.ErrGroupNotFound, acc.GroupID)
		}
		return nil, nil, fmt.Errorf("find account: group: %w", err)
	}

	return acc.toDomain(), grp.toDomain(), nil
}

func (r *MongoAccountRepository) Insert(ctx context.Context, account *domain.AccountRecord) error {
	doc := accountDoc{
		ID:             account.ID,
		Username:       account.Username,
		Email:          account.Email,
		GroupID:        account.GroupID,
		Activated:      account.Activated,
		Registered:     account.Registered.Unix(),
		RegistrationIP: account.RegistrationIP,
		Language:       account.Language,
		SelectedTheme:  account.SelectedTheme,
		RecoveryBlob:   account.RecoveryBlob,
	}

	if _, err := r.accounts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) UpdateLastSeen(ctx context.Context, accountID int64, seen time.Time) error {
	res, err := r.accounts.UpdateOne(ctx, bson.M{"_id": accountID}, bson.M{"$set": bson.M{"last_seen": seen.Unix()}})
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *MongoAccountRepository) SetActivated(ctx context.Context, accountID int64, activated bool) error {
	res, err := r.accounts.UpdateOne(ctx, bson.M{"_id": accountID}, bson.M{"$set": bson.M{"activated": activated}})
	if err != nil {
		return fmt.Errorf("set activated: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
