package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/portalcms/account-gateway/internal/core/domain"
)

const (
	groupCollection         = "account_groups"
	permissionKeyCollection = "permission_keys"
)

// MongoGroupRepository persists account groups and the canonical
// permission-key list.
type MongoGroupRepository struct {
	groups *mongo.Collection
	keys   *mongo.Collection
}

func NewGroupRepository(db *mongo.Database) *MongoGroupRepository {
	return &MongoGroupRepository{
		groups: db.Collection(groupCollection),
		keys:   db.Collection(permissionKeyCollection),
	}
}

type groupDoc struct {
	ID           int64  `bson:"_id"`
	Title        string `bson:"title"`
	IsBanned     bool   `bson:"is_banned"`
	IsUser       bool   `bson:"is_user"`
	IsAdmin      bool   `bson:"is_admin"`
	IsSuperAdmin bool   `bson:"is_super_admin"`
	Permissions  []byte `bson:"permissions,omitempty"`
}

func (d groupDoc) toDomain() *domain.AccountGroup {
	return &domain.AccountGroup{
		ID:    d.ID,
		Title: d.Title,
		Flags: domain.GroupFlags{
			IsBanned:     d.IsBanned,
			IsUser:       d.IsUser,
			IsAdmin:      d.IsAdmin,
			IsSuperAdmin: d.IsSuperAdmin,
		},
		Permissions: d.Permissions,
	}
}

func (r *MongoGroupRepository) FindGroup(ctx context.Context, groupID int64) (*domain.AccountGroup, error) {
	var doc groupDoc
	if err := r.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return doc.toDomain(), nil
}

// UpdateGroupPermissions rewrites a group's permission blob in a single
// atomic document update.
func (r *MongoGroupRepository) UpdateGroupPermissions(ctx context.Context, groupID int64, blob []byte) error {
	res, err := r.groups.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{"$set": bson.M{"permissions": blob}})
	if err != nil {
		return fmt.Errorf("update group permissions: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (r *MongoGroupRepository) ListPermissionKeys(ctx context.Context) ([]string, error) {
	cursor, err := r.keys.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list permission keys: %w", err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("list permission keys: decode: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list permission keys: %w", err)
	}
	return keys, nil
}
