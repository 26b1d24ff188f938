package customers

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kylevidrine/portal/internal/models"
)

// MongoRepository implements Repository on a single collection, one document per
// customer keyed by _id. Bundle writes are single-document $set updates.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository ensures the lookup indexes exist and returns the repository.
func NewMongoRepository(ctx context.Context, col *mongo.Collection) (*MongoRepository, error) {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "accounting.companyId", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
		return nil, storageErr("ensure indexes", err)
	}
	return &MongoRepository{col: col}, nil
}

func (r *MongoRepository) Upsert(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, opts)
	return storageErr("upsert", err)
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	return r.findOne(ctx, "get", bson.M{"_id": id})
}

func (r *MongoRepository) List(ctx context.Context) ([]*models.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer cur.Close(ctx)
	out := []*models.Customer{}
	for cur.Next(ctx) {
		var c models.Customer
		if err := cur.Decode(&c); err != nil {
			return nil, storageErr("list", err)
		}
		out = append(out, &c)
	}
	return out, storageErr("list", cur.Err())
}

func (r *MongoRepository) FindByCompanyID(ctx context.Context, companyID string) (*models.Customer, error) {
	return r.findOne(ctx, "find by company", bson.M{"accounting.companyId": companyID},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoRepository) UpdateAccounting(ctx context.Context, id string, creds *models.AccountingCredentials) error {
	return r.setBundle(ctx, "update accounting", id, "accounting", creds)
}

func (r *MongoRepository) ClearWorkspace(ctx context.Context, id string) error {
	return r.setBundle(ctx, "clear workspace", id, "workspace", (*models.WorkspaceCredentials)(nil))
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, storageErr("delete", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) setBundle(ctx context.Context, op, id, field string, bundle interface{}) error {
	update := bson.M{"$set": bson.M{field: bundle, "updatedAt": time.Now().UTC()}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return storageErr(op, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, op string, filter bson.M, opts ...*options.FindOneOptions) (*models.Customer, error) {
	var c models.Customer
	if err := r.col.FindOne(ctx, filter, opts...).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, storageErr(op, err)
	}
	return &c, nil
}
