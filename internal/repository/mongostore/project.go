package mongostore

import (
	"context"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type projectDoc struct {
	ID                string    `bson:"_id"`
	Name              string    `bson:"name"`
	LastSyncTimestamp *int64    `bson:"last_sync_timestamp,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func (d projectDoc) toModel() model.Project {
	return model.Project{
		ID:                d.ID,
		Name:              d.Name,
		LastSyncTimestamp: d.LastSyncTimestamp,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// ProjectStore persists projects in the projects collection.
type ProjectStore struct {
	coll *mongo.Collection
}

// NewProjectStore creates a ProjectStore on the projects collection of db.
func NewProjectStore(db *mongo.Database) *ProjectStore {
	return &ProjectStore{coll: db.Collection(projectsCollection)}
}

// Create inserts a new project. The ID must already be set.
func (s *ProjectStore) Create(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	_, err := s.coll.InsertOne(ctx, projectDoc{
		ID:                p.ID,
		Name:              p.Name,
		LastSyncTimestamp: p.LastSyncTimestamp,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	return err
}

// FindByID retrieves a project by ID.
func (s *ProjectStore) FindByID(ctx context.Context, id string) (*model.Project, error) {
	var doc projectDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if isNotFound(err) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, err
	}
	p := doc.toModel()
	return &p, nil
}

// List retrieves all projects ordered by name.
func (s *ProjectStore) List(ctx context.Context) ([]model.Project, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []projectDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]model.Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// UpdateLastSyncTimestamp relies on $max, so a concurrent older pass can never
// move the watermark backwards.
func (s *ProjectStore) UpdateLastSyncTimestamp(ctx context.Context, id string, ts int64) (int64, error) {
	var doc projectDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, watermarkUpdate(ts, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if isNotFound(err) {
			return 0, repository.ErrProjectNotFound
		}
		return 0, err
	}
	if doc.LastSyncTimestamp == nil {
		return ts, nil
	}
	return *doc.LastSyncTimestamp, nil
}

func watermarkUpdate(ts int64, now time.Time) bson.M {
	return bson.M{
		"$max": bson.M{"last_sync_timestamp": ts},
		"$set": bson.M{"updated_at": now},
	}
}
