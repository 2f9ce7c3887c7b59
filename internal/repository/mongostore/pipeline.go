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

type pipelineDoc struct {
	ID         string    `bson:"_id"`
	ProjectID  string    `bson:"project_id"`
	Name       string    `bson:"name"`
	Type       string    `bson:"type"`
	URL        string    `bson:"url"`
	Username   string    `bson:"username,omitempty"`
	Credential string    `bson:"credential"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (d pipelineDoc) toModel() model.Pipeline {
	return model.Pipeline{
		ID:         d.ID,
		ProjectID:  d.ProjectID,
		Name:       d.Name,
		Type:       model.PipelineType(d.Type),
		URL:        d.URL,
		Username:   d.Username,
		Credential: d.Credential,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// PipelineStore keeps field values exactly as given; credentials arrive here
// already encrypted when the store is wrapped by repository.EncryptedPipelineStore.
type PipelineStore struct {
	coll *mongo.Collection
}

// NewPipelineStore creates a PipelineStore on the pipelines collection of db.
func NewPipelineStore(db *mongo.Database) *PipelineStore {
	return &PipelineStore{coll: db.Collection(pipelinesCollection)}
}

// Save upserts a pipeline, keeping created_at of an existing document.
func (s *PipelineStore) Save(ctx context.Context, p *model.Pipeline) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, pipelineUpsert(p, time.Now().UTC()),
		options.Update().SetUpsert(true))
	return err
}

// SaveAll upserts every pipeline in one bulk write.
func (s *PipelineStore) SaveAll(ctx context.Context, pipelines []*model.Pipeline) error {
	if len(pipelines) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(pipelines))
	for _, p := range pipelines {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetUpdate(pipelineUpsert(p, now)).
			SetUpsert(true))
	}

	_, err := s.coll.BulkWrite(ctx, models)
	return err
}

func pipelineUpsert(p *model.Pipeline, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"project_id": p.ProjectID,
			"name":       p.Name,
			"type":       string(p.Type),
			"url":        p.URL,
			"username":   p.Username,
			"credential": p.Credential,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
}

// FindByID retrieves a pipeline by ID.
func (s *PipelineStore) FindByID(ctx context.Context, id string) (*model.Pipeline, error) {
	var doc pipelineDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if isNotFound(err) {
			return nil, repository.ErrPipelineNotFound
		}
		return nil, err
	}
	p := doc.toModel()
	return &p, nil
}

// FindByProjectID retrieves the pipelines of a project ordered by name.
func (s *PipelineStore) FindByProjectID(ctx context.Context, projectID string) ([]model.Pipeline, error) {
	cur, err := s.coll.Find(ctx, bson.M{"project_id": projectID}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []pipelineDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]model.Pipeline, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// Delete removes a pipeline by ID.
func (s *PipelineStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrPipelineNotFound
	}
	return nil
}
