package mongostore

import (
	"context"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type stageDoc struct {
	Name                string `bson:"name"`
	Status              string `bson:"status"`
	StartTimeMillis     int64  `bson:"start_time_millis"`
	DurationMillis      int64  `bson:"duration_millis"`
	PauseDurationMillis int64  `bson:"pause_duration_millis"`
	CompletedTimeMillis int64  `bson:"completed_time_millis"`
}

type commitDoc struct {
	CommitID  string `bson:"commit_id"`
	Timestamp int64  `bson:"timestamp"`
	Date      string `bson:"date,omitempty"`
	Message   string `bson:"message,omitempty"`
}

type buildDoc struct {
	PipelineID string      `bson:"pipeline_id"`
	BuildID    string      `bson:"build_id"`
	Number     int         `bson:"number"`
	Result     string      `bson:"result"`
	Duration   int64       `bson:"duration"`
	Timestamp  int64       `bson:"timestamp"`
	URL        string      `bson:"url"`
	Stages     []stageDoc  `bson:"stages"`
	Commits    []commitDoc `bson:"commits"`
}

func newBuildDoc(pipelineID string, b model.Build) buildDoc {
	doc := buildDoc{
		PipelineID: pipelineID,
		BuildID:    b.ID,
		Number:     b.Number,
		Result:     string(b.Result),
		Duration:   b.Duration,
		Timestamp:  b.Timestamp,
		URL:        b.URL,
		Stages:     make([]stageDoc, 0, len(b.Stages)),
		Commits:    make([]commitDoc, 0, len(b.Commits)),
	}
	for _, s := range b.Stages {
		doc.Stages = append(doc.Stages, stageDoc{
			Name:                s.Name,
			Status:              string(s.Status),
			StartTimeMillis:     s.StartTimeMillis,
			DurationMillis:      s.DurationMillis,
			PauseDurationMillis: s.PauseDurationMillis,
			CompletedTimeMillis: s.CompletedTimeMillis,
		})
	}
	for _, c := range b.Commits {
		doc.Commits = append(doc.Commits, commitDoc{
			CommitID:  c.CommitID,
			Timestamp: c.Timestamp,
			Date:      c.Date,
			Message:   c.Message,
		})
	}
	return doc
}

func (d buildDoc) toModel() model.Build {
	b := model.Build{
		ID:         d.BuildID,
		PipelineID: d.PipelineID,
		Number:     d.Number,
		Result:     model.BuildStatus(d.Result),
		Duration:   d.Duration,
		Timestamp:  d.Timestamp,
		URL:        d.URL,
	}
	for _, s := range d.Stages {
		b.Stages = append(b.Stages, model.Stage{
			Name:                s.Name,
			Status:              model.BuildStatus(s.Status),
			StartTimeMillis:     s.StartTimeMillis,
			DurationMillis:      s.DurationMillis,
			PauseDurationMillis: s.PauseDurationMillis,
			CompletedTimeMillis: s.CompletedTimeMillis,
		})
	}
	for _, c := range d.Commits {
		b.Commits = append(b.Commits, model.Commit{
			CommitID:  c.CommitID,
			Timestamp: c.Timestamp,
			Date:      c.Date,
			Message:   c.Message,
		})
	}
	return b
}

// BuildStore replaces each build document matched by (pipeline_id, build_id).
type BuildStore struct {
	coll *mongo.Collection
}

// NewBuildStore creates a BuildStore on the builds collection of db.
func NewBuildStore(db *mongo.Database) *BuildStore {
	return &BuildStore{coll: db.Collection(buildsCollection)}
}

// UpsertAll writes builds as one unordered bulk of upserting replacements.
func (s *BuildStore) UpsertAll(ctx context.Context, pipelineID string, builds []model.Build) error {
	if len(builds) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(builds))
	for _, b := range builds {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(buildKey(pipelineID, b.ID)).
			SetReplacement(newBuildDoc(pipelineID, b)).
			SetUpsert(true))
	}

	_, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func buildKey(pipelineID, buildID string) bson.D {
	return bson.D{{Key: "pipeline_id", Value: pipelineID}, {Key: "build_id", Value: buildID}}
}

// FindByPipelineID retrieves the builds of a pipeline ordered by timestamp.
func (s *BuildStore) FindByPipelineID(ctx context.Context, pipelineID string) ([]model.Build, error) {
	cur, err := s.coll.Find(ctx, bson.M{"pipeline_id": pipelineID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []buildDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]model.Build, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// DeleteByPipelineID removes every build of a pipeline.
func (s *BuildStore) DeleteByPipelineID(ctx context.Context, pipelineID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"pipeline_id": pipelineID})
	return err
}
