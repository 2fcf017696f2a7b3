package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

type pledgeDoc struct {
	ID                    string    `bson:"_id"`
	SubmitterID           string    `bson:"submitterId,omitempty"`
	DisplayName           string    `bson:"displayName"`
	Email                 string    `bson:"email"`
	Commitments           []string  `bson:"commitments"`
	DailyWaterSavedLiters int       `bson:"dailyWaterSavedLiters"`
	IsAnonymous           bool      `bson:"isAnonymous"`
	CreatedAt             time.Time `bson:"createdAt"`
	UpdatedAt             time.Time `bson:"updatedAt"`
}

func toPledgeDoc(p *models.Pledge) pledgeDoc {
	commitments := make([]string, len(p.Commitments))
	for i, c := range p.Commitments {
		commitments[i] = string(c)
	}
	return pledgeDoc{
		ID:                    p.ID,
		SubmitterID:           p.SubmitterID,
		DisplayName:           p.DisplayName,
		Email:                 p.Email,
		Commitments:           commitments,
		DailyWaterSavedLiters: p.DailyWaterSavedLiters,
		IsAnonymous:           p.IsAnonymous,
		CreatedAt:             millis(p.CreatedAt),
		UpdatedAt:             millis(p.UpdatedAt),
	}
}

func (d pledgeDoc) model() *models.Pledge {
	commitments := make([]models.Commitment, len(d.Commitments))
	for i, c := range d.Commitments {
		commitments[i] = models.Commitment(c)
	}
	return &models.Pledge{
		ID:                    d.ID,
		SubmitterID:           d.SubmitterID,
		DisplayName:           d.DisplayName,
		Email:                 d.Email,
		Commitments:           commitments,
		DailyWaterSavedLiters: d.DailyWaterSavedLiters,
		IsAnonymous:           d.IsAnonymous,
		CreatedAt:             d.CreatedAt.UTC(),
		UpdatedAt:             d.UpdatedAt.UTC(),
	}
}

// CreatePledge inserts a new pledge document.
func (s *MongoStore) CreatePledge(ctx context.Context, pledge *models.Pledge) error {
	if pledge.ID == "" {
		pledge.ID = uuid.New().String()
	}
	if pledge.CreatedAt.IsZero() {
		pledge.CreatedAt = time.Now().UTC()
	}
	if pledge.UpdatedAt.IsZero() {
		pledge.UpdatedAt = pledge.CreatedAt
	}

	if _, err := s.pledges.InsertOne(ctx, toPledgeDoc(pledge)); err != nil {
		return classify("insert pledge", err)
	}
	return nil
}

// GetPledge retrieves a pledge by ID.
func (s *MongoStore) GetPledge(ctx context.Context, id string) (*models.Pledge, error) {
	var doc pledgeDoc
	if err := s.pledges.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, classify("get pledge "+id, err)
	}
	return doc.model(), nil
}

// UpdatePledge replaces the pledge document with the same ID.
func (s *MongoStore) UpdatePledge(ctx context.Context, pledge *models.Pledge) error {
	res, err := s.pledges.ReplaceOne(ctx, bson.M{"_id": pledge.ID}, toPledgeDoc(pledge))
	if err != nil {
		return classify("update pledge", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("pledge %s: %w", pledge.ID, storage.ErrNotFound)
	}
	return nil
}

// DeletePledge removes a pledge by ID.
func (s *MongoStore) DeletePledge(ctx context.Context, id string) error {
	res, err := s.pledges.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify("delete pledge", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("pledge %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// ListPledges returns one page of pledges, newest first.
func (s *MongoStore) ListPledges(ctx context.Context, limit, offset int) ([]*models.Pledge, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return s.findPledges(ctx, bson.M{}, opts)
}

// ListPledgesBySubmitter returns the submitter's pledges, newest first.
func (s *MongoStore) ListPledgesBySubmitter(ctx context.Context, submitterID string) ([]*models.Pledge, error) {
	return s.findPledges(ctx, bson.M{"submitterId": submitterID}, options.Find().SetSort(newestFirst))
}

func (s *MongoStore) findPledges(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Pledge, error) {
	cursor, err := s.pledges.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("find pledges", err)
	}
	var docs []pledgeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("decode pledges", err)
	}

	pledges := make([]*models.Pledge, len(docs))
	for i, d := range docs {
		pledges[i] = d.model()
	}
	return pledges, nil
}

// CountPledges returns the number of pledge documents.
func (s *MongoStore) CountPledges(ctx context.Context) (int64, error) {
	n, err := s.pledges.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, classify("count pledges", err)
	}
	return n, nil
}

// SumWaterSaved totals dailyWaterSavedLiters with a $group stage.
func (s *MongoStore) SumWaterSaved(ctx context.Context) (int64, error) {
	var out []struct {
		Total int64 `bson:"total"`
	}
	if err := s.aggregate(ctx, "sum water saved", mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$dailyWaterSavedLiters"}}},
		}}},
	}, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}

// MonthlyBreakdown groups by the UTC year and month of createdAt.
func (s *MongoStore) MonthlyBreakdown(ctx context.Context) ([]models.MonthlyPledges, error) {
	var out []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Count      int64 `bson:"count"`
		WaterSaved int64 `bson:"waterSaved"`
	}
	if err := s.aggregate(ctx, "aggregate monthly pledges", mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$createdAt"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$createdAt"}}},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "waterSaved", Value: bson.D{{Key: "$sum", Value: "$dailyWaterSavedLiters"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: -1}, {Key: "_id.month", Value: -1}}}},
		{{Key: "$limit", Value: storage.MaxMonthlyPeriods}},
	}, &out); err != nil {
		return nil, err
	}

	months := make([]models.MonthlyPledges, len(out))
	for i, o := range out {
		months[i] = models.MonthlyPledges{
			Year:       o.ID.Year,
			Month:      o.ID.Month,
			Count:      o.Count,
			WaterSaved: o.WaterSaved,
		}
	}
	return months, nil
}

// CommitmentPopularity unwinds the de-duplicated commitments of every
// pledge and counts them.
func (s *MongoStore) CommitmentPopularity(ctx context.Context) ([]models.CommitmentCount, error) {
	var out []struct {
		Commitment string `bson:"_id"`
		Count      int64  `bson:"count"`
	}
	if err := s.aggregate(ctx, "aggregate commitment popularity", mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: "commitments", Value: bson.D{{Key: "$setUnion", Value: bson.A{"$commitments", bson.A{}}}}},
		}}},
		{{Key: "$unwind", Value: "$commitments"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$commitments"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}, &out); err != nil {
		return nil, err
	}

	counts := make([]models.CommitmentCount, len(out))
	for i, o := range out {
		counts[i] = models.CommitmentCount{Commitment: models.Commitment(o.Commitment), Count: o.Count}
	}
	return counts, nil
}

func (s *MongoStore) aggregate(ctx context.Context, op string, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := s.pledges.Aggregate(ctx, pipeline)
	if err != nil {
		return classify(op, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return classify(op, err)
	}
	return nil
}
