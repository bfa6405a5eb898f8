package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-outbreak/types"
)

// SaveReport stores a new report under its id. Reports are never overwritten.
func (s *FirestoreStore) SaveReport(ctx context.Context, r types.SymptomReport) error {
	_, err := s.client.Collection(reportsCollection).Doc(r.ID).Create(ctx, r)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return &types.ValidationError{Field: "id", Reason: fmt.Sprintf("report %s already exists", r.ID)}
		}
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

// ListRecentReports returns reports created at or after since, oldest first.
// Region and disease are filtered after the range query.
func (s *FirestoreStore) ListRecentReports(ctx context.Context, since time.Time, region *types.BoundingBox, disease string) ([]types.SymptomReport, error) {
	iter := s.client.Collection(reportsCollection).
		Where("createdAt", ">=", since).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var reports []types.SymptomReport
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating reports collection: %w", err)
		}

		var r types.SymptomReport
		if err := doc.DataTo(&r); err != nil {
			s.logger.Warn("Skipping undecodable report", zap.String("doc_id", doc.Ref.ID), zap.Error(err))
			continue
		}
		r.ID = doc.Ref.ID
		reports = append(reports, r)
	}
	return FilterReports(reports, region, disease), nil
}

func (s *FirestoreStore) ListDailyAggregates(ctx context.Context, region *types.BoundingBox, disease string, daysBack int) ([]types.DailyAggregate, error) {
	since := StartOfDayUTC(time.Now()).AddDate(0, 0, -daysBack)
	reports, err := s.ListRecentReports(ctx, since, region, disease)
	if err != nil {
		return nil, err
	}
	return AggregateDaily(reports), nil
}
