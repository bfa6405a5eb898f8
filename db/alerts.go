package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-outbreak/types"
)

// SaveAlerts creates each alert under its id and skips ids that already exist.
// Existing alerts are left alone so their acknowledged flag is never reset.
func (s *FirestoreStore) SaveAlerts(ctx context.Context, alerts []types.HealthAlert) ([]types.HealthAlert, error) {
	coll := s.client.Collection(alertsCollection)
	var created []types.HealthAlert
	for _, a := range alerts {
		if _, err := coll.Doc(a.ID).Create(ctx, a); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				s.logger.Debug("Alert already exists", zap.String("alert_id", a.ID))
				continue
			}
			return created, fmt.Errorf("failed to create alert %s: %w", a.ID, err)
		}
		created = append(created, a)
	}
	return created, nil
}

// ListAlerts returns unexpired alerts, newest first.
func (s *FirestoreStore) ListAlerts(ctx context.Context, now time.Time, includeAcknowledged bool) ([]types.HealthAlert, error) {
	iter := s.client.Collection(alertsCollection).Where("expiresAt", ">", now).Documents(ctx)
	defer iter.Stop()

	alerts := []types.HealthAlert{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating alerts collection: %w", err)
		}
		var a types.HealthAlert
		if err := doc.DataTo(&a); err != nil {
			s.logger.Warn("Skipping undecodable alert", zap.String("doc_id", doc.Ref.ID), zap.Error(err))
			continue
		}
		if a.Acknowledged && !includeAcknowledged {
			continue
		}
		a.ID = doc.Ref.ID
		alerts = append(alerts, a)
	}
	SortAlerts(alerts)
	return alerts, nil
}

// SortAlerts orders by creation time, newest first, then id.
func SortAlerts(alerts []types.HealthAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})
}
