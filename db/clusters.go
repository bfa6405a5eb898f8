package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-outbreak/types"
)

type clusterDoc struct {
	types.OutbreakCluster
	ClusterID string `firestore:"clusterId"`
	Ordinal   int    `firestore:"ordinal"`
	IsActive  bool   `firestore:"isActive"`
}

type activeMeta struct {
	Generation   int64     `firestore:"generation"`
	ClusterCount int       `firestore:"clusterCount"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// cluster ids repeat across generations, so documents are keyed by both.
func clusterDocID(generation int64, clusterID string) string {
	return fmt.Sprintf("%d_%s", generation, clusterID)
}

// ReplaceActiveClusters deactivates the current generation and writes the new one in one
// transaction. A generation not newer than the active one is rejected with ErrStaleGeneration.
func (s *FirestoreStore) ReplaceActiveClusters(ctx context.Context, generation int64, clusters []types.OutbreakCluster) error {
	metaRef := s.client.Collection(metaCollection).Doc(activeMetaDoc)
	clustersRef := s.client.Collection(clustersCollection)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current activeMeta
		snap, err := tx.Get(metaRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("error reading active generation: %w", err)
		}
		if err == nil {
			if err := snap.DataTo(&current); err != nil {
				return fmt.Errorf("error decoding active generation: %w", err)
			}
		}
		if current.Generation >= generation {
			return types.ErrStaleGeneration
		}

		active, err := tx.Documents(clustersRef.Where("isActive", "==", true)).GetAll()
		if err != nil {
			return fmt.Errorf("error listing active clusters: %w", err)
		}

		// all reads happen before the first write
		for _, doc := range active {
			if err := tx.Update(doc.Ref, []firestore.Update{{Path: "isActive", Value: false}}); err != nil {
				return fmt.Errorf("failed to deactivate cluster %s: %w", doc.Ref.ID, err)
			}
		}
		for i, c := range clusters {
			doc := clusterDoc{OutbreakCluster: c, ClusterID: c.ID, Ordinal: i, IsActive: true}
			if err := tx.Set(clustersRef.Doc(clusterDocID(generation, c.ID)), doc); err != nil {
				return fmt.Errorf("failed to write cluster %s: %w", c.ID, err)
			}
		}
		return tx.Set(metaRef, activeMeta{
			Generation:   generation,
			ClusterCount: len(clusters),
			UpdatedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		if errors.Is(err, types.ErrStaleGeneration) {
			return err
		}
		return fmt.Errorf("cluster generation %d transaction failed: %w", generation, err)
	}

	s.logger.Info("Activated cluster generation", zap.Int64("generation", generation), zap.Int("clusters", len(clusters)))
	return nil
}

// LoadActiveClusters returns the active generation id and its clusters in detection order.
// An empty store yields generation 0.
func (s *FirestoreStore) LoadActiveClusters(ctx context.Context) (int64, []types.OutbreakCluster, error) {
	snap, err := s.client.Collection(metaCollection).Doc(activeMetaDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("error reading active generation: %w", err)
	}
	var meta activeMeta
	if err := snap.DataTo(&meta); err != nil {
		return 0, nil, fmt.Errorf("error decoding active generation: %w", err)
	}

	iter := s.client.Collection(clustersCollection).
		Where("generation", "==", meta.Generation).
		Where("isActive", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var docs []clusterDoc
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("error iterating clusters collection: %w", err)
		}
		var cd clusterDoc
		if err := doc.DataTo(&cd); err != nil {
			s.logger.Warn("Skipping undecodable cluster", zap.String("doc_id", doc.Ref.ID), zap.Error(err))
			continue
		}
		docs = append(docs, cd)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Ordinal < docs[j].Ordinal })
	clusters := make([]types.OutbreakCluster, len(docs))
	for i, cd := range docs {
		clusters[i] = cd.OutbreakCluster
		clusters[i].ID = cd.ClusterID
	}
	return meta.Generation, clusters, nil
}
