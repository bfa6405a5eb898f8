package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	reportsCollection  = "reports"
	clustersCollection = "clusters"
	alertsCollection   = "alerts"
	metaCollection     = "meta"
	activeMetaDoc      = "activeClusters"
)

// Firestore client singleton.
var (
	client     *firestore.Client
	clientOnce sync.Once
	clientErr  error
)

// InitFirestore initializes and returns the shared Firestore client. encodedCreds is the
// base64 service account JSON; projectID may be empty when the credentials carry it.
func InitFirestore(ctx context.Context, encodedCreds, projectID string) (*firestore.Client, error) {
	clientOnce.Do(func() {
		creds, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			clientErr = fmt.Errorf("failed to decode Firestore credentials: %w", err)
			return
		}

		var conf *firebase.Config
		if projectID != "" {
			conf = &firebase.Config{ProjectID: projectID}
		}
		app, err := firebase.NewApp(ctx, conf, option.WithCredentialsJSON(creds))
		if err != nil {
			clientErr = fmt.Errorf("error initializing firebase app: %w", err)
			return
		}

		client, err = app.Firestore(ctx)
		if err != nil {
			clientErr = fmt.Errorf("error getting Firestore client: %w", err)
		}
	})
	return client, clientErr
}

// CloseFirestore closes the Firestore client.
func CloseFirestore() {
	if client != nil {
		client.Close()
	}
}

// FirestoreStore is the Report Store on Firestore. Clusters of every generation are kept
// with an isActive flag; meta/activeClusters records the active generation id.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

func NewFirestoreStore(client *firestore.Client, logger *zap.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, logger: logger}
}
