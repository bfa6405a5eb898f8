package nlp

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	language "cloud.google.com/go/language/apiv2"
	"cloud.google.com/go/language/apiv2/languagepb"
	"google.golang.org/api/option"
)

// languageClient a singleton languageClient instance.
var (
	languageClient *language.Client
	clientOnce     sync.Once
	clientErr      error
)

// InitLanguageClient builds the Natural Language client from base64 encoded credentials.
func InitLanguageClient(ctx context.Context, encodedCreds string) (*language.Client, error) {
	clientOnce.Do(func() {
		creds, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			clientErr = fmt.Errorf("failed to decode natural language credentials: %w", err)
			return
		}

		languageClient, err = language.NewClient(ctx, option.WithCredentialsJSON(creds))
		if err != nil {
			clientErr = fmt.Errorf("failed to create natural language client: %w", err)
		}
	})
	return languageClient, clientErr
}

func CloseLanguageClient() {
	if languageClient != nil {
		languageClient.Close()
	}
}

type analyzeFunc func(ctx context.Context, req *languagepb.AnalyzeEntitiesRequest) (*languagepb.AnalyzeEntitiesResponse, error)

// EntityExtractor finds symptoms among the entities Cloud Natural Language picks out of a
// report, mapping each entity through the symptom lexicon.
type EntityExtractor struct {
	analyze analyzeFunc
}

func NewEntityExtractor(client *language.Client) *EntityExtractor {
	return &EntityExtractor{
		analyze: func(ctx context.Context, req *languagepb.AnalyzeEntitiesRequest) (*languagepb.AnalyzeEntitiesResponse, error) {
			return client.AnalyzeEntities(ctx, req)
		},
	}
}

func (x *EntityExtractor) ExtractSymptoms(ctx context.Context, text string) ([]string, error) {
	req := &languagepb.AnalyzeEntitiesRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{
				Content: text,
			},
			Type: languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}

	resp, err := x.analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("AnalyzeEntities error: %w", err)
	}

	var found [][]string
	for _, e := range resp.Entities {
		found = append(found, ExtractSymptoms(e.Name))
		for _, m := range e.Mentions {
			if m.Text != nil {
				found = append(found, ExtractSymptoms(m.Text.Content))
			}
		}
	}
	return MergeSymptoms(found...), nil
}
