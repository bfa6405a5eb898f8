package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-outbreak/nlp"
	"go-outbreak/types"
)

const maxDescriptionLength = 5000

// ReportInput is a symptom report as submitted by a client.
type ReportInput struct {
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	Description  string   `json:"description"`
	Symptoms     []string `json:"symptoms"`
	Severity     int      `json:"severity"`
	CaseCount    int      `json:"caseCount"`
	AgeRange     string   `json:"ageRange,omitempty"`
	RecentTravel *bool    `json:"recentTravel,omitempty"`
}

type ReportWriter interface {
	SaveReport(ctx context.Context, r types.SymptomReport) error
}

type EntityExtractor interface {
	ExtractSymptoms(ctx context.Context, text string) ([]string, error)
}

// Notifier announces stored reports, normally on a Redis stream.
type Notifier interface {
	PublishReport(ctx context.Context, r types.SymptomReport) error
}

type Service struct {
	store    ReportWriter
	entities EntityExtractor
	notifier Notifier
	trigger  func()
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires intake. entities, notifier and trigger may be nil. When a
// notifier is set the trigger is only used if publishing fails.
func NewService(store ReportWriter, entities EntityExtractor, notifier Notifier, trigger func(), logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		entities: entities,
		notifier: notifier,
		trigger:  trigger,
		logger:   logger,
		now:      time.Now,
	}
}

func Validate(in ReportInput) error {
	if err := (types.Point{Lat: in.Lat, Lng: in.Lng}).Validate(); err != nil {
		return err
	}
	if err := types.ValidateSeverity(in.Severity); err != nil {
		return err
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return &types.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if len(desc) > maxDescriptionLength {
		return &types.ValidationError{Field: "description", Reason: fmt.Sprintf("longer than %d characters", maxDescriptionLength)}
	}
	if in.CaseCount < 0 {
		return &types.ValidationError{Field: "caseCount", Reason: "must not be negative"}
	}
	return nil
}

// Submit validates, tags and stores a report, then schedules detection.
func (s *Service) Submit(ctx context.Context, in ReportInput) (types.SymptomReport, error) {
	if err := Validate(in); err != nil {
		return types.SymptomReport{}, err
	}

	desc := strings.TrimSpace(in.Description)
	report := types.SymptomReport{
		ID:           uuid.NewString(),
		Location:     types.Point{Lat: in.Lat, Lng: in.Lng},
		Description:  desc,
		Symptoms:     nlp.MergeSymptoms(in.Symptoms, nlp.ExtractSymptoms(desc), s.entitySymptoms(ctx, desc)),
		Severity:     in.Severity,
		CaseCount:    in.CaseCount,
		CreatedAt:    s.now().UTC(),
		AgeRange:     strings.TrimSpace(in.AgeRange),
		RecentTravel: in.RecentTravel,
	}
	if report.CaseCount == 0 {
		report.CaseCount = 1
	}

	if err := s.store.SaveReport(ctx, report); err != nil {
		return types.SymptomReport{}, fmt.Errorf("failed to save report: %w", err)
	}
	s.logger.Info("Report stored",
		zap.String("report_id", report.ID),
		zap.Int("severity", report.Severity),
		zap.Strings("symptoms", report.Symptoms),
	)

	s.announce(ctx, report)
	return report, nil
}

func (s *Service) entitySymptoms(ctx context.Context, text string) []string {
	if s.entities == nil {
		return nil
	}
	found, err := s.entities.ExtractSymptoms(ctx, text)
	if err != nil {
		s.logger.Warn("Entity extraction failed, using lexicon only", zap.Error(err))
		return nil
	}
	return found
}

func (s *Service) announce(ctx context.Context, report types.SymptomReport) {
	if s.notifier != nil {
		err := s.notifier.PublishReport(ctx, report)
		if err == nil {
			return
		}
		s.logger.Warn("Failed to publish report event", zap.String("report_id", report.ID), zap.Error(err))
	}
	if s.trigger != nil {
		s.trigger()
	}
}
