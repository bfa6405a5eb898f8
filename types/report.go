package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinSeverity = 1
	MaxSeverity = 10
)

// SymptomReport is immutable once stored.
type SymptomReport struct {
	ID           string    `firestore:"-" json:"id"`
	Location     Point     `firestore:"location" json:"location"`
	Description  string    `firestore:"description" json:"description"`
	Symptoms     []string  `firestore:"symptoms" json:"symptoms"`
	Severity     int       `firestore:"severity" json:"severity"`
	CaseCount    int       `firestore:"caseCount" json:"caseCount"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
	AgeRange     string    `firestore:"ageRange,omitempty" json:"ageRange,omitempty"`
	RecentTravel *bool     `firestore:"recentTravel,omitempty" json:"recentTravel,omitempty"`
}

// Cases is the number of cases the report stands for; unset counts as one.
func (r SymptomReport) Cases() int {
	if r.CaseCount <= 0 {
		return 1
	}
	return r.CaseCount
}

// HasSymptom matches a disease filter against the report's tags. An empty filter matches everything.
func (r SymptomReport) HasSymptom(filter string) bool {
	filter = strings.TrimSpace(strings.ToLower(filter))
	if filter == "" {
		return true
	}
	for _, s := range r.Symptoms {
		if strings.ToLower(s) == filter {
			return true
		}
	}
	return false
}

func ValidateSeverity(severity int) error {
	if severity < MinSeverity || severity > MaxSeverity {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("%d out of range [%d, %d]", severity, MinSeverity, MaxSeverity)}
	}
	return nil
}

// DailyAggregate is one calendar day (UTC) of reports for a region.
type DailyAggregate struct {
	Date        time.Time `json:"date"`
	TotalCases  int       `json:"totalCases"`
	AvgSeverity float64   `json:"avgSeverity"`
	Count       int       `json:"count"`
}
