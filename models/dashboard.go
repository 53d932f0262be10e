package models

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

const (
	// RecentInteractionLimit is how many interactions the dashboard lists.
	RecentInteractionLimit = 10

	// HighSeverityThreshold marks an interaction a doctor should look at.
	HighSeverityThreshold = 6

	doctorWindow        = 20
	doctorNotesWindow   = 10
	doctorRecentEvents  = 5
	redFlagEventCount   = 3
	redFlagSymptomCount = 3
)

type SymptomOccurrence struct {
	Date         time.Time `json:"date"`
	Status       string    `json:"status"`
	ReportedTime string    `json:"reported_time,omitempty"`
}

// SymptomTrend follows one symptom name across a user's interactions.
// Status is the status from the latest mention.
type SymptomTrend struct {
	Name          string              `json:"name"`
	FirstReported time.Time           `json:"first_reported"`
	LastReported  time.Time           `json:"last_reported"`
	Status        string              `json:"status"`
	Occurrences   int                 `json:"occurrences"`
	Timeline      []SymptomOccurrence `json:"timeline"`
}

type MedicationAdherence struct {
	Name          string    `json:"name"`
	TimesTaken    int       `json:"times_taken"`
	TimesSkipped  int       `json:"times_skipped"`
	LastMentioned time.Time `json:"last_mentioned"`
	Effects       []string  `json:"effects"`
}

// DashboardStats aggregates the clinical records of one user.
type DashboardStats struct {
	Symptoms           []SymptomTrend        `json:"symptoms"`
	Medications        []MedicationAdherence `json:"medications"`
	RecentInteractions []InteractionLogEntry `json:"recent_interactions"`
	TotalInteractions  int                   `json:"total_interactions"`
	AvgSeverity        float64               `json:"avg_severity"`
	ReliefRate         int                   `json:"relief_rate"`
	LastActivity       *time.Time            `json:"last_activity"`
}

// BuildDashboard aggregates history, which must be oldest first.
//
// Symptoms are ordered by occurrences and medications by times taken, both
// descending; ties keep first-mention order. AvgSeverity ignores zero
// scores and is rounded to one decimal. ReliefRate is a whole percentage.
func BuildDashboard(history []InteractionLogEntry) DashboardStats {
	stats := DashboardStats{
		Symptoms:           []SymptomTrend{},
		Medications:        []MedicationAdherence{},
		RecentInteractions: []InteractionLogEntry{},
		TotalInteractions:  len(history),
	}

	symptomAt := map[string]int{}
	medicationAt := map[string]int{}
	var severitySum, severityCount, reliefCount int

	for _, entry := range history {
		rec := entry.Clinical
		for _, s := range rec.Symptoms {
			i, ok := symptomAt[s.Name]
			if !ok {
				i = len(stats.Symptoms)
				symptomAt[s.Name] = i
				stats.Symptoms = append(stats.Symptoms, SymptomTrend{Name: s.Name, FirstReported: entry.Timestamp})
			}
			trend := &stats.Symptoms[i]
			trend.Occurrences++
			trend.LastReported = entry.Timestamp
			trend.Status = s.Status
			trend.Timeline = append(trend.Timeline, SymptomOccurrence{
				Date:         entry.Timestamp,
				Status:       s.Status,
				ReportedTime: s.ReportedTime,
			})
		}

		for _, m := range rec.Medications {
			i, ok := medicationAt[m.Name]
			if !ok {
				i = len(stats.Medications)
				medicationAt[m.Name] = i
				stats.Medications = append(stats.Medications, MedicationAdherence{Name: m.Name, Effects: []string{}})
			}
			adherence := &stats.Medications[i]
			if m.Taken {
				adherence.TimesTaken++
			} else {
				adherence.TimesSkipped++
			}
			adherence.LastMentioned = entry.Timestamp
			if m.EffectNoted != "" {
				adherence.Effects = append(adherence.Effects, m.EffectNoted)
			}
		}

		if rec.Severity > 0 {
			severitySum += rec.Severity
			severityCount++
		}
		if rec.ReliefNoted {
			reliefCount++
		}
	}

	sort.SliceStable(stats.Symptoms, func(i, j int) bool {
		return stats.Symptoms[i].Occurrences > stats.Symptoms[j].Occurrences
	})
	sort.SliceStable(stats.Medications, func(i, j int) bool {
		return stats.Medications[i].TimesTaken > stats.Medications[j].TimesTaken
	})

	if severityCount > 0 {
		stats.AvgSeverity = math.Round(float64(severitySum)/float64(severityCount)*10) / 10
	}
	if len(history) > 0 {
		stats.ReliefRate = int(math.Round(float64(reliefCount) * 100 / float64(len(history))))
		last := history[len(history)-1].Timestamp
		stats.LastActivity = &last
	}

	recent := history[max(0, len(history)-RecentInteractionLimit):]
	for i := len(recent) - 1; i >= 0; i-- {
		stats.RecentInteractions = append(stats.RecentInteractions, recent[i])
	}
	return stats
}

type SeverityEvent struct {
	Date     time.Time `json:"date"`
	Severity int       `json:"severity"`
	Summary  string    `json:"summary"`
	Symptoms []string  `json:"symptoms"`
}

// DoctorSummary is the clinician-facing digest of a user's history.
type DoctorSummary struct {
	GeneratedAt          time.Time       `json:"generated_at"`
	TotalInteractions    int             `json:"total_interactions"`
	RedFlags             []string        `json:"red_flags"`
	ActiveSymptoms       []string        `json:"active_symptoms"`
	SkippedMedications   []string        `json:"skipped_medications"`
	FetalMovementConcern bool            `json:"fetal_movement_concern"`
	HighSeverityEvents   int             `json:"high_severity_events"`
	RecentHighSeverity   []SeverityEvent `json:"recent_high_severity"`
	DoctorNotes          string          `json:"doctor_notes"`
}

// BuildDoctorSummary condenses history (oldest first) into red flags.
// Active symptoms and skipped medications come from the last 20
// interactions. Fetal movement is a concern when more than half of the
// answered checks (Yes or No) were No.
func BuildDoctorSummary(history []InteractionLogEntry, now time.Time) DoctorSummary {
	summary := DoctorSummary{
		GeneratedAt:        now,
		TotalInteractions:  len(history),
		RedFlags:           []string{},
		ActiveSymptoms:     []string{},
		SkippedMedications: []string{},
		RecentHighSeverity: []SeverityEvent{},
	}

	var high []InteractionLogEntry
	var noMovement, movementChecks int
	for _, entry := range history {
		if entry.Clinical.Severity >= HighSeverityThreshold {
			high = append(high, entry)
		}
		switch entry.Clinical.FetalMovement {
		case FetalMovementNo:
			noMovement++
			movementChecks++
		case FetalMovementYes:
			movementChecks++
		}
	}
	summary.HighSeverityEvents = len(high)
	summary.FetalMovementConcern = movementChecks > 0 && float64(noMovement)/float64(movementChecks) > 0.5

	for _, entry := range history[max(0, len(history)-doctorWindow):] {
		for _, s := range entry.Clinical.Symptoms {
			if (s.Status == SymptomActive || s.Status == SymptomRecurring) && !slices.Contains(summary.ActiveSymptoms, s.Name) {
				summary.ActiveSymptoms = append(summary.ActiveSymptoms, s.Name)
			}
		}
		for _, m := range entry.Clinical.Medications {
			if !m.Taken && !slices.Contains(summary.SkippedMedications, m.Name) {
				summary.SkippedMedications = append(summary.SkippedMedications, m.Name)
			}
		}
	}

	for _, entry := range high[max(0, len(high)-doctorRecentEvents):] {
		names := make([]string, 0, len(entry.Clinical.Symptoms))
		for _, s := range entry.Clinical.Symptoms {
			names = append(names, s.Name)
		}
		summary.RecentHighSeverity = append(summary.RecentHighSeverity, SeverityEvent{
			Date:     entry.Timestamp,
			Severity: entry.Clinical.Severity,
			Summary:  entry.Clinical.Summary,
			Symptoms: names,
		})
	}

	if len(high) > redFlagEventCount {
		summary.RedFlags = append(summary.RedFlags, fmt.Sprintf("%d high-severity events recorded", len(high)))
	}
	if len(summary.ActiveSymptoms) > redFlagSymptomCount {
		summary.RedFlags = append(summary.RedFlags, "Multiple active symptoms: "+strings.Join(summary.ActiveSymptoms, ", "))
	}
	if summary.FetalMovementConcern {
		summary.RedFlags = append(summary.RedFlags, "Patient frequently reports no fetal movement")
	}
	if len(summary.SkippedMedications) > 0 {
		summary.RedFlags = append(summary.RedFlags, "Medications not taken: "+strings.Join(summary.SkippedMedications, ", "))
	}

	var notes []string
	for _, entry := range history[max(0, len(history)-doctorNotesWindow):] {
		if entry.Clinical.Summary != "" {
			notes = append(notes, fmt.Sprintf("[%s] %s", entry.Timestamp.Format(time.DateOnly), entry.Clinical.Summary))
		}
	}
	summary.DoctorNotes = strings.Join(notes, "\n")
	return summary
}
