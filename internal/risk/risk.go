// Package risk derives a vendor risk level from security assessment
// answers.
package risk

import (
	"fmt"
	"strings"

	"github.com/sheetsense/sheetsense/internal/table"
)

const Column = "Risk Level"

type Level string

const (
	High   Level = "High"
	Medium Level = "Medium"
	Low    Level = "Low"
)

var Levels = []Level{High, Medium, Low}

const (
	breachColumn     = "Security Breach Last 2 Years"
	infosecColumn    = "Formal InfoSec Policy"
	incidentColumn   = "Incident Response Plan"
	continuityColumn = "Business Continuity Plan"
	insuranceColumn  = "Cyber Insurance"
)

// RequiredColumns are the assessment answers a Risk Level is derived from.
var RequiredColumns = []string{breachColumn, infosecColumn, incidentColumn, continuityColumn, insuranceColumn}

// Applicable reports whether t carries every required answer column.
func Applicable(t *table.Table) bool {
	for _, column := range RequiredColumns {
		if !t.HasColumn(column) {
			return false
		}
	}
	return true
}

// Classify returns t with a Risk Level column appended. Tables missing an
// answer column, or already carrying a Risk Level, are returned unchanged.
func Classify(t *table.Table) (*table.Table, bool, error) {
	if !Applicable(t) || t.HasColumn(Column) {
		return t, false, nil
	}
	levels := make([]string, t.Len())
	for i := range levels {
		levels[i] = string(Assess(t.Lookup(i)))
	}
	out, err := t.WithColumn(Column, levels)
	if err != nil {
		return nil, false, fmt.Errorf("add risk level column: %w", err)
	}
	return out, true, nil
}

// Assess applies the rule table to one row: any reported breach or a
// missing InfoSec policy or incident response plan is High, a missing
// continuity plan or cyber insurance is Medium, everything else Low.
func Assess(row func(column string) (string, bool)) Level {
	answer := func(column string) string {
		v, _ := row(column)
		return strings.ToLower(strings.TrimSpace(v))
	}
	if breachReported(answer(breachColumn)) || answer(infosecColumn) == "no" || answer(incidentColumn) == "no" {
		return High
	}
	if answer(continuityColumn) == "no" || answer(insuranceColumn) == "no" {
		return Medium
	}
	return Low
}

func breachReported(v string) bool {
	switch v {
	case "", "none", "no", "nan":
		return false
	}
	return true
}

// Summary counts rows per level. ok is false when t has no Risk Level
// column.
func Summary(t *table.Table) (counts map[Level]int, ok bool) {
	idx, ok := t.ColumnIndex(Column)
	if !ok {
		return nil, false
	}
	counts = make(map[Level]int, len(Levels))
	for i := 0; i < t.Len(); i++ {
		counts[Level(strings.TrimSpace(t.Cell(i, idx)))]++
	}
	return counts, true
}

// KPIs are the dashboard headline counts over the assessment answers.
type KPIs struct {
	Vendors                 int `json:"vendors"`
	Breaches                int `json:"breaches"`
	MissingInfoSecPolicy    int `json:"missing_infosec_policy"`
	MissingIncidentResponse int `json:"missing_incident_response"`
	MissingContinuityPlan   int `json:"missing_continuity_plan"`
	MissingCyberInsurance   int `json:"missing_cyber_insurance"`
}

// Indicators counts reported breaches and each missing control. A control
// is missing only when the answer is "no"; blank answers are not counted.
// ok is false unless t carries every required column.
func Indicators(t *table.Table) (kpis KPIs, ok bool) {
	if !Applicable(t) {
		return KPIs{}, false
	}
	kpis.Vendors = t.Len()
	for i := 0; i < t.Len(); i++ {
		row := t.Lookup(i)
		answer := func(column string) string {
			v, _ := row(column)
			return strings.ToLower(strings.TrimSpace(v))
		}
		if breachReported(answer(breachColumn)) {
			kpis.Breaches++
		}
		if answer(infosecColumn) == "no" {
			kpis.MissingInfoSecPolicy++
		}
		if answer(incidentColumn) == "no" {
			kpis.MissingIncidentResponse++
		}
		if answer(continuityColumn) == "no" {
			kpis.MissingContinuityPlan++
		}
		if answer(insuranceColumn) == "no" {
			kpis.MissingCyberInsurance++
		}
	}
	return kpis, true
}

// Describe renders Summary and Indicators for prompts, e.g.
// "Risk Level summary: High 3, Medium 1, Low 4. Vendors 8, breaches 2, ...".
// Either part is omitted when its columns are absent.
func Describe(t *table.Table) string {
	var lines []string
	if counts, ok := Summary(t); ok {
		parts := make([]string, 0, len(Levels))
		for _, level := range Levels {
			parts = append(parts, fmt.Sprintf("%s %d", level, counts[level]))
		}
		lines = append(lines, "Risk Level summary: "+strings.Join(parts, ", "))
	}
	if kpis, ok := Indicators(t); ok {
		lines = append(lines, fmt.Sprintf(
			"Vendors %d, breaches %d, without InfoSec policy %d, without incident response plan %d, without business continuity plan %d, without cyber insurance %d",
			kpis.Vendors, kpis.Breaches, kpis.MissingInfoSecPolicy, kpis.MissingIncidentResponse, kpis.MissingContinuityPlan, kpis.MissingCyberInsurance,
		))
	}
	return strings.Join(lines, ". ")
}
