package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// additionalInfoKey is reserved in every incoming section mapping: its
// value is surfaced separately instead of being copied into the section
// data.
const additionalInfoKey = "additional_info"

// Request carries the previously computed pieces the client wants merged.
// The nested maps are free-form; only documented keys are looked up.
type Request struct {
	PatientInfo  map[string]interface{} `json:"patient_info" binding:"required"`
	CancerResult map[string]interface{} `json:"cancer_result" binding:"required"`
	RiskAnalysis map[string]interface{} `json:"risk_analysis,omitempty"`
}

// Section is one named block of the assembled report.
type Section struct {
	Title          string            `json:"title"`
	Data           map[string]string `json:"data"`
	AdditionalInfo string            `json:"additional_info,omitempty"`
}

// Summary closes every report with a fixed status and three key findings.
type Summary struct {
	Status      string   `json:"status"`
	KeyFindings []string `json:"key_findings"`
}

// Report is the derived, stateless document returned to the client.
type Report struct {
	ReportID    string             `json:"report_id"`
	GeneratedAt string             `json:"generated_at"`
	Sections    map[string]Section `json:"sections"`
	Summary     Summary            `json:"summary"`
}

// Assemble merges the request into a report. Total: any combination of
// missing or oddly typed keys yields a report, never an error. Identifier
// and timestamp come from the assembly-time clock.
func Assemble(req Request) Report {
	now := time.Now()

	sections := map[string]Section{
		"patient_information": buildSection("Patient Information", req.PatientInfo),
		"cancer_detection":    buildSection("Cancer Detection Results", req.CancerResult),
	}

	if req.RiskAnalysis != nil {
		riskSection := buildSection("Risk Assessment", req.RiskAnalysis)
		if _, ok := riskSection.Data["risk_level"]; !ok {
			riskSection.Data["risk_level"] = "Not assessed"
		}
		if _, ok := riskSection.Data["risk_score"]; !ok {
			riskSection.Data["risk_score"] = "N/A"
		}
		sections["risk_assessment"] = riskSection
	}

	return Report{
		ReportID:    "LCR-" + now.Format("20060102-150405"),
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
		Sections:    sections,
		Summary: Summary{
			Status:      "Complete",
			KeyFindings: keyFindings(req),
		},
	}
}

func buildSection(title string, source map[string]interface{}) Section {
	section := Section{
		Title: title,
		Data:  make(map[string]string, len(source)),
	}

	for key, value := range source {
		if key == additionalInfoKey {
			section.AdditionalInfo = formatValue(value)
			continue
		}
		section.Data[key] = formatValue(value)
	}

	return section
}

// formatValue renders any value as display text: lists comma-joined, maps
// as "key: value" pairs, everything else via fmt.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%s: %s", key, formatValue(v[key]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// keyFindings derives exactly three findings, with literal fallbacks when
// the source keys are absent.
func keyFindings(req Request) []string {
	prediction := "Not detected"
	if v, ok := req.CancerResult["prediction_text"]; ok {
		if text := formatValue(v); text != "" {
			prediction = text
		}
	}

	confidence := "N/A"
	if v, ok := req.CancerResult["confidence"]; ok {
		confidence = formatValue(v)
	}

	riskLevel := "Not assessed"
	if req.RiskAnalysis != nil {
		if v, ok := req.RiskAnalysis["risk_level"]; ok {
			if text := formatValue(v); text != "" {
				riskLevel = text
			}
		}
	}

	return []string{
		"Prediction: " + prediction,
		"Confidence: " + confidence,
		"Risk Level: " + riskLevel,
	}
}
