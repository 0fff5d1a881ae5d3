package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"lungscan-server-go/src/core/types"
)

// RiskRequest carries the patient profile for a structured risk assessment.
type RiskRequest struct {
	Age            int    `json:"age" binding:"gte=0"`
	Gender         string `json:"gender" binding:"required"`
	SmokingHistory bool   `json:"smoking_history"`
	FamilyHistory  bool   `json:"family_history"`
	Symptoms       string `json:"symptoms" binding:"required"`
	CancerType     string `json:"cancer_type,omitempty"`
}

// RiskResult is the parsed assessment. Missing fields in the LLM output are
// defaulted, not errors: empty lists, zero score, level "Not assessed".
type RiskResult struct {
	RiskFactors     []string `json:"risk_factors"`
	RiskScore       int      `json:"risk_score"`
	Recommendations []string `json:"recommendations"`
	RiskLevel       string   `json:"risk_level"`
}

const riskPromptTemplate = `You are a medical risk assessment assistant. Based on the patient
profile below, assess the lung cancer risk.

Patient profile:
- Age: %d
- Gender: %s
- Smoking history: %t
- Family history of cancer: %t
- Symptoms: %s
- Cancer type of concern: %s

Respond with a single JSON object containing exactly these six fields:
"risk_factors" (array of strings), "risk_score" (integer from 0 to 100),
"risk_level" (one of "Low", "Medium", "High"), "recommendations" (array of
strings), "summary" (string), "follow_up" (string).
Respond with JSON only, no surrounding prose.`

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// AssessRisk prompts the LLM for a structured assessment and parses its
// reply. A failed upstream call wraps types.ErrUpstream; a reply that is
// not JSON in any recognized shape wraps types.ErrUpstreamFormat and
// carries the raw text.
func (s *Service) AssessRisk(ctx context.Context, req RiskRequest) (*RiskResult, error) {
	cancerType := req.CancerType
	if cancerType == "" {
		cancerType = "lung cancer"
	}

	prompt := fmt.Sprintf(riskPromptTemplate,
		req.Age, req.Gender, req.SmokingHistory, req.FamilyHistory, req.Symptoms, cancerType)

	messages := []types.Message{
		{Role: "user", Content: prompt},
	}

	text, err := s.provider.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	result, err := ParseRiskResponse(text)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("risk response not parsable: %v", err))
		return nil, err
	}

	return result, nil
}

// ParseRiskResponse extracts the JSON object from the LLM reply. A fenced
// code block wins when present; otherwise the whole reply must parse as
// JSON. Parse failure is strict, but missing fields inside a parsed object
// are defaulted per field.
func ParseRiskResponse(text string) (*RiskResult, error) {
	candidate := strings.TrimSpace(text)
	if matches := fencedBlockPattern.FindStringSubmatch(candidate); matches != nil {
		candidate = matches[1]
	}

	var parsed struct {
		RiskFactors     []string `json:"risk_factors"`
		RiskScore       int      `json:"risk_score"`
		Recommendations []string `json:"recommendations"`
		RiskLevel       string   `json:"risk_level"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v; raw response: %s", types.ErrUpstreamFormat, err, text)
	}

	result := &RiskResult{
		RiskFactors:     parsed.RiskFactors,
		RiskScore:       parsed.RiskScore,
		Recommendations: parsed.Recommendations,
		RiskLevel:       parsed.RiskLevel,
	}
	if result.RiskFactors == nil {
		result.RiskFactors = []string{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	if result.RiskLevel == "" {
		result.RiskLevel = "Not assessed"
	}

	return result, nil
}
