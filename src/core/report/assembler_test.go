package report

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAssemble_Totality(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty maps", req: Request{PatientInfo: map[string]interface{}{}, CancerResult: map[string]interface{}{}}},
		{name: "nil maps", req: Request{}},
		{
			name: "odd value types",
			req: Request{
				PatientInfo:  map[string]interface{}{"age": 45, "tags": []interface{}{1, "x", nil}},
				CancerResult: map[string]interface{}{"nested": map[string]interface{}{"b": 2, "a": 1}},
				RiskAnalysis: map[string]interface{}{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Assemble(tt.req)

			if result.ReportID == "" || result.GeneratedAt == "" {
				t.Error("report id and timestamp must always be generated")
			}
			if result.Summary.Status != "Complete" {
				t.Errorf("status = %q, want Complete", result.Summary.Status)
			}
			if len(result.Summary.KeyFindings) != 3 {
				t.Errorf("key_findings has %d entries, want 3", len(result.Summary.KeyFindings))
			}
		})
	}
}

func TestAssemble_KeyFindings(t *testing.T) {
	t.Run("fallbacks when everything is missing", func(t *testing.T) {
		result := Assemble(Request{})

		want := []string{"Prediction: Not detected", "Confidence: N/A", "Risk Level: Not assessed"}
		if !reflect.DeepEqual(result.Summary.KeyFindings, want) {
			t.Errorf("key_findings = %v, want %v", result.Summary.KeyFindings, want)
		}
	})

	t.Run("values pulled from the request", func(t *testing.T) {
		result := Assemble(Request{
			CancerResult: map[string]interface{}{
				"prediction_text": "Malignant cases",
				"confidence":      0.92,
			},
		})

		if result.Summary.KeyFindings[0] != "Prediction: Malignant cases" {
			t.Errorf("finding[0] = %q", result.Summary.KeyFindings[0])
		}
		if result.Summary.KeyFindings[1] != "Confidence: 0.92" {
			t.Errorf("finding[1] = %q", result.Summary.KeyFindings[1])
		}
		if result.Summary.KeyFindings[2] != "Risk Level: Not assessed" {
			t.Errorf("finding[2] = %q", result.Summary.KeyFindings[2])
		}
	})

	t.Run("risk level from risk analysis", func(t *testing.T) {
		result := Assemble(Request{
			RiskAnalysis: map[string]interface{}{"risk_level": "High"},
		})

		if result.Summary.KeyFindings[2] != "Risk Level: High" {
			t.Errorf("finding[2] = %q", result.Summary.KeyFindings[2])
		}
	})
}

func TestAssemble_Sections(t *testing.T) {
	result := Assemble(Request{
		PatientInfo: map[string]interface{}{
			"name":            "Jane Doe",
			"conditions":      []interface{}{"asthma", "hypertension"},
			"additional_info": "former smoker",
		},
		CancerResult: map[string]interface{}{
			"prediction_text": "Normal cases",
		},
		RiskAnalysis: map[string]interface{}{
			"risk_factors": []interface{}{"age"},
		},
	})

	patient := result.Sections["patient_information"]
	if patient.Data["conditions"] != "asthma, hypertension" {
		t.Errorf("conditions = %q, want comma-joined list", patient.Data["conditions"])
	}
	if patient.AdditionalInfo != "former smoker" {
		t.Errorf("additional_info = %q, want it surfaced separately", patient.AdditionalInfo)
	}
	if _, ok := patient.Data["additional_info"]; ok {
		t.Error("reserved key must not be copied into section data")
	}

	risk, ok := result.Sections["risk_assessment"]
	if !ok {
		t.Fatal("risk_assessment section missing")
	}
	if risk.Data["risk_level"] != "Not assessed" {
		t.Errorf("risk_level default = %q, want Not assessed", risk.Data["risk_level"])
	}
	if risk.Data["risk_score"] != "N/A" {
		t.Errorf("risk_score default = %q, want N/A", risk.Data["risk_score"])
	}

	if _, ok := Assemble(Request{}).Sections["risk_assessment"]; ok {
		t.Error("risk_assessment section must be absent without risk_analysis input")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{name: "string", input: "text", expected: "text"},
		{name: "number", input: 42, expected: "42"},
		{name: "nil", input: nil, expected: ""},
		{name: "list", input: []interface{}{"a", "b"}, expected: "a, b"},
		{name: "string list", input: []string{"x", "y"}, expected: "x, y"},
		{name: "map with sorted keys", input: map[string]interface{}{"b": 2, "a": 1}, expected: "a: 1, b: 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.input); got != tt.expected {
				t.Errorf("formatValue(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestReport_JSONRoundTrip(t *testing.T) {
	original := Assemble(Request{
		PatientInfo:  map[string]interface{}{"name": "Jane Doe", "age": 45},
		CancerResult: map[string]interface{}{"prediction_text": "Malignant cases", "confidence": 0.92},
		RiskAnalysis: map[string]interface{}{"risk_level": "High", "risk_score": 80},
	})

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	var restored Report
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}

	if !reflect.DeepEqual(original, restored) {
		t.Errorf("round trip changed the report:\n got %+v\nwant %+v", restored, original)
	}
}
