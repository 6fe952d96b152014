package openai

import (
	"encoding/json"
	"testing"

	"dealsync-backend/internal/mailerr"
)

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 45},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestParseExtraction(t *testing.T) {
	content := `{
		"isDeal": true,
		"brand": "Acme",
		"campaignName": "Spring Launch",
		"payment": 1500,
		"deliverables": [{"platform": "instagram", "deliverableType": "reel", "quantity": 2}],
		"requiredActions": [{"name": "Tag @acme"}]
	}`
	extraction, meta, err := parseExtraction(completionBody(t, content))
	if err != nil {
		t.Fatalf("parseExtraction: %v", err)
	}
	if !extraction.IsDeal || extraction.Brand == nil || *extraction.Brand != "Acme" {
		t.Errorf("extraction = %+v", extraction)
	}
	if len(extraction.Deliverables) != 1 || extraction.Deliverables[0].Platform == nil {
		t.Errorf("deliverables = %+v", extraction.Deliverables)
	}
	if meta.PromptTokens != 120 || meta.CompletionTokens != 45 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestParseExtractionRejectsUnknownFields(t *testing.T) {
	_, _, err := parseExtraction(completionBody(t, `{"isDeal": true, "surprise": 1}`))
	if mailerr.KindOf(err) != mailerr.KindMalformed {
		t.Errorf("kind = %v, want malformed", mailerr.KindOf(err))
	}
}

func TestParseExtractionEmptyCompletion(t *testing.T) {
	_, _, err := parseExtraction([]byte(`{"choices": []}`))
	if mailerr.KindOf(err) != mailerr.KindNoContent {
		t.Errorf("kind = %v, want no-content", mailerr.KindOf(err))
	}
}

func TestParseExtractionGarbageEnvelope(t *testing.T) {
	_, _, err := parseExtraction([]byte(`I'm sorry, I can't help with that.`))
	if mailerr.KindOf(err) != mailerr.KindMalformed {
		t.Errorf("kind = %v, want malformed", mailerr.KindOf(err))
	}
}
