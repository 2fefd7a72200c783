package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/orugallu/diagtranslate/internal/batching"
	"github.com/orugallu/diagtranslate/internal/record"
)

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt("Telugu")
	for _, want := range []string{
		"Telugu",
		"CRITICAL INSTRUCTIONS",
		"EXACT same keys",
		"Return ONLY the JSON object",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBatchUserContent(t *testing.T) {
	csv := "description_id,english_sentence\n" +
		"1,Check the oil.\n" +
		"2,\"Torque the bolts to 90 Nm, then recheck.\"\n"
	store, err := record.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	batch := batching.Batch{ID: "batch-0001", MemberIDs: []string{"1", "2"}}

	content := BatchUserContent(batch, store)

	var parsed map[string]string
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("content is not valid JSON: %v\n%s", err, content)
	}
	if parsed["1"] != "Check the oil." || parsed["2"] != "Torque the bolts to 90 Nm, then recheck." {
		t.Errorf("parsed = %v", parsed)
	}

	// Keys must appear in membership order.
	if strings.Index(content, `"1"`) > strings.Index(content, `"2"`) {
		t.Errorf("membership order lost: %s", content)
	}
}

func TestBatchUserContentSkipsUnknownIDs(t *testing.T) {
	store, err := record.Parse(strings.NewReader("id,text\n1,Check the oil.\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	batch := batching.Batch{ID: "batch-0001", MemberIDs: []string{"1", "404"}}
	content := BatchUserContent(batch, store)
	if strings.Contains(content, "404") {
		t.Errorf("unknown id leaked: %s", content)
	}
}
