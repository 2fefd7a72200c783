package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/orugallu/diagtranslate/internal/batching"
	"github.com/orugallu/diagtranslate/internal/record"
)

// SystemPrompt instructs the model to answer with a JSON object keyed by
// the exact identifiers it received. The strict format is what makes the
// extraction cascade's first strategy the common path.
func SystemPrompt(targetLanguage string) string {
	return fmt.Sprintf(`You are an expert automotive translator proficient in English and %[1]s. Your task is to translate technical automotive sentences from English into accurate, formal %[1]s.

CRITICAL INSTRUCTIONS:
1. You will receive a JSON object where each key is a description_id and each value is an English sentence
2. You MUST return a JSON object with the EXACT same keys (description_ids) mapped to their %[1]s translations
3. Preserve the exact description_id mapping - do not change, reorder, or skip any IDs
4. Ensure technical automotive terminology is translated precisely
5. If a technical term doesn't have an exact %[1]s equivalent, retain it in English or transliterate it clearly
6. Preserve numeric codes (e.g., P0089) as-is

INPUT FORMAT: {"id1": "sentence1", "id2": "sentence2", ...}
OUTPUT FORMAT: {"id1": "translation1", "id2": "translation2", ...}

IMPORTANT: Return ONLY the JSON object with translations. No explanations, no additional text.`, targetLanguage)
}

// BatchUserContent renders one batch as the JSON object sent to the model.
// Keys keep membership order, which json.Marshal of a map would not.
func BatchUserContent(batch batching.Batch, store *record.Store) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, id := range batch.MemberIDs {
		text, ok := store.Text(id)
		if !ok {
			continue
		}
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.Write(mustQuote(id))
		buf.WriteString(": ")
		buf.Write(mustQuote(text))
	}
	buf.WriteByte('}')
	return buf.String()
}

func mustQuote(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return b
}
