package extract

import (
	"reflect"
	"testing"
)

func TestExtractBareJSON(t *testing.T) {
	raw := `{"1": "Moteren skal efterses.", "desc_2": "Bremserne skal udskiftes."}`
	got, tag := extractTagged(raw)
	want := map[string]string{
		"1": "Moteren skal efterses.",
		"2": "Bremserne skal udskiftes.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if tag != "strict-fence" {
		t.Errorf("strategy = %q, want strict-fence", tag)
	}
}

func TestExtractStrictFence(t *testing.T) {
	raw := "```json\n{\"10\": \"Kontroller kølervæskestanden.\"}\n```"
	got, tag := extractTagged(raw)
	if got["10"] != "Kontroller kølervæskestanden." {
		t.Fatalf("got %v", got)
	}
	if tag != "strict-fence" {
		t.Errorf("strategy = %q, want strict-fence", tag)
	}
}

func TestExtractLooseFence(t *testing.T) {
	// A language tag the strict pattern does not accept.
	raw := "```plaintext\n{\"3\": \"Udskift luftfilteret i kabinen.\"}\n```"
	got, tag := extractTagged(raw)
	if got["3"] != "Udskift luftfilteret i kabinen." {
		t.Fatalf("got %v", got)
	}
	if tag != "loose-fence" {
		t.Errorf("strategy = %q, want loose-fence", tag)
	}
}

func TestExtractFenceInterior(t *testing.T) {
	raw := "Here are the translations:\n```json\n{\"5\": \"Tjek dæktrykket på alle fire hjul.\"}\n```\nLet me know if you need more."
	got, tag := extractTagged(raw)
	if got["5"] != "Tjek dæktrykket på alle fire hjul." {
		t.Fatalf("got %v", got)
	}
	if tag != "fence-interior" {
		t.Errorf("strategy = %q, want fence-interior", tag)
	}
}

func TestExtractBraceRepair(t *testing.T) {
	raw := `{"8": "Mål batterispændingen med motoren slukket."`
	got, tag := extractTagged(raw)
	if got["8"] != "Mål batterispændingen med motoren slukket." {
		t.Fatalf("got %v", got)
	}
	if tag != "brace-repair" {
		t.Errorf("strategy = %q, want brace-repair", tag)
	}
}

func TestExtractQuoteWrappedObject(t *testing.T) {
	raw := `'{"9": "Juster tomgangsventilen ved behov."}'`
	got, tag := extractTagged(raw)
	if got["9"] != "Juster tomgangsventilen ved behov." {
		t.Fatalf("got %v", got)
	}
	if tag != "brace-repair" {
		t.Errorf("strategy = %q, want brace-repair", tag)
	}
}

func TestExtractLegacyLines(t *testing.T) {
	raw := "desc_1. Første oversatte sætning her.\n" +
		"2. Anden oversatte sætning her.\n" +
		"320. ('640', 'Oversættelsen inde i tuplen')\n" +
		"```\n" +
		"plaintext\n"
	got, tag := extractTagged(raw)
	want := map[string]string{
		"1":   "Første oversatte sætning her.",
		"2":   "Anden oversatte sætning her.",
		"640": "Oversættelsen inde i tuplen",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if tag != "legacy-lines" {
		t.Errorf("strategy = %q, want legacy-lines", tag)
	}
}

func TestExtractQuotedLineFragment(t *testing.T) {
	raw := `"21": "Spænd hjulboltene til det foreskrevne moment",`
	got := Extract(raw)
	if got["21"] != "Spænd hjulboltene til det foreskrevne moment" {
		t.Fatalf("got %v", got)
	}
}

func TestExtractNeverFabricates(t *testing.T) {
	for _, raw := range []string{
		"",
		"I was unable to produce translations for this batch.",
		"```\n```",
		`{"1": 42, "2": null}`,
		`{"1": "plaintext", "2": "12"}`,
	} {
		if got := Extract(raw); len(got) != 0 {
			t.Errorf("Extract(%q) = %v, want empty", raw, got)
		}
	}
}

func TestExtractFiltersSuspiciousValues(t *testing.T) {
	raw := `{"1": "Ægte oversættelse af sætningen.", "2": "null", "3": "json"}`
	got := Extract(raw)
	if len(got) != 1 || got["1"] == "" {
		t.Fatalf("got %v, want only id 1", got)
	}
}
