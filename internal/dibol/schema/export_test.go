package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefinitions(t *testing.T) {
	defs := Definitions(Parse(invprtDef))
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}

	hdr := defs[0]
	if hdr.MessageType != DefinitionMessageType {
		t.Errorf("MessageType = %q", hdr.MessageType)
	}
	if hdr.FieldCount != 8 || hdr.TotalLength != 30 {
		t.Errorf("FieldCount=%d TotalLength=%d, want 8 and 30", hdr.FieldCount, hdr.TotalLength)
	}
}

func TestRecordJSON(t *testing.T) {
	data, err := json.Marshal(Parse(invprtDef)[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"record_name":"INVHDR,X"`, `"data_type":"D"`, `"device_no":12`, `"start_pos":20`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON missing %s: %s", want, data)
		}
	}
}

func TestDuplicates(t *testing.T) {
	text := "RECORD A\n\tX ,A1\nRECORD B\n\tY ,A1\nRECORD A\n\tZ ,A1\nRECORD A\n\tW ,A1\n"
	dups := Duplicates(Parse(text))
	if len(dups) != 1 || dups[0] != "A" {
		t.Errorf("Duplicates() = %v, want [A]", dups)
	}
	if got := Duplicates(Parse(invprtDef)); len(got) != 0 {
		t.Errorf("Duplicates() = %v, want none", got)
	}
}
