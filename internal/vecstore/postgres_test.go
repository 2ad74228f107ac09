package vecstore

import (
	"strings"
	"testing"
)

func TestBuildUpsertSQLPlaceholders(t *testing.T) {
	records := []Record{
		{ID: "a", Vector: []float32{1, 2}, Metadata: Metadata{TextPreview: "x"}},
		{ID: "b", Vector: []float32{3, 4}, Metadata: Metadata{TextPreview: "y"}},
	}

	sql, args := buildUpsertSQL(records)

	if got, want := len(args), 14; got != want {
		t.Fatalf("args = %d, want %d", got, want)
	}
	if !strings.Contains(sql, "$14") {
		t.Errorf("missing last placeholder in: %s", sql)
	}
	if strings.Contains(sql, "$15") {
		t.Errorf("too many placeholders in: %s", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (id) DO UPDATE") {
		t.Errorf("upsert clause missing in: %s", sql)
	}
	if args[0] != "a" || args[7] != "b" {
		t.Errorf("record IDs misplaced: %v, %v", args[0], args[7])
	}
}

func TestTruncatePreviewShortUnchanged(t *testing.T) {
	if got := TruncatePreview("kısa metin"); got != "kısa metin" {
		t.Errorf("TruncatePreview changed short input: %q", got)
	}
}

func TestTruncatePreviewCapsBytes(t *testing.T) {
	long := strings.Repeat("a", 1500)
	got := TruncatePreview(long)
	if len(got) != 1000 {
		t.Errorf("len = %d, want 1000", len(got))
	}
}

func TestTruncatePreviewKeepsValidUTF8(t *testing.T) {
	// 'ş' is two bytes; a naive byte cut at 1000 can land mid-sequence.
	long := strings.Repeat("ş", 600) // 1200 bytes
	got := TruncatePreview(long)
	if len(got) > 1000 {
		t.Fatalf("len = %d, want <= 1000", len(got))
	}
	for _, r := range got {
		if r == '�' {
			t.Fatal("truncation produced an invalid UTF-8 sequence")
		}
	}
}
