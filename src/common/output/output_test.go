package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// =============================================================================
// PrintJSON Tests
// =============================================================================

func TestPrintJSON_Map(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, map[string]string{"key": "value"}); err != nil {
		t.Fatalf("PrintJSON error: %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key=value, got %v", result)
	}
}

func TestPrintJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	_ = PrintJSON(&buf, map[string]string{"key": "value"})
	if !strings.Contains(buf.String(), "  ") {
		t.Error("expected indented JSON output")
	}
}

// =============================================================================
// PrintTable Tests
// =============================================================================

func TestPrintTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"STEP", "MODULE"}, [][]string{
		{"1", "binutils-gdb"},
		{"2", "gcc"},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "STEP") {
		t.Errorf("expected header first, got %q", lines[0])
	}
	col := strings.Index(lines[0], "MODULE")
	if strings.Index(lines[1], "binutils-gdb") != col {
		t.Errorf("columns not aligned: %q", buf.String())
	}
}

func TestPrintTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"A"}, nil)
	if strings.TrimSpace(buf.String()) != "A" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

// =============================================================================
// Format Tests
// =============================================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintSuccess_ContainsMessage(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf, "toolchain ready")
	if !strings.Contains(buf.String(), "toolchain ready") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}
