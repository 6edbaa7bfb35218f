package contentstream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tsawler/pageview/core"
)

// summary renders operations compactly for comparison.
func summary(ops []Operation) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		var sb strings.Builder
		for _, o := range op.Operands {
			sb.WriteString(o.String())
			sb.WriteByte(' ')
		}
		sb.WriteString(op.Operator)
		parts[i] = sb.String()
	}
	return strings.Join(parts, "; ")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"save restore", "q Q", "q; Q"},
		{"cm", "1 0 0 1 72.5 -10 cm", "1 0 0 1 72.5 -10 cm"},
		{"leading dot", ".5 -.25 m", "0.5 -0.25 m"},
		{"path", "10 20 m 30 40 l h S", "10 20 m; 30 40 l; h; S"},
		{"star operators", "0 0 10 10 re f* W* n", "0 0 10 10 re; f*; W*; n"},
		{"quote operators", "(a) ' 1 2 (b) \"", "a '; 1 2 b \""},
		{"digits in operator", "0 0 d0", "0 0 d0"},
		{"no whitespace", "1 0 0 RG/GS1 gs[1 2]0 d", "1 0 0 RG; /GS1 gs; [1 2] 0 d"},
		{"comments", "q % save\n1 w %width\r\nQ", "q; 1 w; Q"},
		{"booleans", "true false null BX", "true false null BX"},
		{"names", "/Im#201 Do", "/Im 1 Do"},
		{"hex string", "<48 65 6c6C 6f> Tj", "Hello Tj"},
		{"nested string", "(a (b) \\) c) Tj", "a (b) ) c Tj"},
		{"dict operand", "/OC <</Type /OCMD /On true>> BDC EMC", "/OC " + core.Dict{"Type": core.Name("OCMD"), "On": core.Bool(true)}.String() + " BDC; EMC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := NewParser([]byte(tt.input)).Parse()
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := summary(ops); got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInlineImage(t *testing.T) {
	tests := []struct {
		name string
		data string // image data between ID and EI
		dict string
	}{
		{"exact length", "\x00EI\xff", "/W 2 /H 2 /BPC 8 /CS /G"},
		{"filtered", "00ff00ff>", "/W 2 /H 2 /BPC 8 /CS /G /F /AHx"},
		{"stencil", "\x40", "/W 3 /H 1 /IM true"},
		{"named colour space", "abc", "/W 1 /H 1 /BPC 8 /CS /CS0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := fmt.Sprintf("q BI %s ID %s EI Q", tt.dict, tt.data)
			ops, err := NewParser([]byte(input)).Parse()
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if len(ops) != 3 || ops[1].Operator != "BI" {
				t.Fatalf("Parse() = %s", summary(ops))
			}
			if ops[2].Operator != "Q" {
				t.Errorf("operator after image = %s, want Q", ops[2].Operator)
			}
			dict, ok := ops[1].Operands[0].(core.Dict)
			if !ok || !dict.Has("W") {
				t.Fatalf("image dict = %v", ops[1].Operands[0])
			}
			if got := string(ops[1].Operands[1].(core.String)); got != tt.data {
				t.Errorf("image data = %q, want %q", got, tt.data)
			}
		})
	}
}

func TestInlineImageLength(t *testing.T) {
	tests := []struct {
		dict core.Dict
		want int
	}{
		{core.Dict{"W": core.Int(10), "H": core.Int(2), "BPC": core.Int(8), "CS": core.Name("RGB")}, 60},
		{core.Dict{"Width": core.Int(9), "Height": core.Int(2), "BitsPerComponent": core.Int(1), "ColorSpace": core.Name("DeviceGray")}, 4},
		{core.Dict{"W": core.Int(9), "H": core.Int(3), "IM": core.Bool(true)}, 6},
		{core.Dict{"W": core.Int(2), "H": core.Int(2), "BPC": core.Int(8), "CS": core.Name("G"), "F": core.Name("Fl")}, -1},
		{core.Dict{"W": core.Int(2), "H": core.Int(2), "BPC": core.Int(8), "CS": core.Name("CS1")}, -1},
	}
	for i, tt := range tests {
		if got := inlineImageLength(tt.dict); got != tt.want {
			t.Errorf("case %d: inlineImageLength() = %d, want %d", i, got, tt.want)
		}
	}
}

func TestParseErrorsKeepEarlierOperations(t *testing.T) {
	tests := []string{
		"q 1 w (unterminated",
		"q 1 w BI /W 1 /H 1 ID abc",
		"q 1 w [1 2",
	}
	for _, input := range tests {
		ops, err := NewParser([]byte(input)).Parse()
		if err == nil {
			t.Errorf("Parse(%q) succeeded", input)
			continue
		}
		if got := summary(ops); got != "q; 1 w" {
			t.Errorf("Parse(%q) kept %q, want %q", input, got, "q; 1 w")
		}
	}
}

func TestParsersAreIndependent(t *testing.T) {
	a := NewParser([]byte("1 2 "))
	b := NewParser([]byte("m"))
	if _, err := a.Parse(); err != nil {
		t.Fatal(err)
	}
	ops, _ := b.Parse()
	if len(ops) != 1 || len(ops[0].Operands) != 0 {
		t.Errorf("operands leaked between parsers: %s", summary(ops))
	}
}
