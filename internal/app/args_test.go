package app

import (
	"reflect"
	"testing"
)

func TestParseQuotedArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`Standup 2025-11-10T10:00:00`, []string{"Standup", "2025-11-10T10:00:00"}},
		{`"Codeforces Round" 2025-11-10T10:00:00`, []string{"Codeforces Round", "2025-11-10T10:00:00"}},
		{`'Team sync' extra word`, []string{"Team sync", "extra", "word"}},
		{`  spaced   out  `, []string{"spaced", "out"}},
		{`"" next`, []string{"", "next"}},
	}
	for _, tc := range cases {
		got, err := parseQuotedArgs(tc.in)
		if err != nil {
			t.Fatalf("parseQuotedArgs(%q): %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseQuotedArgs(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseQuotedArgsUnterminated(t *testing.T) {
	if _, err := parseQuotedArgs(`"half open 2025-11-10T10:00:00`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestRandTokenUnique(t *testing.T) {
	a, err := randToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := randToken()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("tokens should not repeat")
	}
	if len(a) != 22 {
		t.Errorf("unexpected token length %d", len(a))
	}
}
