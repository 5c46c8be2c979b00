package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/mlbridge/value"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		input string
		want  arg
	}{
		{"42", arg{kind: argInt, num: 42}},
		{"-7", arg{kind: argInt, num: -7}},
		{"1.5", arg{kind: argFloat, float: 1.5}},
		{"true", arg{kind: argBool, num: 1}},
		{"false", arg{kind: argBool}},
		{"()", arg{kind: argUnit}},
		{`"a b"`, arg{kind: argString, text: "a b"}},
		{`"quote \" inside"`, arg{kind: argString, text: `quote " inside`}},
		{"bare", arg{kind: argString, text: "bare"}},
		{"None", arg{kind: argNone}},
		{"Some 3", arg{kind: argSome, items: []arg{{kind: argInt, num: 3}}}},
		{"[]", arg{kind: argList}},
		{"[1; 2]", arg{kind: argList, items: []arg{{kind: argInt, num: 1}, {kind: argInt, num: 2}}}},
		{"[|1.5|]", arg{kind: argArray, items: []arg{{kind: argFloat, float: 1.5}}}},
		{`(1, "x")`, arg{kind: argTuple, items: []arg{{kind: argInt, num: 1}, {kind: argString, text: "x"}}}},
		{"(5)", arg{kind: argInt, num: 5}},
		{"[[1]; []]", arg{kind: argList, items: []arg{
			{kind: argList, items: []arg{{kind: argInt, num: 1}}},
			{kind: argList},
		}}},
		{"fn:succ", arg{kind: argFunc, text: "succ"}},
		{"ext:demo_greet", arg{kind: argExternal, text: "demo_greet"}},
		{"wasm:add", arg{kind: argWasm, text: "add"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseArg(tt.input)
			if err != nil {
				t.Fatalf("parseArg(%q) error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(arg{})); diff != "" {
				t.Errorf("parseArg(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseArg_Errors(t *testing.T) {
	for _, input := range []string{"", "[1; 2", `"open`, "(1, 2", "[1 2]", "1 2", "[|1|"} {
		t.Run(input, func(t *testing.T) {
			if _, err := parseArg(input); err == nil {
				t.Errorf("parseArg(%q) succeeded", input)
			}
		})
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"apply1 fn:succ 41", []string{"apply1", "fn:succ", "41"}, false},
		{"  list  ", []string{"list"}, false},
		{`demo_greet "a b"`, []string{"demo_greet", `"a b"`}, false},
		{"make_struct1 1 2.5 Some \"c\" None", []string{"make_struct1", "1", "2.5", `Some "c"`, "None"}, false},
		{"list_rev [1; 2; 3]", []string{"list_rev", "[1; 2; 3]"}, false},
		{"f (1, [|2.0|])", []string{"f", "(1, [|2.0|])"}, false},
		{"", nil, true},
		{"f [1; 2", nil, true},
		{`f "open`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitArgs(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("splitArgs(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func newTestSession(t *testing.T) *session {
	t.Helper()
	s, err := newSession("", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.close)
	return s
}

func TestSessionCall(t *testing.T) {
	s := newTestSession(t)

	tests := []struct {
		name    string
		fn      string
		args    []string
		want    string
		wantErr string
	}{
		{"apply1", "apply1", []string{"fn:succ", "41"}, "42", ""},
		{"apply3", "apply3", []string{"fn:double", "1"}, "8", ""},
		{"apply1 external", "apply1", []string{"ext:demo_greet", `"bob"`}, `"hello, bob"`, ""},
		{"apply_range", "apply_range", []string{"fn:len", "2", "7"}, "5", ""},
		{"callback raises", "apply1", []string{"fn:fail", "0"}, "", `Failure("fail called")`},
		{"constant constructor", "enum1_is_empty", []string{"0"}, "1", ""},
		{"record", "make_struct1", []string{"1", "2.5", `Some "c"`, "None"}, `0(1, 2.5, 0("c"), 0)`, ""},
		{"direct_slice", "direct_slice", []string{"[|1; 2; 3|]"}, "6", ""},
		{"array_get", "array_get", []string{`[|"a"; "b"|]`, "1"}, `"b"`, ""},
		{"array_get double", "array_get", []string{"[|1.5; 2.5|]", "1"}, "2.5", ""},
		{"array_get out of range", "array_get", []string{"[|1; 2|]", "5"}, "", `Invalid_argument("index out of bounds")`},
		{"deep_clone", "deep_clone", []string{"[1; 2]"}, "0(1, 0(2, 0))", ""},
		{"list_rev", "list_rev", []string{"[1; 2; 3]"}, "0(3, 0(2, 0(1, 0)))", ""},
		{"host method", "demo_mean", []string{"[|1.5; 2.5|]"}, "2", ""},
		{"host error", "demo_lookup", []string{`[|"a"; "b"|]`, `"c"`}, "", "Not_found"},
		{"host invalid argument", "demo_mean", []string{"[||]"}, "", "Invalid_argument"},
		{"panic", "panic_boom", nil, "", "boom"},
		{"bigarray", "apply1", []string{"ext:floats_make", "4"}, "<bigarray 4>", ""},
		{"custom block", "apply1", []string{"ext:counter_new", "3"}, "<custom mlrun.counter>", ""},
		{"arity", "apply1", []string{"fn:succ"}, "", "takes 2 arguments"},
		{"unknown external", "nope", nil, "", "unknown external"},
		{"unknown closure", "apply1", []string{"fn:nope", "1"}, "", "unknown closure"},
		{"bad literal", "apply1", []string{"fn:succ", "[1"}, "", "argument 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.call(tt.fn, tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("call(%s) error = %v, want %q", tt.fn, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("call(%s) error: %v", tt.fn, err)
			}
			if got != tt.want {
				t.Errorf("call(%s) = %s, want %s", tt.fn, got, tt.want)
			}
		})
	}
}

func TestSessionReusesClosureCode(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 3; i++ {
		if got, err := s.call("apply1", []string{"fn:succ", "1"}); err != nil || got != "2" {
			t.Fatalf("call %d: apply1 fn:succ 1 = %q, %v", i, got, err)
		}
	}
	if len(s.codes) != 1 {
		t.Errorf("defined codes = %v, want only succ", s.codes)
	}
}

func TestFuncsListsExternals(t *testing.T) {
	s := newTestSession(t)
	arity := make(map[string]int)
	for _, f := range s.funcs() {
		arity[f.name] = f.arity
	}
	want := map[string]int{"apply1": 2, "apply_range": 3, "enum1_empty": 0, "make_struct1": 4, "demo_greet": 1, "panic_boom": 0}
	for name, n := range want {
		if got, ok := arity[name]; !ok || got != n {
			t.Errorf("%s arity = %d (listed %v), want %d", name, got, ok, n)
		}
	}
}

// succModule exports succ (x) = x + 2 over raw value words.
var succModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7e, 0x01, 0x7e,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x08, 0x01, 0x04, 's', 'u', 'c', 'c', 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x42, 0x02, 0x7c, 0x0b,
}

func TestSessionWasm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.wasm")
	if err := os.WriteFile(path, succModule, 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := newSession("", path, 16)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.close)

	if got, err := s.call("apply3", []string{"wasm:succ", "39"}); err != nil || got != "42" {
		t.Errorf("apply3 wasm:succ 39 = %q, %v", got, err)
	}
	if _, err := s.call("apply1", []string{"wasm:missing", "1"}); err == nil || !strings.Contains(err.Error(), "unknown wasm export") {
		t.Errorf("missing export err = %v", err)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"call", []string{"--color", "off", "call", "apply1", "fn:succ", "41"}, "42\n", false},
		{"list", []string{"--color", "off", "list"}, "  apply1/2\n", false},
		{"raises", []string{"--color", "off", "call", "panic_boom"}, "", true},
		{"bad color", []string{"--color", "sometimes", "list"}, "", true},
		{"unknown output", []string{"--color", "off", "call", "--output", "yaml", "apply1", "fn:succ", "1"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&errOut)
			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %q does not contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestSession(t)

	tests := []struct {
		name string
		fn   string
		args []string
		want snapshot
	}{
		{"int", "apply1", []string{"fn:succ", "1"}, snapshot{Kind: "int", Int: 2}},
		{"list", "deep_clone", []string{`[1; "a"]`}, snapshot{Kind: "block", Fields: []snapshot{
			{Kind: "int", Int: 1},
			{Kind: "block", Fields: []snapshot{{Kind: "string", Text: "a"}, {Kind: "int"}}},
		}}},
		{"floats", "deep_clone", []string{"[|0.5; 2.0|]"}, snapshot{Kind: "floats", Floats: []float64{0.5, 2}}},
		{"constructor tag", "enum1_first", []string{"7"}, snapshot{Kind: "block", Fields: []snapshot{{Kind: "int", Int: 7}}}},
		{"second constructor", "enum1_make_second", []string{`"x"`}, snapshot{Kind: "block", Tag: 1, Fields: []snapshot{
			{Kind: "block", Fields: []snapshot{{Kind: "string", Text: "x"}}},
		}}},
		{"custom", "counter_new", []string{"1"}, snapshot{Kind: "custom", Text: "mlrun.counter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := s.apply(tt.fn, tt.args, func(res value.Value) {
				if err := writeSnapshot(&buf, takeSnapshot(s.heap, res, 0)); err != nil {
					t.Fatal(err)
				}
			})
			if err != nil {
				t.Fatalf("apply(%s) error: %v", tt.fn, err)
			}
			var got snapshot
			if err := msgpack.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("msgpack.Unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReplModel(t *testing.T) {
	m := newReplModel(newTestSession(t))

	run := func(line string) entry {
		t.Helper()
		m.input.SetValue(line)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatalf("enter on %q returned no command", line)
		}
		m.Update(cmd())
		if m.busy {
			t.Fatal("model still busy after result")
		}
		return m.entries[len(m.entries)-1]
	}

	if e := run("apply1 fn:succ 41"); e.failed || e.output != "42" {
		t.Errorf("apply1 entry = %+v, want 42", e)
	}
	if e := run("nope"); !e.failed || !strings.Contains(e.output, "unknown external") {
		t.Errorf("nope entry = %+v, want unknown external", e)
	}
	if e := run("list"); e.failed || !strings.Contains(e.output, "apply1") {
		t.Errorf("list entry = %+v", e)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.input.Value(); got != "list" {
		t.Errorf("up recalls %q, want list", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.input.Value(); got != "nope" {
		t.Errorf("second up recalls %q, want nope", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.input.Value(); got != "" {
		t.Errorf("down past the end leaves %q", got)
	}

	m.input.SetValue("apply_r")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.input.Value(); got != "apply_range " {
		t.Errorf("tab completes to %q, want %q", got, "apply_range ")
	}
	m.input.SetValue("apply")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.input.Value(); got != "apply" {
		t.Errorf("ambiguous prefix completed to %q", got)
	}

	if !strings.Contains(m.View(), "42") {
		t.Error("view does not show the earlier result")
	}
}
