package result

import (
	"encoding/json"
	"testing"
)

func TestVerdictForCheckerCodeIsTotal(t *testing.T) {
	cases := []struct {
		code int
		want Verdict
	}{
		{0, VerdictAC},
		{1, VerdictWA},
		{2, VerdictPE},
		{3, VerdictJE},
		{4, VerdictWA},
		{7, VerdictWA},
		{16, VerdictWA},
		{17, VerdictJE},
		{255, VerdictJE},
		{-1, VerdictJE},
		{-9, VerdictJE},
	}
	for _, tc := range cases {
		if got := VerdictForCheckerCode(tc.code); got != tc.want {
			t.Fatalf("code %d: expected %s, got %s", tc.code, tc.want, got)
		}
	}
	for code := -300; code <= 300; code++ {
		if v := VerdictForCheckerCode(code); !v.Valid() {
			t.Fatalf("code %d mapped outside the vocabulary", code)
		}
	}
}

func TestVerdictNamesAndParsing(t *testing.T) {
	all := "AWPJRTMDO.K"
	for i := 0; i < len(all); i++ {
		v, err := ParseVerdict(all[i : i+1])
		if err != nil {
			t.Fatalf("parse %q: %v", all[i:i+1], err)
		}
		if v.String() != all[i:i+1] {
			t.Fatalf("round trip mismatch for %q", all[i:i+1])
		}
		if v.FullName() == "(none)" {
			t.Fatalf("missing full name for %s", v)
		}
	}
	if _, err := ParseVerdict("X"); err == nil {
		t.Fatal("expected error for unknown verdict")
	}
	if _, err := ParseVerdict("AW"); err == nil {
		t.Fatal("expected error for multi-letter verdict")
	}
	if VerdictDeadlock.FullName() != "Deadlock" {
		t.Fatalf("unexpected name %q", VerdictDeadlock.FullName())
	}
	if VerdictNone.FullName() != "(none)" {
		t.Fatal("zero verdict must have no name")
	}
}

func TestVerdictJSON(t *testing.T) {
	in := TestcaseResult{TestID: "1", RunResult: RunResult{Verdict: VerdictMLE, CPUTime: 0.5, PeakMemoryMB: 300}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out TestcaseResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Verdict != VerdictMLE || out.TestID != "1" {
		t.Fatalf("unexpected decode %+v from %s", out, data)
	}
}

func TestSummarize(t *testing.T) {
	tests := []TestcaseResult{
		SkippedTest("1", ""),
		{TestID: "2", RunResult: RunResult{Verdict: VerdictAC, CPUTime: 0.25, PeakMemoryMB: 12}},
		{TestID: "3", RunResult: RunResult{Verdict: VerdictTLE, CPUTime: 1.01, PeakMemoryMB: 3}},
		{TestID: "4", RunResult: RunResult{Verdict: VerdictWA, CPUTime: 0.1, PeakMemoryMB: 40}},
	}
	s := Summarize(tests)
	if s.Verdict != VerdictTLE || s.FailedTest != 3 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Verdicts != ".ATW" {
		t.Fatalf("unexpected verdict string %q", s.Verdicts)
	}
	if s.MaxTime != 1.01 || s.MaxMemoryMB != 40 {
		t.Fatalf("unexpected maxima %+v", s)
	}

	var many []TestcaseResult
	for i := 0; i < 23; i++ {
		many = append(many, TestcaseResult{RunResult: RunResult{Verdict: VerdictAC}})
	}
	s = Summarize(many)
	if s.Verdict != VerdictAC || s.FailedTest != 23 {
		t.Fatalf("unexpected all-accepted summary %+v", s)
	}
	if s.Verdicts != "AAAAAAAAAA_AAAAAAAAAA_AAA" {
		t.Fatalf("unexpected grouping %q", s.Verdicts)
	}
}
