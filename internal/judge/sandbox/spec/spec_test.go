package spec

import (
	"testing"
	"time"
)

func TestArbiterLimits(t *testing.T) {
	cases := []struct {
		name string
		in   ResourceLimit
		want ResourceLimit
	}{
		{
			name: "both_set",
			in:   ResourceLimit{CPUTime: 2 * time.Second, MemoryMB: 256},
			want: ResourceLimit{CPUTime: 9 * time.Second, MemoryMB: 512},
		},
		{
			name: "time_only",
			in:   ResourceLimit{CPUTime: 1500 * time.Millisecond},
			want: ResourceLimit{CPUTime: 8 * time.Second},
		},
		{
			name: "memory_only",
			in:   ResourceLimit{MemoryMB: 64},
			want: ResourceLimit{MemoryMB: 320},
		},
		{
			name: "unset",
			in:   ResourceLimit{},
			want: ResourceLimit{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.ForArbiter(); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestWallLimit(t *testing.T) {
	if got := (ResourceLimit{CPUTime: 2 * time.Second}).WallLimit(); got != 7*time.Second {
		t.Fatalf("expected 7s, got %v", got)
	}
	if got := (ResourceLimit{}).WallLimit(); got != 0 {
		t.Fatalf("expected no wall limit, got %v", got)
	}
}

func TestLimitString(t *testing.T) {
	if got := (ResourceLimit{CPUTime: 2 * time.Second, MemoryMB: 256}).String(); got != "TL = 2.0, ML = 256.0" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (ResourceLimit{}).String(); got != "TL = None, ML = None" {
		t.Fatalf("unexpected %q", got)
	}
	if err := (ResourceLimit{CPUTime: -1}).Validate(); err == nil {
		t.Fatal("negative time limit accepted")
	}
}
