package detector

import "testing"

func TestRecommendWorkgroup(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantWGX uint32
	}{
		{"desktop", Limits{MaxComputeWorkgroupSizeX: 1024, MaxComputeInvocationsPerWorkgroup: 1024}, 256},
		{"mobile", Limits{MaxComputeWorkgroupSizeX: 128, MaxComputeInvocationsPerWorkgroup: 256}, 128},
		{"invocation bound", Limits{MaxComputeWorkgroupSizeX: 1024, MaxComputeInvocationsPerWorkgroup: 64}, 64},
		{"degenerate", Limits{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.limits, "").WorkgroupX
			if got != tt.wantWGX {
				t.Errorf("WorkgroupX = %d, want %d", got, tt.wantWGX)
			}
		})
	}
}

func TestRecommendBudget(t *testing.T) {
	tests := []struct {
		env  string
		want uint64
	}{
		{"", DefaultBudgetBytes},
		{"64", 64 << 20},
		{" 2048 ", 2048 << 20},
		{"0", DefaultBudgetBytes},
		{"-5", DefaultBudgetBytes},
		{"lots", DefaultBudgetBytes},
	}
	for _, tt := range tests {
		if got := Recommend(Limits{}, tt.env).BudgetBytes; got != tt.want {
			t.Errorf("budget(%q) = %d, want %d", tt.env, got, tt.want)
		}
	}
}

func TestRecommendMaxElements(t *testing.T) {
	l := Limits{MaxStorageBufferBindingSize: 128 << 20, MaxBufferSize: 256 << 20}
	if got := Recommend(l, "").MaxElements; got != 32<<20 {
		t.Errorf("MaxElements = %d, want %d", got, 32<<20)
	}
	l.MaxBufferSize = 64 << 20
	if got := Recommend(l, "").MaxElements; got != 16<<20 {
		t.Errorf("MaxElements = %d, want %d", got, 16<<20)
	}
}

func TestReportJSON(t *testing.T) {
	r := &Report{Name: "test", Recommended: Recommend(Limits{}, "")}
	s, err := r.JSON()
	if err != nil {
		t.Fatal(err)
	}
	if len(s) == 0 || s[0] != '{' {
		t.Errorf("unexpected JSON %q", s)
	}
}
