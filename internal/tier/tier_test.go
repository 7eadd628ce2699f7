package tier_test

import (
	"testing"

	"strata/internal/tier"
)

func TestParseNormalizesInput(t *testing.T) {
	cases := []struct {
		input string
		want  tier.Tier
	}{
		{"hot", tier.Hot},
		{" Warm ", tier.Warm},
		{"COLD", tier.Cold},
	}
	for _, tc := range cases {
		got, err := tier.Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseRejectsUnknownTier(t *testing.T) {
	for _, input := range []string{"", "lukewarm", "glacier"} {
		if _, err := tier.Parse(input); err == nil {
			t.Fatalf("Parse(%q) succeeded, expected error", input)
		}
	}
}

func TestDistance(t *testing.T) {
	if d := tier.Hot.Distance(tier.Hot); d != 0 {
		t.Fatalf("Distance(hot, hot) = %d, want 0", d)
	}
	if d := tier.Hot.Distance(tier.Warm); d != 1 {
		t.Fatalf("Distance(hot, warm) = %d, want 1", d)
	}
	if d := tier.Cold.Distance(tier.Hot); d != 2 {
		t.Fatalf("Distance(cold, hot) = %d, want 2", d)
	}
}

func TestResolveLocationPerTier(t *testing.T) {
	if loc := tier.ResolveLocation(tier.Hot, ""); loc.Kind != tier.LocationOnPrem {
		t.Fatalf("ResolveLocation(hot) = %+v", loc)
	}
	if loc := tier.ResolveLocation(tier.Warm, ""); loc.Kind != tier.LocationPrivateCloud {
		t.Fatalf("ResolveLocation(warm) = %+v", loc)
	}
	loc := tier.ResolveLocation(tier.Cold, "gcp")
	if loc.Kind != tier.LocationPublicCloud || loc.Provider != "gcp" || loc.Region == "" {
		t.Fatalf("unexpected cold location: %+v", loc)
	}
}

func TestResolveLocationFallsBackToAWS(t *testing.T) {
	for _, provider := range []string{"", "oraclecloud"} {
		loc := tier.ResolveLocation(tier.Cold, provider)
		if loc.Provider != "aws" {
			t.Fatalf("ResolveLocation(cold, %q).Provider = %q, want aws", provider, loc.Provider)
		}
	}
	if tier.KnownProvider("oraclecloud") {
		t.Fatal("oraclecloud should not be a known provider")
	}
	if !tier.KnownProvider("Azure") {
		t.Fatal("azure should be a known provider")
	}
}

func TestLocationRoundTrip(t *testing.T) {
	for _, input := range []string{"on-prem", "private-cloud", "public-cloud/gcp/us-central1"} {
		loc, err := tier.ParseLocation(input)
		if err != nil {
			t.Fatalf("ParseLocation(%q) returned error: %v", input, err)
		}
		if loc.String() != input {
			t.Fatalf("round trip %q -> %q", input, loc.String())
		}
	}
	if _, err := tier.ParseLocation("floppy-disk"); err == nil {
		t.Fatal("expected error for unrecognized location")
	}
}

func TestTableDefaults(t *testing.T) {
	tb := tier.DefaultTable()
	if cost := tb.MonthlyCost(tier.Hot, 50); cost < 1.149 || cost > 1.151 {
		t.Fatalf("hot monthly cost for 50GB = %f, want 1.15", cost)
	}
	if lat := tb.LatencyMS(tier.Cold); lat != 200 {
		t.Fatalf("cold latency = %f, want 200", lat)
	}
}

func TestNewTableFillsMissingTiers(t *testing.T) {
	tb := tier.NewTable(map[tier.Tier]tier.Profile{
		tier.Hot: {CostPerGB: 0.05, LatencyMS: 2},
	})
	if got := tb.Profile(tier.Hot).CostPerGB; got != 0.05 {
		t.Fatalf("hot cost = %f, want override 0.05", got)
	}
	if got := tb.Profile(tier.Warm).CostPerGB; got != 0.012 {
		t.Fatalf("warm cost = %f, want default 0.012", got)
	}
}
