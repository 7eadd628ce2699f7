package tier

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LocationKind distinguishes where an object's bytes physically live.
type LocationKind string

const (
	LocationOnPrem       LocationKind = "on-prem"
	LocationPrivateCloud LocationKind = "private-cloud"
	LocationPublicCloud  LocationKind = "public-cloud"
)

// Location is a resolved placement target. Public cloud locations carry a
// provider and region; on-prem and private cloud carry neither.
type Location struct {
	Kind     LocationKind
	Provider string
	Region   string
}

var providerRegions = map[string][]string{
	"aws":   {"us-east-1", "us-west-2", "eu-west-1"},
	"azure": {"eastus", "westus2", "westeurope"},
	"gcp":   {"us-central1", "us-east1", "europe-west1"},
}

var titleCaser = cases.Title(language.English)

// ResolveLocation maps a target tier (and optional provider) to a concrete
// placement location. Providers are validated at config load; an empty or
// unknown provider falls back to AWS.
func ResolveLocation(t Tier, provider string) Location {
	switch t {
	case Warm:
		return Location{Kind: LocationPrivateCloud}
	case Cold:
		provider = strings.ToLower(strings.TrimSpace(provider))
		regions, ok := providerRegions[provider]
		if !ok {
			provider = "aws"
			regions = providerRegions[provider]
		}
		return Location{Kind: LocationPublicCloud, Provider: provider, Region: regions[0]}
	default:
		return Location{Kind: LocationOnPrem}
	}
}

// KnownProvider reports whether the provider name maps to a supported cloud.
func KnownProvider(provider string) bool {
	_, ok := providerRegions[strings.ToLower(strings.TrimSpace(provider))]
	return ok
}

// ParseLocation converts the persisted string form back into a Location.
func ParseLocation(value string) (Location, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case string(LocationOnPrem):
		return Location{Kind: LocationOnPrem}, nil
	case string(LocationPrivateCloud):
		return Location{Kind: LocationPrivateCloud}, nil
	}
	// public cloud form: "public-cloud/<provider>/<region>"
	parts := strings.Split(trimmed, "/")
	if len(parts) == 3 && parts[0] == string(LocationPublicCloud) {
		if _, ok := providerRegions[parts[1]]; !ok {
			return Location{}, fmt.Errorf("unknown cloud provider %q", parts[1])
		}
		return Location{Kind: LocationPublicCloud, Provider: parts[1], Region: parts[2]}, nil
	}
	return Location{}, fmt.Errorf("unrecognized location %q", value)
}

// String returns the canonical persisted form.
func (l Location) String() string {
	if l.Kind == LocationPublicCloud {
		return fmt.Sprintf("%s/%s/%s", l.Kind, l.Provider, l.Region)
	}
	return string(l.Kind)
}

// DisplayName returns the human-facing label used in CLI and notifications.
func (l Location) DisplayName() string {
	switch l.Kind {
	case LocationOnPrem:
		return "On-Premise Data Center"
	case LocationPrivateCloud:
		return "Private Cloud Infrastructure"
	case LocationPublicCloud:
		provider := titleCaser.String(l.Provider)
		switch l.Provider {
		case "aws":
			provider = "AWS"
		case "gcp":
			provider = "GCP"
		}
		return fmt.Sprintf("%s (%s)", provider, l.Region)
	default:
		return string(l.Kind)
	}
}
