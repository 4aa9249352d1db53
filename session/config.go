package session

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
)

// Source identifies the logical origin of an upload request.
type Source string

// Known upload sources. The enumeration is closed: anything else is rejected
// during destination resolution.
const (
	SourceWeb    Source = "web"
	SourceMobile Source = "mobile"
	SourceAPI    Source = "api"
	SourceIngest Source = "ingest"
)

// Sources lists every known source.
func Sources() []Source {
	return []Source{SourceWeb, SourceMobile, SourceAPI, SourceIngest}
}

// ParseSource validates a raw source value.
func ParseSource(raw string) (Source, error) {
	for _, s := range Sources() {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown source %q", ErrInput, raw)
}

// Tier selects the performance tier of the destination.
type Tier string

// Supported destination tiers.
const (
	TierStandard    Tier = "standard"
	TierAccelerated Tier = "accelerated"
)

// Tiers lists every supported tier.
func Tiers() []Tier {
	return []Tier{TierStandard, TierAccelerated}
}

// ParseTier validates a raw tier value.
func ParseTier(raw string) (Tier, error) {
	for _, t := range Tiers() {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown tier %q", ErrInput, raw)
}

// Destination is the resolved storage location for a (source, tier) pair.
// It is computed once per upload request and never mutated.
type Destination struct {
	Bucket string
	Region string
	// PublicBaseURL, when set, is used to build the access URL of completed
	// objects instead of the location reported by storage.
	PublicBaseURL string
}

type routeKey struct {
	source Source
	tier   Tier
}

// RoutingTable is the immutable mapping from (source, tier) to a destination.
// It is validated eagerly at construction so a missing mapping fails at
// startup rather than at first use.
type RoutingTable struct {
	routes map[routeKey]Destination
}

// NewRoutingTable builds a routing table from the provided mapping.
func NewRoutingTable(routes map[Source]map[Tier]Destination) (*RoutingTable, error) {
	table := map[routeKey]Destination{}
	for source, tiers := range routes {
		if _, err := ParseSource(string(source)); err != nil {
			return nil, err
		}
		for tier, dest := range tiers {
			if _, err := ParseTier(string(tier)); err != nil {
				return nil, err
			}
			if dest.Bucket == "" {
				return nil, fmt.Errorf("%w: empty bucket for %s/%s", ErrInput, source, tier)
			}
			if dest.Region == "" {
				return nil, fmt.Errorf("%w: empty region for %s/%s", ErrInput, source, tier)
			}
			table[routeKey{source: source, tier: tier}] = dest
		}
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: no destinations configured", ErrInput)
	}
	return &RoutingTable{routes: table}, nil
}

// Resolve returns the destination for the given source and tier. Unknown
// source, unknown tier or an unconfigured pair are all rejected before any
// session is opened.
func (t *RoutingTable) Resolve(source Source, tier Tier) (Destination, error) {
	if _, err := ParseSource(string(source)); err != nil {
		return Destination{}, err
	}
	if _, err := ParseTier(string(tier)); err != nil {
		return Destination{}, err
	}
	dest, ok := t.routes[routeKey{source: source, tier: tier}]
	if !ok {
		return Destination{}, fmt.Errorf("%w: no destination configured for %s/%s", ErrInput, source, tier)
	}
	return dest, nil
}

// RoutingTableFromEnv reads destination mappings for the given sources from
// the environment. Every (source, tier) pair must be fully configured:
//
//	SHUTTLE_<SOURCE>_<TIER>_BUCKET
//	SHUTTLE_<SOURCE>_<TIER>_REGION
//	SHUTTLE_<SOURCE>_<TIER>_PUBLIC_URL (optional)
func RoutingTableFromEnv(envRepo env.Repository, sources []Source) (*RoutingTable, error) {
	routes := map[Source]map[Tier]Destination{}
	for _, source := range sources {
		routes[source] = map[Tier]Destination{}
		for _, tier := range Tiers() {
			prefix := fmt.Sprintf("SHUTTLE_%s_%s", strings.ToUpper(string(source)), strings.ToUpper(string(tier)))
			bucket := envRepo.Get(prefix + "_BUCKET")
			if bucket == "" {
				return nil, fmt.Errorf("%w: the variable '%s_BUCKET' is not defined", ErrInput, prefix)
			}
			region := envRepo.Get(prefix + "_REGION")
			if region == "" {
				return nil, fmt.Errorf("%w: the variable '%s_REGION' is not defined", ErrInput, prefix)
			}
			routes[source][tier] = Destination{
				Bucket:        bucket,
				Region:        region,
				PublicBaseURL: envRepo.Get(prefix + "_PUBLIC_URL"),
			}
		}
	}
	return NewRoutingTable(routes)
}
