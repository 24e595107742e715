package room

import "context"

// DefaultLVTRate is the documented fallback when governance is unreachable.
const DefaultLVTRate = 0.50

// GovernanceService is the consumed governance collaborator. The engine never
// fails a computation when it is unreachable; it falls back to DefaultLVTRate
// and flags the result as degraded.
type GovernanceService interface {
	// CurrentLVTRate returns the annual land-value-tax rate in [0,1].
	CurrentLVTRate(ctx context.Context) (float64, error)
	// AddFunds credits the city treasury.
	AddFunds(ctx context.Context, amount float64, reason string) error
}

// TransportNetwork is the consumed transport collaborator. The connectivity
// predicate is a black box; on error the engine treats the pair as unreachable
// and flags the result as degraded.
type TransportNetwork interface {
	// EffectiveDistance returns the effective travel distance between two
	// parcels, or reachable=false when no route exists.
	EffectiveDistance(ctx context.Context, a, b Coord) (dist float64, reachable bool, err error)
}

// StaticGovernance is a fixed-rate governance stub used when the real
// governance subsystem is not wired in.
type StaticGovernance struct {
	Rate     float64
	Treasury float64
}

func (s *StaticGovernance) CurrentLVTRate(context.Context) (float64, error) {
	return s.Rate, nil
}

func (s *StaticGovernance) AddFunds(_ context.Context, amount float64, _ string) error {
	s.Treasury += amount
	return nil
}

// GridTransport treats every parcel pair as connected at Chebyshev distance.
// It stands in for the road/transit subsystem's connectivity query.
type GridTransport struct{}

func (GridTransport) EffectiveDistance(_ context.Context, a, b Coord) (float64, bool, error) {
	return float64(Chebyshev(a, b)), true, nil
}
