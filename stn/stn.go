// Package stn implements the planner's Simple Temporal Network: a set of
// time points, pairwise distance constraints over a lattice that includes
// ±∞, incremental tightening via pairwise intersection, and a consistency
// check over the resulting distance graph.
package stn

import (
	"fmt"
	"math"

	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/planerrors"
)

// Bound is one endpoint of a constraint interval: a finite integer STN unit
// count, or one of the two infinite sentinels below.
type Bound int64

const (
	// NegInf is the lattice's negative infinity.
	NegInf Bound = math.MinInt64
	// PosInf is the lattice's positive infinity.
	PosInf Bound = math.MaxInt64
)

// Neg returns the lattice negation of b: -(+∞) = -∞, -(-∞) = +∞, else -b.
func Neg(b Bound) Bound {
	switch b {
	case PosInf:
		return NegInf
	case NegInf:
		return PosInf
	default:
		return -b
	}
}

func maxBound(a, b Bound) Bound {
	if a > b {
		return a
	}
	return b
}

func minBound(a, b Bound) Bound {
	if a < b {
		return a
	}
	return b
}

// Interval is a closed bound pair [Lo, Hi]. A well-formed Interval has
// Lo <= Hi under the lattice ordering (-∞ <= any <= +∞).
type Interval struct {
	Lo, Hi Bound
}

// Valid reports whether the interval's bounds are correctly ordered.
func (iv Interval) Valid() bool {
	return iv.Lo <= iv.Hi
}

// TimePoint is a time-point identifier.
type TimePoint string

// EpochPoint is the reserved reference time point that absolute-time
// interval endpoints are anchored to.
const EpochPoint TimePoint = "epoch"

// Unit names the physical unit one STN distance unit represents.
type Unit int

const (
	Second Unit = iota
	Millisecond
	Microsecond
)

type pairKey struct {
	u, v TimePoint
}

// STN is one Simple Temporal Network: a point set, a symmetric constraint
// map of the explicitly added (and pairwise-intersected) edges, a derived
// all-pairs shortest-distance closure over that constraint graph, and a
// consistency flag.
type STN struct {
	unit        Unit
	lod         int
	points      map[TimePoint]struct{}
	constraints map[pairKey]Interval
	dist        map[pairKey]Bound
	consistent  bool
}

// New constructs an empty, consistent STN using the given unit and
// level-of-detail resolution (an implementation-defined rounding applied by
// Convert; 1 means no rounding beyond the unit conversion itself).
func New(unit Unit, lod int) *STN {
	if lod <= 0 {
		lod = 1
	}
	return &STN{
		unit:        unit,
		lod:         lod,
		points:      make(map[TimePoint]struct{}),
		constraints: make(map[pairKey]Interval),
		dist:        make(map[pairKey]Bound),
		consistent:  true,
	}
}

// Consistent reports the STN's current consistency flag.
func (s *STN) Consistent() bool { return s.consistent }

// Unit returns the STN's configured time unit.
func (s *STN) Unit() Unit { return s.unit }

// Points returns every time point currently in the network, in no
// particular order.
func (s *STN) Points() []TimePoint {
	out := make([]TimePoint, 0, len(s.points))
	for p := range s.points {
		out = append(out, p)
	}
	return out
}

// AddTimePoint adds u to the point set. It is idempotent and introduces no
// constraint — the zero-distance self-constraint is implicit.
func (s *STN) AddTimePoint(u TimePoint) {
	s.points[u] = struct{}{}
}

// Convert maps a microsecond count to STN distance units under unit and
// lod: the raw unit conversion is performed first (integer division), then
// the result is truncated toward zero to a multiple of lod in the target
// unit.
func Convert(micros int64, unit Unit, lod int) int64 {
	if lod <= 0 {
		lod = 1
	}
	var perUnit int64
	switch unit {
	case Second:
		perUnit = 1_000_000
	case Millisecond:
		perUnit = 1_000
	default:
		perUnit = 1
	}
	v := micros / perUnit
	if lod > 1 {
		v = (v / int64(lod)) * int64(lod)
	}
	return v
}

// Tighten is the pure binary intersection operation: given two intervals it
// returns [max(lo1,lo2), min(hi1,hi2)] and ok=true, or ok=false if that
// range is empty (a "cannot-tighten" outcome).
func Tighten(e, t Interval) (Interval, bool) {
	result := Interval{Lo: maxBound(e.Lo, t.Lo), Hi: minBound(e.Hi, t.Hi)}
	return result, result.Valid()
}

// AddConstraint adds (u, v, [lo, hi]) and its lattice-negated reverse
// (v, u, [-hi, -lo]), per spec.md §4.7. It validates lo <= hi, registers
// both points, and intersects with any existing interval at each of the two
// keys. It then re-derives the all-pairs shortest-distance closure over the
// whole constraint graph (see propagate), so a constraint between two points
// that only share an intermediate point (e.g. (a,b) and (b,c) without a
// direct (a,c) edge) is composed into a derived bound the moment it's
// implied, and a cycle of constraints that is only inconsistent through a
// third point (not at any single pair) is caught immediately rather than
// passing the pairwise check silently. The flag is the conjunction of the
// prior consistency flag, the outcome of both direct updates, and the
// closure's own diagonal check.
func (s *STN) AddConstraint(u, v TimePoint, iv Interval) error {
	if !iv.Valid() {
		return planerrors.Newf(planerrors.STNInconsistent, "constraint (%s,%s) has lo %d > hi %d", u, v, iv.Lo, iv.Hi)
	}
	s.AddTimePoint(u)
	s.AddTimePoint(v)

	forwardOK := s.updateConstraint(pairKey{u, v}, iv)
	reverseOK := s.updateConstraint(pairKey{v, u}, Interval{Lo: Neg(iv.Hi), Hi: Neg(iv.Lo)})
	closureOK := s.propagate()
	s.consistent = s.consistent && forwardOK && reverseOK && closureOK
	return nil
}

// updateConstraint inserts iv at key if absent, else intersects it with the
// existing interval. It returns false (leaving the stored interval
// untouched) if intersection would be empty.
func (s *STN) updateConstraint(key pairKey, iv Interval) bool {
	existing, ok := s.constraints[key]
	if !ok {
		s.constraints[key] = iv
		return true
	}
	tightened, ok := Tighten(existing, iv)
	if !ok {
		return false
	}
	s.constraints[key] = tightened
	return true
}

// RemoveConstraint deletes both the forward and reverse keys atomically. If
// neither exists the STN is left unchanged.
func (s *STN) RemoveConstraint(u, v TimePoint) {
	delete(s.constraints, pairKey{u, v})
	delete(s.constraints, pairKey{v, u})
	s.propagate()
}

// Constraint returns the tightest known interval for (u, v): the directly
// added constraint intersected with every bound the rest of the network
// implies transitively (e.g. (a,c) derived from (a,b) and (b,c) even with no
// direct (a,c) edge ever added). Returns false only when the network
// carries no bound at all between u and v, direct or derived.
func (s *STN) Constraint(u, v TimePoint) (Interval, bool) {
	hi, hiOK := s.dist[pairKey{u, v}]
	lo, loOK := s.dist[pairKey{v, u}]
	if !hiOK {
		hi = PosInf
	}
	if !loOK {
		lo = PosInf
	}
	iv := Interval{Lo: Neg(lo), Hi: hi}
	if iv.Lo == NegInf && iv.Hi == PosInf {
		return Interval{}, false
	}
	return iv, true
}

// propagate recomputes the all-pairs shortest-distance closure from the
// current explicit constraint set via the Floyd-Warshall algorithm over the
// bounded distance graph: pairKey{u,v}'s stored Hi is the edge weight u->v
// (v can be at most Hi units after u). A finite self-distance below zero
// after closure means some point would have to strictly precede itself —
// the standard STN inconsistency condition, and the only way a cycle that
// is fine at every single pair can still be infeasible overall (spec.md's
// S5 scenario: (a,b,[5,5]), (b,c,[5,5]), (a,c,[3,3]) passes every pairwise
// check but implies a-c's path bound of 10, contradicting the direct 3).
// It updates s.dist and returns whether the closure is free of negative
// self-distances.
func (s *STN) propagate() bool {
	pts := make([]TimePoint, 0, len(s.points))
	for p := range s.points {
		pts = append(pts, p)
	}

	dist := make(map[pairKey]Bound, len(s.constraints))
	for k, iv := range s.constraints {
		if iv.Hi == PosInf {
			continue
		}
		dist[k] = iv.Hi
	}
	at := func(u, v TimePoint) Bound {
		if d, ok := dist[pairKey{u, v}]; ok {
			return d
		}
		if u == v {
			return 0
		}
		return PosInf
	}

	for _, k := range pts {
		for _, i := range pts {
			dik := at(i, k)
			if dik == PosInf {
				continue
			}
			for _, j := range pts {
				dkj := at(k, j)
				if dkj == PosInf {
					continue
				}
				if sum := dik + dkj; sum < at(i, j) {
					dist[pairKey{i, j}] = sum
				}
			}
		}
	}

	s.dist = dist

	consistent := true
	for _, p := range pts {
		if at(p, p) < 0 {
			consistent = false
			break
		}
	}
	return consistent
}

// StartPoint and EndPoint return the two time points AddInterval creates
// for a named interval id.
func StartPoint(id string) TimePoint { return TimePoint(id + "_start") }
func EndPoint(id string) TimePoint   { return TimePoint(id + "_end") }

// AddInterval creates the named interval id's two time points, adds the
// duration constraint between them, and anchors whichever endpoints carry
// an absolute datetime to EpochPoint via an equality constraint. When both
// start and end are given, the duration is computed as
// micros(end) - micros(start), clamped to a minimum of 1 STN unit;
// otherwise the supplied ISO-8601 duration is used.
func (s *STN) AddInterval(id string, start, end *string, duration string) error {
	startPoint, endPoint := StartPoint(id), EndPoint(id)

	durationUnits, err := s.intervalDurationUnits(start, end, duration)
	if err != nil {
		return err
	}
	if err := s.AddConstraint(startPoint, endPoint, Interval{Lo: Bound(durationUnits), Hi: Bound(durationUnits)}); err != nil {
		return err
	}

	if start != nil {
		if err := s.anchorToEpoch(startPoint, *start); err != nil {
			return err
		}
	}
	if end != nil {
		if err := s.anchorToEpoch(endPoint, *end); err != nil {
			return err
		}
	}
	return nil
}

func (s *STN) intervalDurationUnits(start, end *string, duration string) (int64, error) {
	if start != nil && end != nil {
		startMicros, err := isotime.ToMicrosAbs(*start)
		if err != nil {
			return 0, err
		}
		endMicros, err := isotime.ToMicrosAbs(*end)
		if err != nil {
			return 0, err
		}
		units := Convert(int64(endMicros-startMicros), s.unit, s.lod)
		if units < 1 {
			units = 1
		}
		return units, nil
	}
	durMicros, err := isotime.ToMicrosDur(duration)
	if err != nil {
		return 0, err
	}
	units := Convert(int64(durMicros), s.unit, s.lod)
	return units, nil
}

func (s *STN) anchorToEpoch(point TimePoint, iso string) error {
	micros, err := isotime.ToMicrosAbs(iso)
	if err != nil {
		return err
	}
	offset := Bound(Convert(int64(micros), s.unit, s.lod))
	return s.AddConstraint(EpochPoint, point, Interval{Lo: offset, Hi: offset})
}

// CheckConsistency recomputes the all-pairs shortest-distance closure over
// every constraint added so far (see propagate) and reports whether it is
// free of negative self-distances — the standard STN consistency check,
// which subsumes the simpler per-edge and 2-cycle checks a pairwise
// comparison would catch, and additionally catches the longer cycles a
// pairwise comparison misses (spec.md §4.7, scenario S5). It updates and
// returns the STN's consistent flag.
func (s *STN) CheckConsistency() bool {
	s.consistent = s.propagate()
	return s.consistent
}

// String renders a Bound for diagnostics, rendering the infinities
// symbolically rather than as their sentinel integer values.
func (b Bound) String() string {
	switch b {
	case PosInf:
		return "+inf"
	case NegInf:
		return "-inf"
	default:
		return fmt.Sprintf("%d", int64(b))
	}
}
