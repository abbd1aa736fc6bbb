package problem

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedInstance is wrapped by every parse failure, so callers can
// distinguish "file does not exist" (an I/O error) from "file exists but
// is not a valid instance" with errors.Is.
var ErrMalformedInstance = errors.New("malformed problem instance")

// ErrTrailingData is returned when tokens remain after the last field the
// grammar defines; the format requires EOF to follow immediately.
var ErrTrailingData = errors.New("trailing data after problem instance")

// tokenReader pulls whitespace-separated unsigned integers off a stream,
// the same flat token grammar the original instance files use.
type tokenReader struct {
	sc  *bufio.Scanner
	err error
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc}
}

func (t *tokenReader) uint32() uint32 {
	if t.err != nil {
		return 0
	}
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			t.err = err
		} else {
			t.err = fmt.Errorf("%w: unexpected end of input", ErrMalformedInstance)
		}
		return 0
	}
	var v uint32
	_, err := fmt.Sscanf(t.sc.Text(), "%d", &v)
	if err != nil {
		t.err = fmt.Errorf("%w: %q is not an unsigned integer", ErrMalformedInstance, t.sc.Text())
		return 0
	}
	return v
}

func (t *tokenReader) int() int { return int(t.uint32()) }

func (t *tokenReader) atEOF() bool {
	if t.err != nil {
		return false
	}
	return !t.sc.Scan()
}

// Parse reads a problem instance from r using the flat token grammar:
//
//	rCount; for each r: transient, wLoad
//	mCount; for each m: neighborhood, location, capacity[rCount], safetyCapacity[rCount], moveCost[mCount]
//	sCount; for each s: spreadMin, depCount, dep[depCount]
//	pCount; for each p: service, requirement[rCount], movementCost
//	bCount; for each b: r1, r2, target, weight
//	wProcessMove, wServiceMove, wMachineMove
//
// and nothing else: trailing tokens are an error.
func Parse(r io.Reader) (*Problem, error) {
	t := newTokenReader(r)

	rCount := t.int()
	p := &Problem{}
	p.Resources = make([]Resource, rCount)
	for i := 0; i < rCount; i++ {
		p.Resources[i] = Resource{
			Transient:      t.uint32() != 0,
			WeightLoadCost: uint64(t.uint32()),
		}
	}

	mCount := t.int()
	p.Machines = make([]Machine, mCount)
	moveCostTable := make([]uint32, mCount*mCount)
	locMax, neighMax := -1, -1
	for i := 0; i < mCount; i++ {
		m := Machine{
			Neighborhood:   t.int(),
			Location:       t.int(),
			Capacity:       make([]uint32, rCount),
			SafetyCapacity: make([]uint32, rCount),
		}
		for r := 0; r < rCount; r++ {
			m.Capacity[r] = t.uint32()
		}
		for r := 0; r < rCount; r++ {
			m.SafetyCapacity[r] = t.uint32()
		}
		for j := 0; j < mCount; j++ {
			moveCostTable[i*mCount+j] = t.uint32()
		}
		p.Machines[i] = m
		if m.Location > locMax {
			locMax = m.Location
		}
		if m.Neighborhood > neighMax {
			neighMax = m.Neighborhood
		}
	}
	p.LocationCount = locMax + 1
	p.NeighborhoodCount = neighMax + 1

	sCount := t.int()
	p.Services = make([]Service, sCount)
	p.DepOut = make([][]int, sCount)
	p.DepIn = make([][]int, sCount)
	for s := 0; s < sCount; s++ {
		p.Services[s] = Service{SpreadMin: t.uint32()}
		depCount := t.int()
		deps := make([]int, depCount)
		for d := 0; d < depCount; d++ {
			deps[d] = t.int()
		}
		p.DepOut[s] = deps
	}
	for s, deps := range p.DepOut {
		for _, d := range deps {
			if d < 0 || d >= sCount {
				return nil, fmt.Errorf("%w: service %d depends on out-of-range service %d", ErrMalformedInstance, s, d)
			}
			p.DepIn[d] = append(p.DepIn[d], s)
		}
	}

	pCount := t.int()
	p.Processes = make([]Process, pCount)
	for i := 0; i < pCount; i++ {
		proc := Process{Service: t.int(), Requirement: make([]uint32, rCount)}
		if proc.Service < 0 || proc.Service >= sCount {
			return nil, fmt.Errorf("%w: process %d references out-of-range service %d", ErrMalformedInstance, i, proc.Service)
		}
		for r := 0; r < rCount; r++ {
			proc.Requirement[r] = t.uint32()
		}
		proc.MovementCost = t.uint32()
		p.Processes[i] = proc
	}

	bCount := t.int()
	p.BalanceTerms = make([]BalanceTerm, bCount)
	for i := 0; i < bCount; i++ {
		p.BalanceTerms[i] = BalanceTerm{
			Resource1: t.int(),
			Resource2: t.int(),
			Target:    t.uint32(),
			Weight:    uint64(t.uint32()),
		}
	}

	p.WeightProcessMove = uint64(t.uint32())
	p.WeightServiceMove = uint64(t.uint32())
	p.WeightMachineMove = uint64(t.uint32())

	if t.err != nil {
		return nil, t.err
	}
	if !t.atEOF() {
		return nil, ErrTrailingData
	}

	p.buildIndices(moveCostTable)
	return p, nil
}
