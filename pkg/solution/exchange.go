package solution

// Exchange represents swapping the machines of two processes: P1 moves
// from M1 to M2, and P2 moves from M2 to M1.
type Exchange struct {
	M1 int
	P1 int
	M2 int
	P2 int
}

// Reverse returns the exchange that undoes e.
func (e Exchange) Reverse() Exchange { return Exchange{M1: e.M1, P1: e.P2, M2: e.M2, P2: e.P1} }
