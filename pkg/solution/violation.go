package solution

// ConflictViolation names a (service, machine) pair where more than one
// process of the service currently sits on the machine.
type ConflictViolation struct {
	Service int
	Machine int
}

// DependencyViolation names a (service, service, neighborhood) triple
// where the dependency s1 -> s2 fails to hold within neighborhood n.
type DependencyViolation struct {
	From, To     int
	Neighborhood int
}
