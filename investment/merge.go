// investment/merge.go
package investment

import "auto_zonky_go/remote"

// Merge returns the union of a and b: the elements of a in their original order,
// followed by the elements of b not value-equal to anything already included, in b's
// order. Each investment appears once. When either input is empty the other is
// returned as is. Neither input is modified.
func Merge(a, b []remote.Investment) []remote.Investment {
	if len(b) == 0 {
		return append(make([]remote.Investment, 0, len(a)), a...)
	}
	if len(a) == 0 {
		return append(make([]remote.Investment, 0, len(b)), b...)
	}
	out := make([]remote.Investment, 0, len(a)+len(b))
	for _, list := range [][]remote.Investment{a, b} {
		for _, candidate := range list {
			if !containsInvestment(out, candidate) {
				out = append(out, candidate)
			}
		}
	}
	return out
}

// Ledgers are small (one entry per loan) so a linear scan is fine; decimal amounts
// can't be used as map keys without normalizing them first anyway.
func containsInvestment(list []remote.Investment, inv remote.Investment) bool {
	for _, existing := range list {
		if existing.Equal(inv) {
			return true
		}
	}
	return false
}
