package solver

import "github.com/aclements/go-z3/z3"

// GiveUpAfter makes every satisfiability check of s after the first n
// report that Z3 could not decide.
func GiveUpAfter(s *Session, n int) {
	calls := 0
	s.checkFn = func(bias []z3.Bool) (bool, error) {
		calls++
		if calls > n {
			return false, new(z3.ErrSatUnknown)
		}
		return s.checkWith(bias)
	}
}
