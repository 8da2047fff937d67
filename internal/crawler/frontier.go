package crawler

import "sync"

// Frontier owns the page budget and the set of visited addresses. An address
// is inserted the instant it is admitted, before navigation is attempted, so
// a failed page is never retried as a new one.
type Frontier struct {
	mu      sync.Mutex
	budget  int
	visited map[string]struct{}
}

// NewFrontier returns a Frontier enforcing the given page budget.
func NewFrontier(budget int) *Frontier {
	return &Frontier{
		budget:  budget,
		visited: make(map[string]struct{}),
	}
}

// Admit decides whether crawling may proceed down addr. It returns false when
// the budget is spent or the address was already seen; otherwise it inserts
// the address and returns true. Check and insert happen under one lock so two
// concurrent discoveries of the same link can never both be admitted.
func (f *Frontier) Admit(addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.visited) >= f.budget {
		return false
	}
	if _, seen := f.visited[addr]; seen {
		return false
	}
	f.visited[addr] = struct{}{}
	return true
}

// WouldAdmit is a non-binding peek used before opening a tab for a discovered
// link. The binding decision is Admit inside the recursive call.
func (f *Frontier) WouldAdmit(addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.visited) >= f.budget {
		return false
	}
	_, seen := f.visited[addr]
	return !seen
}

// VisitedCount returns the number of admitted addresses.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
