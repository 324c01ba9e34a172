package contracts

// FailureTally counts consecutive failed provider attempts within one run.
// Any single successful region/category pair resets it. Owned by the run's
// orchestrator and threaded through the primary client; never package-global.
type FailureTally struct {
	consecutive int
}

// Fail records one failed attempt and returns the new consecutive count.
func (t *FailureTally) Fail() int {
	t.consecutive++
	return t.consecutive
}

// Reset clears the counter after a successful attempt.
func (t *FailureTally) Reset() {
	t.consecutive = 0
}

// Consecutive returns the current consecutive-failure count.
func (t *FailureTally) Consecutive() int {
	return t.consecutive
}
