package herd

// Scheduler gates full rebalances to at most one per delay ticks. It has no
// timer: it is checked when an agent asks for a wander target, so nothing
// runs while nobody is asking.
type Scheduler struct {
	delay uint64
	next  uint64
}

// NewScheduler returns a scheduler that is due on the first tick after 0.
func NewScheduler(delay uint64) *Scheduler {
	return &Scheduler{delay: delay}
}

// Due reports whether a rebalance may run at tick now.
func (s *Scheduler) Due(now uint64) bool {
	return now > s.next
}

// Advance records that a rebalance ran at tick now.
func (s *Scheduler) Advance(now uint64) {
	s.next = now + s.delay
}

// Next returns the tick after which the next rebalance becomes eligible.
func (s *Scheduler) Next() uint64 { return s.next }
