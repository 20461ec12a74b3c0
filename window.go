package ledgergate

// QuotaWindow is a fixed-length recurring call budget.
type QuotaWindow struct {
	PeriodSeconds int64
	PeriodStartTS int64
	PeriodLimit   uint64
	Remaining     uint64
}

// Roll resets the window when it has expired. Any number of fully skipped
// windows collapses into a single reset; there is no retroactive accrual.
// A non-positive period disables rolling entirely.
func (q *QuotaWindow) Roll(now int64) {
	if q.PeriodSeconds <= 0 {
		return
	}

	if now-q.PeriodStartTS >= q.PeriodSeconds {
		q.PeriodStartTS = now
		q.Remaining = q.PeriodLimit
	}
}
