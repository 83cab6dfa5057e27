package stages

import "github.com/retention-intel/server/internal/agent/model"

const (
	highNetWorthBalance    = 100_000
	newToBankTenureMonths  = 12
	serviceRecoveryMinimum = 2
)

// Segment assigns exactly one segment; the first matching rule wins.
func Segment(c model.Customer) model.SegmentResult {
	signals := model.SegmentSignals{
		AvgBalance:    c.AvgBalance,
		TenureMonths:  c.TenureMonths,
		Complaints90d: c.Complaints90d,
	}

	var label model.SegmentLabel
	switch {
	case signals.AvgBalance >= highNetWorthBalance:
		label = model.SegmentHighNetWorth
	case signals.TenureMonths < newToBankTenureMonths:
		label = model.SegmentNewToBank
	case signals.Complaints90d >= serviceRecoveryMinimum:
		label = model.SegmentServiceRecovery
	default:
		label = model.SegmentMassAffluent
	}
	return model.SegmentResult{Label: label, Signals: signals}
}
