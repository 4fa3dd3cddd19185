package calibration

// DefaultCoffeeComingRatio is the fraction of rated capacity above which the
// machine is considered to be brewing.
const DefaultCoffeeComingRatio = 1.2

// State is the classified machine state for one reading.
type State struct {
	NCups        float64
	IsCoffee     bool
	CoffeeComing bool
	TrayEmpty    bool
}

// Classify derives machine state from an unclamped estimate. An undefined
// estimate means the tray is missing and counts as zero cups. The brewing
// check runs before nCups is clamped to [0, maxNCups].
func Classify(nCups float64, defined bool, maxNCups, comingRatio float64) State {
	if comingRatio <= 0 {
		comingRatio = DefaultCoffeeComingRatio
	}
	st := State{TrayEmpty: !defined}
	if !defined {
		nCups = 0
	}
	st.IsCoffee = nCups > 0
	st.CoffeeComing = maxNCups > 0 && nCups/maxNCups > comingRatio
	st.NCups = clamp(nCups, 0, maxNCups)
	return st
}

// Classify runs the estimate and classification for raw in one step.
func (m Model) Classify(raw, comingRatio float64) State {
	n, ok := m.EstimateCups(raw)
	return Classify(n, ok, m.MaxNCups, comingRatio)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}
