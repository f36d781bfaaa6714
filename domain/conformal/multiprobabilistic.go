package conformal

// MultiProbabilisticClassification augments a conformal result with a
// calibrated probability interval for its point prediction being correct.
type MultiProbabilisticClassification struct {
	Classification
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns Upper - Lower.
func (m MultiProbabilisticClassification) Width() float64 {
	return m.Upper - m.Lower
}

// Consistent reports whether the bounds are ordered.
func (m MultiProbabilisticClassification) Consistent() bool {
	return m.Lower <= m.Upper
}
