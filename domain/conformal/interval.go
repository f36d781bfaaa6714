package conformal

// Interval is a symmetric regression prediction interval around a point prediction.
type Interval struct {
	Point   float64 `json:"point"`
	Epsilon float64 `json:"epsilon"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
}

// NewInterval builds [point-epsilon, point+epsilon].
func NewInterval(point, epsilon float64) Interval {
	return Interval{
		Point:   point,
		Epsilon: epsilon,
		Lower:   point - epsilon,
		Upper:   point + epsilon,
	}
}

// Contains reports whether y lies inside the closed interval.
func (i Interval) Contains(y float64) bool {
	return y >= i.Lower && y <= i.Upper
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}
