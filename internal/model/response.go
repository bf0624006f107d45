package model

// Response is Claudette's uniform answer shape, regardless of which backend
// produced it.
type Response struct {
	Content      string
	BackendUsed  string
	CostEUR      float64 // 6-decimal precision by convention; see Round6
	LatencyMS    int64
	TokensInput  int
	TokensOutput int
	CacheHit     bool
	Metadata     map[string]any
}

// Round6 rounds a cost value to 6 decimal places, the precision promised for
// Response.CostEUR.
func Round6(v float64) float64 {
	const scale = 1e6
	if v < 0 {
		return 0
	}
	return float64(int64(v*scale+0.5)) / scale
}
