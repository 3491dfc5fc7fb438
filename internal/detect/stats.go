package detect

import (
	"github.com/montanaflynn/stats"
)

// zScore computes how many population standard deviations x sits from
// the window mean. Short or flat windows score 0.
func zScore(series []float64, x float64) float64 {
	if len(series) < 5 {
		return 0
	}
	stdev, err := stats.StandardDeviationPopulation(series)
	if err != nil || stdev == 0 {
		return 0
	}
	mean, err := stats.Mean(series)
	if err != nil {
		return 0
	}
	return (x - mean) / stdev
}

// trendSlope fits an ordinary least squares line over the series with
// the sample index as x and returns its slope per interval.
func trendSlope(series []float64) float64 {
	if len(series) < 5 {
		return 0
	}
	data := make([]stats.Coordinate, len(series))
	for i, v := range series {
		data[i] = stats.Coordinate{X: float64(i), Y: v}
	}
	fitted, err := stats.LinearRegression(data)
	if err != nil || len(fitted) < 2 {
		return 0
	}
	return fitted[1].Y - fitted[0].Y
}
