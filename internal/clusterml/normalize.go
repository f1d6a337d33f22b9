package clusterml

import "gonum.org/v1/gonum/stat"

// normalize scales each feature dimension to zero mean and unit variance
// across the batch. Zero-variance dimensions are centered only.
func normalize(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return nil
	}
	rows := len(matrix)
	cols := len(matrix[0])

	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}

	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = matrix[i][j]
		}
		mean := stat.Mean(column, nil)
		std := stat.PopStdDev(column, nil)
		for i := 0; i < rows; i++ {
			if std > 0 {
				out[i][j] = (matrix[i][j] - mean) / std
			} else {
				out[i][j] = matrix[i][j] - mean
			}
		}
	}
	return out
}
