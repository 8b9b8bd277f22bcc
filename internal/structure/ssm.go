// Package structure implements the hybrid novelty-based segmentation core:
// self-similarity and Foote novelty over beat-synchronous features, hybrid
// boundary detection, per-section descriptors and contextual labeling.
package structure

import "math"

// SelfSimilarity builds the beat-by-beat similarity matrix from the feature
// matrix. Cosine similarity is mapped from [-1,1] into [0,1]; the matrix is
// symmetric with a unit diagonal.
func SelfSimilarity(features [][]float64) [][]float64 {
	n := len(features)
	ssm := make([][]float64, n)
	for i := range ssm {
		ssm[i] = make([]float64, n)
		ssm[i][i] = 1.0
	}

	norms := make([]float64, n)
	for i, row := range features {
		var sum float64
		for _, v := range row {
			sum += v * v
		}
		norms[i] = math.Sqrt(sum)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var dot float64
			for k := range features[i] {
				dot += features[i][k] * features[j][k]
			}
			sim := 0.5 // zero vectors are neither similar nor dissimilar
			if norms[i] > 1e-12 && norms[j] > 1e-12 {
				cos := dot / (norms[i] * norms[j])
				if cos > 1 {
					cos = 1
				} else if cos < -1 {
					cos = -1
				}
				sim = (cos + 1) / 2
			}
			ssm[i][j] = sim
			ssm[j][i] = sim
		}
	}
	return ssm
}

// FooteNovelty correlates a Gaussian-tapered checkerboard kernel of size
// 2L+1 along the SSM diagonal and returns one non-negative novelty value
// per beat. Near the edges the kernel is clipped and renormalized by the
// weight actually used.
func FooteNovelty(ssm [][]float64, kernelBeats int) []float64 {
	n := len(ssm)
	novelty := make([]float64, n)
	if n == 0 {
		return novelty
	}

	L := kernelBeats
	if L < 2 {
		L = 2
	}
	if L > n/2 {
		L = n / 2
	}
	if L < 1 {
		return novelty
	}

	kernel := checkerboardKernel(L)

	for i := 0; i < n; i++ {
		var acc, weight float64
		for di := -L; di <= L; di++ {
			ii := i + di
			if ii < 0 || ii >= n {
				continue
			}
			for dj := -L; dj <= L; dj++ {
				jj := i + dj
				if jj < 0 || jj >= n {
					continue
				}
				k := kernel[di+L][dj+L]
				acc += k * ssm[ii][jj]
				weight += math.Abs(k)
			}
		}
		if weight > 0 {
			v := acc / weight
			if v > 0 {
				novelty[i] = v
			}
		}
	}
	return novelty
}

// checkerboardKernel builds the signed (2L+1)x(2L+1) Foote kernel: positive
// in the same-side quadrants, negative across the diagonal, tapered by a
// 2-D Gaussian so far corners contribute less.
func checkerboardKernel(L int) [][]float64 {
	size := 2*L + 1
	sigma := float64(L) / 2.0
	if sigma <= 0 {
		sigma = 1
	}

	kernel := make([][]float64, size)
	for i := range kernel {
		kernel[i] = make([]float64, size)
		di := float64(i - L)
		for j := range kernel[i] {
			dj := float64(j - L)
			if di == 0 || dj == 0 {
				continue // the cross through the center carries no sign
			}
			g := math.Exp(-(di*di + dj*dj) / (2 * sigma * sigma))
			if (di < 0) == (dj < 0) {
				kernel[i][j] = g
			} else {
				kernel[i][j] = -g
			}
		}
	}
	return kernel
}

// Prominence computes the local contrast of the novelty curve: for each beat
// the lesser of its rise above the left-window minimum and its fall to the
// right-window minimum, floored at zero. Used as a confidence signal only.
func Prominence(novelty []float64, window int) []float64 {
	n := len(novelty)
	prom := make([]float64, n)
	if window < 1 {
		window = 1
	}

	for i := 0; i < n; i++ {
		leftMin := novelty[i]
		for j := i - window; j < i; j++ {
			if j >= 0 && novelty[j] < leftMin {
				leftMin = novelty[j]
			}
		}
		rightMin := novelty[i]
		for j := i + 1; j <= i+window; j++ {
			if j < n && novelty[j] < rightMin {
				rightMin = novelty[j]
			}
		}

		rise := novelty[i] - leftMin
		fall := novelty[i] - rightMin
		p := rise
		if fall < p {
			p = fall
		}
		if p > 0 {
			prom[i] = p
		}
	}
	return prom
}
