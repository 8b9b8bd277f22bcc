package structure

import (
	"math"
	"testing"
)

// blockFeatures builds a feature matrix of alternating A/B blocks, blockLen
// beats each, with slight per-beat jitter so nothing is exactly degenerate.
func blockFeatures(blocks, blockLen int) [][]float64 {
	a := []float64{1, 0.2, -0.5, 0.8}
	b := []float64{-0.9, 0.7, 0.6, -0.4}

	out := make([][]float64, 0, blocks*blockLen)
	for bi := 0; bi < blocks; bi++ {
		base := a
		if bi%2 == 1 {
			base = b
		}
		for i := 0; i < blockLen; i++ {
			row := make([]float64, len(base))
			jitter := 0.01 * math.Sin(float64(bi*blockLen+i))
			for k, v := range base {
				row[k] = v + jitter
			}
			out = append(out, row)
		}
	}
	return out
}

func TestSelfSimilarityProperties(t *testing.T) {
	feats := blockFeatures(4, 8)
	ssm := SelfSimilarity(feats)

	n := len(feats)
	if len(ssm) != n {
		t.Fatalf("SSM size = %d, expected %d", len(ssm), n)
	}
	for i := 0; i < n; i++ {
		if ssm[i][i] != 1.0 {
			t.Errorf("diagonal [%d][%d] = %f, expected 1", i, i, ssm[i][i])
		}
		for j := 0; j < n; j++ {
			if ssm[i][j] != ssm[j][i] {
				t.Errorf("asymmetry at [%d][%d]: %f vs %f", i, j, ssm[i][j], ssm[j][i])
			}
			if ssm[i][j] < 0 || ssm[i][j] > 1 {
				t.Errorf("similarity [%d][%d] = %f outside [0,1]", i, j, ssm[i][j])
			}
		}
	}
}

func TestSelfSimilarityBlocks(t *testing.T) {
	ssm := SelfSimilarity(blockFeatures(4, 8))

	within := ssm[2][5]    // both in block 0
	repeat := ssm[2][18]   // blocks 0 and 2, same material
	contrast := ssm[2][10] // blocks 0 and 1, different material

	if within < 0.95 {
		t.Errorf("within-block similarity = %f, expected near 1", within)
	}
	if repeat < 0.95 {
		t.Errorf("repeated-block similarity = %f, expected near 1", repeat)
	}
	if contrast > repeat-0.2 {
		t.Errorf("contrasting-block similarity %f should sit well below repeat similarity %f", contrast, repeat)
	}
}

func TestSelfSimilarityZeroVectors(t *testing.T) {
	feats := [][]float64{{0, 0}, {1, 0}}
	ssm := SelfSimilarity(feats)

	if ssm[0][1] != 0.5 {
		t.Errorf("zero-vector similarity = %f, expected the neutral 0.5", ssm[0][1])
	}
	if ssm[0][0] != 1 {
		t.Errorf("zero-vector self-similarity on the diagonal must stay 1, got %f", ssm[0][0])
	}
}

func TestFooteNoveltyPeaksAtBlockBoundaries(t *testing.T) {
	const blockLen = 16
	ssm := SelfSimilarity(blockFeatures(4, blockLen))
	novelty := FooteNovelty(ssm, 8)

	if len(novelty) != len(ssm) {
		t.Fatalf("novelty length = %d, expected %d", len(novelty), len(ssm))
	}
	for i, v := range novelty {
		if v < 0 {
			t.Fatalf("novelty[%d] = %f, must be non-negative", i, v)
		}
	}

	// boundaries at beats 16, 32, 48 should dominate block interiors
	for _, b := range []int{16, 32, 48} {
		boundary := maxAround(novelty, b, 2)
		interior := novelty[b-blockLen/2]
		if boundary <= interior {
			t.Errorf("novelty near boundary %d (%f) should exceed interior (%f)", b, boundary, interior)
		}
	}
}

func maxAround(xs []float64, center, radius int) float64 {
	best := 0.0
	for i := center - radius; i <= center+radius; i++ {
		if i >= 0 && i < len(xs) && xs[i] > best {
			best = xs[i]
		}
	}
	return best
}

func TestFooteNoveltyFlat(t *testing.T) {
	n := 64
	ssm := make([][]float64, n)
	for i := range ssm {
		ssm[i] = make([]float64, n)
		for j := range ssm[i] {
			ssm[i][j] = 1.0
		}
	}

	// the clipped edge kernels are sign-asymmetric, so only interior
	// positions are expected to cancel exactly
	novelty := FooteNovelty(ssm, 8)
	for i := 8; i < n-8; i++ {
		if novelty[i] > 1e-9 {
			t.Errorf("novelty[%d] = %g on a uniform SSM, expected 0", i, novelty[i])
		}
	}
}

func TestFooteNoveltyEmpty(t *testing.T) {
	if got := FooteNovelty(nil, 8); len(got) != 0 {
		t.Errorf("expected empty novelty for empty SSM, got %d values", len(got))
	}
}

func TestProminence(t *testing.T) {
	novelty := []float64{0, 0, 1, 0, 0, 0.2, 0.3, 0.2, 0}
	prom := Prominence(novelty, 3)

	if len(prom) != len(novelty) {
		t.Fatalf("prominence length = %d, expected %d", len(prom), len(novelty))
	}
	for i, v := range prom {
		if v < 0 {
			t.Errorf("prominence[%d] = %f, must be non-negative", i, v)
		}
	}
	if prom[2] <= prom[6] {
		t.Errorf("isolated tall peak (%f) should out-rank the shallow bump (%f)", prom[2], prom[6])
	}
	if prom[0] != 0 {
		t.Errorf("flat leading region should carry zero prominence, got %f", prom[0])
	}
}
