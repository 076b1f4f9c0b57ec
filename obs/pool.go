package obs

import "math"

// ApplyPool reduces a gathered window (values, parallel validity mask) to
// a single scalar under kind. A cell is included only if mask[i] == 1.
// An all-invalid window returns (0, 0) regardless of kind (P15). Max and
// min additionally skip NaN values within the valid cells so a NaN
// reading can never surface as a "valid" +/-Inf result.
func ApplyPool(kind PoolKind, values []float32, mask []byte) (float32, byte) {
	var sum float32
	var count int
	maxV := float32(math.Inf(-1))
	minV := float32(math.Inf(1))
	sawFiniteExtreme := false

	for i, v := range values {
		if i >= len(mask) || mask[i] == 0 {
			continue
		}
		count++
		sum += v
		if math.IsNaN(float64(v)) {
			continue
		}
		sawFiniteExtreme = true
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}

	if count == 0 {
		return 0, 0
	}

	switch kind {
	case PoolMean:
		return sum / float32(count), 1
	case PoolSum:
		return sum, 1
	case PoolMax:
		if !sawFiniteExtreme {
			return 0, 0
		}
		return maxV, 1
	case PoolMin:
		if !sawFiniteExtreme {
			return 0, 0
		}
		return minV, 1
	default:
		return 0, 0
	}
}
