package source

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// SyntheticReader fabricates small deterministic datasets from the path
// alone. It is selected with READER_MODE=synthetic for demos and for
// exercising the HTTP API without real survey data.
type SyntheticReader struct{}

// Synthetic dataset dimensions.
const (
	syntheticFrames    = 4
	syntheticPixels    = 8
	syntheticParticles = 256
)

// Open implements Reader.
func (SyntheticReader) Open(path string) (Dataset, error) {
	kind, err := KindOf(path)
	if err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(path))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>7|1))

	if kind == KindObservation {
		return syntheticCube(rng), nil
	}
	return syntheticSnapshot(rng), nil
}

func syntheticCube(rng *rand.Rand) *MemoryDataset {
	n := syntheticFrames * syntheticPixels * syntheticPixels
	ra := make([]float64, n)
	dec := make([]float64, n)
	velo := make([]float64, n)
	inten := make([]float64, n)

	ra0 := rng.Float64() * 360
	dec0 := rng.Float64()*120 - 60
	for v := 0; v < syntheticFrames; v++ {
		for y := 0; y < syntheticPixels; y++ {
			for x := 0; x < syntheticPixels; x++ {
				idx := v*syntheticPixels*syntheticPixels + y*syntheticPixels + x
				ra[idx] = ra0 + float64(x)*0.01
				dec[idx] = dec0 + float64(y)*0.01
				velo[idx] = -2000 + float64(v)*1000
				inten[idx] = rng.Float64() * 50
				// A blank pixel per frame, as real cubes have.
				if x == 0 && y == 0 {
					inten[idx] = math.NaN()
				}
			}
		}
	}

	return &MemoryDataset{
		DatasetKind: KindObservation,
		FrameCount:  syntheticFrames,
		Arrays: map[string]Array{
			"ra":        {Data: ra, Components: 1, Unit: "deg"},
			"dec":       {Data: dec, Components: 1, Unit: "deg"},
			"velocity":  {Data: velo, Components: 1, Unit: "m / s"},
			"intensity": {Data: inten, Components: 1, Unit: "K"},
		},
	}
}

func syntheticSnapshot(rng *rand.Rand) *MemoryDataset {
	n := syntheticParticles
	pos := make([]float64, 3*n)
	vel := make([]float64, 3*n)
	mass := make([]float64, n)
	rho := make([]float64, n)
	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			pos[3*i+c] = rng.NormFloat64() * 25
			vel[3*i+c] = rng.NormFloat64() * 150
		}
		mass[i] = 1e5 * (1 + rng.Float64())
		rho[i] = math.Exp(rng.NormFloat64())
	}

	return &MemoryDataset{
		DatasetKind: KindSimulation,
		FrameCount:  n,
		Arrays: map[string]Array{
			PositionKey: {Data: pos, Components: 3, Unit: unitFor(PositionKey)},
			"vel":       {Data: vel, Components: 3, Unit: unitFor("vel")},
			"mass":      {Data: mass, Components: 1, Unit: unitFor("mass")},
			"rho":       {Data: rho, Components: 1, Unit: unitFor("rho")},
		},
	}
}
