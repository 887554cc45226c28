package source

import (
	"fmt"
	"os"
	"strings"

	"github.com/astrogo/fitsio"
)

// openFITS loads a spectral cube and expands it into one row per pixel.
//
// World coordinates use the linear header keywords (CRVAL, CRPIX, CDELT or
// CD) of each axis; no projection is applied.
func openFITS(path string) (*MemoryDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fits: %w", err)
	}
	defer f.Close()

	ff, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("parse fits %s: %w", path, err)
	}
	defer ff.Close()

	img, ok := ff.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("fits %s: primary HDU is not an image", path)
	}
	hdr := img.Header()

	axes := hdr.Axes()
	if len(axes) < 2 {
		return nil, fmt.Errorf("fits %s: expected a cube, got %d axes", path, len(axes))
	}
	nx, ny, nv := axes[0], axes[1], 1
	if len(axes) > 2 {
		nv = axes[2]
	}
	for _, extra := range axesBeyond(axes, 3) {
		if extra != 1 {
			return nil, fmt.Errorf("fits %s: degenerate axes beyond the third must have length 1", path)
		}
	}

	pixels, err := readPixels(img)
	if err != nil {
		return nil, fmt.Errorf("read fits %s: %w", path, err)
	}
	n := nx * ny * nv
	if len(pixels) < n {
		return nil, fmt.Errorf("fits %s: %d pixels for a %dx%dx%d cube", path, len(pixels), nx, ny, nv)
	}

	ra := linearAxis(hdr, 1, nx)
	dec := linearAxis(hdr, 2, ny)
	velo := linearAxis(hdr, 3, nv)
	if unit := strings.ToLower(strings.ReplaceAll(headerString(hdr, "CUNIT3"), " ", "")); unit == "km/s" || unit == "kms-1" {
		for i := range velo {
			velo[i] *= 1000
		}
	}

	out := map[string][]float64{
		"ra":        make([]float64, n),
		"dec":       make([]float64, n),
		"velocity":  make([]float64, n),
		"intensity": make([]float64, n),
	}
	for v := 0; v < nv; v++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				idx := v*ny*nx + y*nx + x
				out["ra"][idx] = ra[x]
				out["dec"][idx] = dec[y]
				out["velocity"][idx] = velo[v]
				out["intensity"][idx] = pixels[idx]
			}
		}
	}

	bunit := headerString(hdr, "BUNIT")
	if bunit == "" {
		bunit = "K"
	}
	units := map[string]string{"ra": "deg", "dec": "deg", "velocity": "m / s", "intensity": bunit}

	ds := &MemoryDataset{
		DatasetKind: KindObservation,
		Arrays:      make(map[string]Array, len(out)),
		FrameCount:  nv,
	}
	for name, data := range out {
		ds.Arrays[name] = Array{Data: data, Components: 1, Unit: units[name]}
	}
	return ds, nil
}

func axesBeyond(axes []int, n int) []int {
	if len(axes) <= n {
		return nil
	}
	return axes[n:]
}

// readPixels reads the image in its stored type and applies BSCALE/BZERO.
func readPixels(img fitsio.Image) ([]float64, error) {
	hdr := img.Header()
	n := 1
	for _, a := range hdr.Axes() {
		n *= a
	}
	scale := headerFloat(hdr, "BSCALE", 1)
	zero := headerFloat(hdr, "BZERO", 0)

	switch hdr.Bitpix() {
	case 8:
		raw := make([]uint8, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return scaled(raw, scale, zero), nil
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return scaled(raw, scale, zero), nil
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return scaled(raw, scale, zero), nil
	case 64:
		raw := make([]int64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return scaled(raw, scale, zero), nil
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return scaled(raw, scale, zero), nil
	case -64:
		raw := make([]float64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return scaled(raw, scale, zero), nil
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", hdr.Bitpix())
	}
}

type pixel interface {
	~uint8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func scaled[T pixel](raw []T, scale, zero float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)*scale + zero
	}
	return out
}

// linearAxis evaluates world coordinates for the n pixels of a 1-based axis.
func linearAxis(hdr *fitsio.Header, axis, n int) []float64 {
	crval := headerFloat(hdr, fmt.Sprintf("CRVAL%d", axis), 0)
	crpix := headerFloat(hdr, fmt.Sprintf("CRPIX%d", axis), 1)
	cdelt := headerFloat(hdr, fmt.Sprintf("CDELT%d", axis), 0)
	if cdelt == 0 {
		cdelt = headerFloat(hdr, fmt.Sprintf("CD%d_%d", axis, axis), 1)
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = crval + (float64(i+1)-crpix)*cdelt
	}
	return out
}

func headerFloat(hdr *fitsio.Header, key string, def float64) float64 {
	card := hdr.Get(key)
	if card == nil {
		return def
	}
	switch v := card.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	default:
		return def
	}
}

func headerString(hdr *fitsio.Header, key string) string {
	card := hdr.Get(key)
	if card == nil {
		return ""
	}
	s, _ := card.Value.(string)
	return strings.TrimSpace(s)
}
