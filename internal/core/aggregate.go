package core

import "slices"

// AggregateConfig merges per-file variable ranges into one project
// configuration.
//
// A variable seen in several files gets the union of their bounds and the
// list of those files in input order. The first unit seen wins. Selection
// fields start unset and downsampling starts at 1.
func AggregateConfig(files []FileRanges) ProjectConfig {
	cfg := NewProjectConfig()
	for _, f := range files {
		for _, name := range VariableNames(f.Ranges) {
			cfg.merge(name, f.Path, f.Ranges[name])
		}
	}
	return cfg
}

func (c *ProjectConfig) merge(name, path string, r VariableRange) {
	v, ok := c.Variables[name]
	if !ok {
		c.Variables[name] = VariableConfig{
			ThrMin: r.Min,
			ThrMax: r.Max,
			Unit:   r.Unit,
			Files:  []string{path},
		}
		return
	}
	v.ThrMin = min(v.ThrMin, r.Min)
	v.ThrMax = max(v.ThrMax, r.Max)
	v.Files = appendUnique(v.Files, path)
	c.Variables[name] = v
}

// Widen returns a copy of c extended by other. Bounds only grow and file
// lists are unioned; every user-editable field of c is kept. Variables only
// present in other are added as they are.
func (c ProjectConfig) Widen(other ProjectConfig) ProjectConfig {
	out := c.Clone()
	if out.Downsampling == 0 {
		out.Downsampling = DefaultDownsampling
	}
	for _, name := range other.Names() {
		ov := other.Variables[name]
		v, ok := out.Variables[name]
		if !ok {
			out.Variables[name] = ov.Clone()
			continue
		}
		v.ThrMin = min(v.ThrMin, ov.ThrMin)
		v.ThrMax = max(v.ThrMax, ov.ThrMax)
		for _, f := range ov.Files {
			v.Files = appendUnique(v.Files, f)
		}
		out.Variables[name] = v
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
