package core

import (
	"errors"
	"math"
)

// reconcileRule copies one user-editable field from a submitted variable.
// cur is the stored state, which holds the authoritative observed bounds.
type reconcileRule struct {
	field string
	apply func(dst *VariableConfig, cur, sub VariableConfig)
}

// reconcileRules lists every field a submission may change. thr_min, thr_max
// and files come from the data on disk and are never taken from a submission.
var reconcileRules = []reconcileRule{
	{
		field: "thr_min_sel",
		apply: func(dst *VariableConfig, cur, sub VariableConfig) {
			dst.ThrMinSel = clampLow(sub.ThrMinSel, cur.ThrMin)
		},
	},
	{
		field: "thr_max_sel",
		apply: func(dst *VariableConfig, cur, sub VariableConfig) {
			dst.ThrMaxSel = clampHigh(sub.ThrMaxSel, cur.ThrMax)
		},
	},
	{
		field: "selected",
		apply: func(dst *VariableConfig, _, sub VariableConfig) { dst.Selected = sub.Selected },
	},
	{
		field: "unit",
		apply: func(dst *VariableConfig, _, sub VariableConfig) {
			if sub.Unit != "" {
				dst.Unit = sub.Unit
			}
		},
	},
	{
		field: "x_axis",
		apply: func(dst *VariableConfig, _, sub VariableConfig) { dst.XAxis = sub.XAxis },
	},
	{
		field: "y_axis",
		apply: func(dst *VariableConfig, _, sub VariableConfig) { dst.YAxis = sub.YAxis },
	},
	{
		field: "z_axis",
		apply: func(dst *VariableConfig, _, sub VariableConfig) { dst.ZAxis = sub.ZAxis },
	},
}

// ReconcileConfig applies a submitted configuration to the current one.
//
// Selected bounds are clamped into [thr_min, thr_max] of the current
// configuration. A variable whose clamped selection is empty keeps its
// current state and is reported as an *InvalidRangeError; the other
// variables are still applied and the joined errors are returned along with
// the reconciled configuration.
//
// A submission naming a variable absent from current fails with
// *ConfigNotFoundError and an invalid downsampling fails with
// *ValidationError. In both cases current is returned unchanged.
func ReconcileConfig(current, submitted ProjectConfig) (ProjectConfig, error) {
	if err := ValidateDownsampling(submitted.Downsampling); err != nil {
		return current, err
	}
	for _, name := range submitted.Names() {
		if _, ok := current.Variables[name]; !ok {
			return current, &ConfigNotFoundError{Variable: name}
		}
	}

	out := current.Clone()
	out.Downsampling = submitted.Downsampling

	var errs []error
	for _, name := range submitted.Names() {
		cur := current.Variables[name]
		sub := submitted.Variables[name]

		next := cur.Clone()
		for _, rule := range reconcileRules {
			rule.apply(&next, cur, sub)
		}
		if err := checkSelection(name, next); err != nil {
			errs = append(errs, err)
			continue
		}
		out.Variables[name] = next
	}
	return out, errors.Join(errs...)
}

// ValidateDownsampling checks that d is a fraction in (0, 1].
func ValidateDownsampling(d float64) error {
	if math.IsNaN(d) || d <= 0 || d > 1 {
		return &ValidationError{Field: "downsampling", Reason: "must be greater than 0 and at most 1"}
	}
	return nil
}

func clampLow(p *float64, lo float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(max(*p, lo))
}

func clampHigh(p *float64, hi float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(min(*p, hi))
}

// checkSelection rejects a selection that is empty within the variable bounds.
func checkSelection(name string, v VariableConfig) error {
	lo, hi := v.ThrMin, v.ThrMax
	if v.ThrMinSel != nil {
		lo = *v.ThrMinSel
	}
	if v.ThrMaxSel != nil {
		hi = *v.ThrMaxSel
	}
	if lo > hi || math.IsNaN(lo) || math.IsNaN(hi) {
		return &InvalidRangeError{
			Variable:  name,
			ThrMinSel: copyFloat(v.ThrMinSel),
			ThrMaxSel: copyFloat(v.ThrMaxSel),
			ThrMin:    v.ThrMin,
			ThrMax:    v.ThrMax,
		}
	}
	return nil
}
