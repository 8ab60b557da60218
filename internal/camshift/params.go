package camshift

import (
	"fmt"
	"strings"
)

// Parameter identifies a tunable value of the tracker.
type Parameter int

const (
	// HueBins is the number of hue bins in the histogram.
	HueBins Parameter = iota
	// SatBins is the number of saturation bins in the histogram.
	SatBins
	// ValBins is the number of value bins in the histogram.
	ValBins
	// MedianBlur is the median filter kernel size (odd, greater than 1).
	MedianBlur
	// Threshold is the binarization threshold of the density map (0 to 255).
	Threshold
)

// Parameters lists every parameter in declaration order.
var Parameters = []Parameter{HueBins, SatBins, ValBins, MedianBlur, Threshold}

var parameterNames = map[Parameter]string{
	HueBins:    "hue_bins",
	SatBins:    "sat_bins",
	ValBins:    "val_bins",
	MedianBlur: "median_blur",
	Threshold:  "threshold",
}

// String returns the snake_case name of the parameter.
func (p Parameter) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Parameter(%d)", int(p))
}

// ParseParameter looks up a parameter by its snake_case name.
func ParseParameter(name string) (Parameter, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range parameterNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// ThresholdMax is the largest accepted threshold.
const ThresholdMax = 255

// validate checks value against the constraint of p.
func validate(p Parameter, value int) error {
	switch p {
	case HueBins, SatBins, ValBins:
		if value < 0 {
			return fmt.Errorf("%w: %s must be greater than or equal to 0", ErrInvalidArgument, p)
		}
	case MedianBlur:
		if value <= 1 || value%2 == 0 {
			return fmt.Errorf("%w: %s must be greater than 1 and odd", ErrInvalidArgument, p)
		}
	case Threshold:
		if value < 0 || value > ThresholdMax {
			return fmt.Errorf("%w: %s must be between 0 and %d", ErrInvalidArgument, p, ThresholdMax)
		}
	default:
		return fmt.Errorf("%w: unknown parameter %s", ErrInvalidArgument, p)
	}
	return nil
}

// SetParameter validates and stores a parameter. Bin counts take effect at the next
// SetSelection, filter parameters at the next Run.
func (t *Tracker) SetParameter(p Parameter, value int) error {
	if err := validate(p, value); err != nil {
		return err
	}
	t.store(p, value)
	return nil
}

// store assigns a validated value to p.
func (t *Tracker) store(p Parameter, value int) {
	switch p {
	case HueBins:
		t.bins[0] = value
	case SatBins:
		t.bins[1] = value
	case ValBins:
		t.bins[2] = value
	case MedianBlur:
		t.medianBlur = value
	case Threshold:
		t.threshold = value
	}
}

// Parameter returns the stored value of p, or 0 when p is not a known parameter.
func (t *Tracker) Parameter(p Parameter) int {
	switch p {
	case HueBins:
		return t.bins[0]
	case SatBins:
		return t.bins[1]
	case ValBins:
		return t.bins[2]
	case MedianBlur:
		return t.medianBlur
	case Threshold:
		return t.threshold
	default:
		return 0
	}
}

// ParameterValues returns every parameter keyed by name.
func (t *Tracker) ParameterValues() map[string]int {
	out := make(map[string]int, len(Parameters))
	for _, p := range Parameters {
		out[p.String()] = t.Parameter(p)
	}
	return out
}

// ParseParameters resolves and validates a set of named values.
func ParseParameters(values map[string]int) (map[Parameter]int, error) {
	parsed := make(map[Parameter]int, len(values))
	for name, v := range values {
		p, ok := ParseParameter(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidArgument, name)
		}
		if err := validate(p, v); err != nil {
			return nil, err
		}
		parsed[p] = v
	}
	return parsed, nil
}

// SetParameters applies a set of named values. Every entry is validated before any
// is stored, so a rejected set leaves all parameters unchanged.
func (t *Tracker) SetParameters(values map[string]int) error {
	parsed, err := ParseParameters(values)
	if err != nil {
		return err
	}
	for p, v := range parsed {
		t.store(p, v)
	}
	return nil
}
