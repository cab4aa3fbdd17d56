package chart

import (
	"fmt"

	"github.com/hyperjump/chatdata/internal/vizspec"
)

// View tracks which eligible kind a chart spec is shown as. Switching kind
// never touches the spec.
type View struct {
	spec     *vizspec.Spec
	kind     vizspec.ChartType
	eligible []vizspec.ChartType
}

// NewView starts on the spec's own chart type. A pie request over more than
// MaxPieRows rows starts on bar instead.
func NewView(spec *vizspec.Spec) (*View, error) {
	eligible := EligibleKinds(spec)
	if eligible == nil {
		return nil, ErrNotChart
	}
	v := &View{spec: spec, kind: vizspec.ChartBar, eligible: eligible}
	if IsEligible(spec, spec.Chart.Type) {
		v.kind = spec.Chart.Type
	}
	return v, nil
}

// Kind returns the selected kind.
func (v *View) Kind() vizspec.ChartType { return v.kind }

// Eligible returns the kinds Select accepts.
func (v *View) Eligible() []vizspec.ChartType {
	return append([]vizspec.ChartType(nil), v.eligible...)
}

// Select switches to kind.
func (v *View) Select(kind vizspec.ChartType) error {
	if !IsEligible(v.spec, kind) {
		return fmt.Errorf("%w: %s", ErrIneligibleKind, kind)
	}
	v.kind = kind
	return nil
}

// Render draws the spec as the selected kind.
func (v *View) Render() (*Chart, error) {
	return Render(v.spec, v.kind)
}
