// Package geometry computes the shape of a flower pot modelled as a truncated
// cone: the rim diameter, the base diameter and the height.
//
//	   diameter top
//	\---------------/ beta
//	 \             /
//	  \           /   height
//	   \---------/
//	  diameter base
//
// Extending the walls below the base closes the pot into a "big cone" whose
// apex angle is alpha. The pot is the big cone minus the "small cone" that
// hangs under the base.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidPot = errors.New("geometry: invalid pot")

type Pot struct {
	DiameterTop  float64 `json:"diameter_top"`
	DiameterBase float64 `json:"diameter_base"`
	Height       float64 `json:"height"`
}

// Angles are in radians.
type Angles struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

func (p Pot) Validate() error {
	switch {
	case !positive(p.DiameterTop), !positive(p.DiameterBase), !positive(p.Height):
		return fmt.Errorf("%w: dimensions must be positive and finite, got %+v", ErrInvalidPot, p)
	case p.DiameterTop < p.DiameterBase:
		return fmt.Errorf("%w: top diameter %g is smaller than base diameter %g", ErrInvalidPot, p.DiameterTop, p.DiameterBase)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && finite(v)
}

// Angles returns beta, the angle between a wall and the plane of the rim,
// and alpha, the apex angle of the big cone. A cylinder has beta = π/2 and
// alpha = 0.
func (p Pot) Angles() Angles {
	width := (p.DiameterTop - p.DiameterBase) / 2
	beta := math.Atan2(p.Height, width)
	return Angles{Alpha: math.Pi - 2*beta, Beta: beta}
}

// SmallConeHeight is the height of the cone hanging under the base. It is
// +Inf for a cylinder.
func (p Pot) SmallConeHeight() float64 {
	width := (p.DiameterTop - p.DiameterBase) / 2
	if width == 0 {
		return math.Inf(1)
	}
	return (p.DiameterBase / 2) * p.Height / width
}

// BigConeHeight is the pot height plus SmallConeHeight.
func (p Pot) BigConeHeight() float64 {
	return p.Height + p.SmallConeHeight()
}

// Volume of the pot, in the cube of the unit used for its dimensions.
func (p Pot) Volume() float64 {
	R := p.DiameterTop / 2
	r := p.DiameterBase / 2
	return math.Pi * p.Height / 3 * (R*R + R*r + r*r)
}

// ConeVolume is the volume of a right circular cone.
func ConeVolume(radius, height float64) float64 {
	return math.Pi * radius * radius * height / 3
}

// VolumeDelta is the absolute difference between the volumes of a and b.
func VolumeDelta(a, b Pot) float64 {
	return math.Abs(a.Volume() - b.Volume())
}

// Report bundles every derived value of a pot.
type Report struct {
	Pot             Pot     `json:"pot"`
	Angles          Angles  `json:"angles"`
	AlphaDegrees    float64 `json:"alpha_degrees"`
	BetaDegrees     float64 `json:"beta_degrees"`
	SmallConeHeight float64 `json:"small_cone_height,omitempty"`
	Volume          float64 `json:"volume"`
	Cylinder        bool    `json:"cylinder"`
}

func (p Pot) Report() (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	a := p.Angles()
	r := Report{
		Pot:          p,
		Angles:       a,
		AlphaDegrees: degrees(a.Alpha),
		BetaDegrees:  degrees(a.Beta),
		Volume:       p.Volume(),
		Cylinder:     p.DiameterTop == p.DiameterBase,
	}
	if !r.Cylinder {
		r.SmallConeHeight = p.SmallConeHeight()
	}
	if !finite(r.Volume) || !finite(r.SmallConeHeight) {
		return Report{}, fmt.Errorf("%w: dimensions %+v are too large", ErrInvalidPot, p)
	}
	return r, nil
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
