// Package sim simulates a kayak on the far end of the link: it decodes
// packets like the firmware does and moves a boat on a 2D plane.
package sim

import (
	"fmt"
	"math"
)

// Angle is a heading in radians, normalized into (-Pi, Pi].
type Angle float64

// Pos2D is a position in meters.
type Pos2D struct {
	X float64
	Y float64
}

// Pose2D is a position with a heading.
type Pose2D struct {
	Pos2D
	Heading Angle
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.2f,%.2f) %.1f°", p.X, p.Y, p.Heading.Degrees())
}

// OffsetBy moves p by p1 in-place.
func (p *Pos2D) OffsetBy(p1 Pos2D) *Pos2D {
	p.X += p1.X
	p.Y += p1.Y
	return p
}

// AngleFromDegrees creates Angle from degrees.
func AngleFromDegrees(d float64) Angle {
	return Angle(normalizeRadians(d * math.Pi / 180.0))
}

// AddRadians adds radians to current angle.
func (a Angle) AddRadians(r float64) Angle {
	return Angle(normalizeRadians(float64(a) + r))
}

// Degrees gets angle in degrees.
func (a Angle) Degrees() float64 {
	return float64(a) * 180 / math.Pi
}

// Project projects distance into X and Y.
func (a Angle) Project(dist float64) Pos2D {
	return Pos2D{X: dist * math.Cos(float64(a)), Y: dist * math.Sin(float64(a))}
}

func normalizeRadians(r float64) float64 {
	if r >= 2*math.Pi || r <= -2*math.Pi {
		r = math.Remainder(r, 2*math.Pi)
	}
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
