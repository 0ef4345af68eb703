package sim

import (
	"math"
	"time"

	"github.com/robotalks/kayak/pkg/drive"
)

// Boat integrates the pose of a kayak from the last received channels.
// Channel A is throttle, positive forward. Channel B turns, positive
// to the left (counter-clockwise).
type Boat struct {
	// MaxSpeed is the speed in m/s when A is 1.
	MaxSpeed float64
	// MaxTurnRate is the turn rate in rad/s when B is 1.
	MaxTurnRate float64
	// Accel in m/s², 0 reaches the desired speed immediately.
	Accel float64

	pose   Pose2D
	speed  float64
	target drive.Channels
	last   time.Time
}

// Pose returns the pose at the last Advance.
func (b *Boat) Pose() Pose2D {
	return b.pose
}

// Speed returns the speed at the last Advance.
func (b *Boat) Speed() float64 {
	return b.speed
}

// Target returns the channels being applied.
func (b *Boat) Target() drive.Channels {
	return b.target
}

// Place resets the pose and stops the boat.
func (b *Boat) Place(pose Pose2D, now time.Time) {
	b.pose, b.speed, b.target, b.last = pose, 0, drive.Channels{}, now
}

// Command advances to now and applies ch from then on.
func (b *Boat) Command(ch drive.Channels, now time.Time) {
	b.Advance(now)
	b.target = ch
	if b.Accel <= 0 {
		b.speed = b.desiredSpeed()
	}
}

func (b *Boat) desiredSpeed() float64 {
	return clamp(b.target.A) * b.MaxSpeed
}

// Advance moves the boat to now and returns the new pose.
func (b *Boat) Advance(now time.Time) Pose2D {
	if b.last.IsZero() {
		b.last = now
	}
	if !now.After(b.last) {
		return b.pose
	}
	secs := now.Sub(b.last).Seconds()
	b.last = now

	turn := clamp(b.target.B) * b.MaxTurnRate * secs
	mid := b.pose.Heading.AddRadians(turn / 2)
	b.pose.Heading = b.pose.Heading.AddRadians(turn)

	desired := b.desiredSpeed()
	var dist float64
	if b.Accel > 0 && b.speed != desired {
		accel := b.Accel
		if desired < b.speed {
			accel = -accel
		}
		t := (desired - b.speed) / accel
		if t > secs {
			t = secs
			dist = b.speed*t + accel*t*t/2
			b.speed += accel * t
		} else {
			dist = b.speed*t + accel*t*t/2
			b.speed = desired
		}
		secs -= t
	} else {
		b.speed = desired
	}
	dist += b.speed * secs
	b.pose.Pos2D.OffsetBy(mid.Project(dist))
	return b.pose
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
