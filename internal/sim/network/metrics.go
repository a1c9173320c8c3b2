package network

import "math"

type Metrics struct {
	Actors       int     `json:"actors"`
	AverageTrust float64 `json:"average_trust"`
	Polarization float64 `json:"polarization"`

	LowTrust         int     `json:"low_trust"`
	HighTrust        int     `json:"high_trust"`
	LowTrustFraction float64 `json:"low_trust_fraction"`
}

func (n *Network) AverageTrust() float64 {
	if len(n.Actors) == 0 {
		return 0
	}
	sum := 0.0
	for i := range n.Actors {
		sum += n.Actors[i].Trust
	}
	return sum / float64(len(n.Actors))
}

// CountAtOrBelow counts actors with trust <= th.
func (n *Network) CountAtOrBelow(th float64) int {
	c := 0
	for i := range n.Actors {
		if n.Actors[i].Trust <= th {
			c++
		}
	}
	return c
}

// CountAbove counts actors with trust > th.
func (n *Network) CountAbove(th float64) int {
	c := 0
	for i := range n.Actors {
		if n.Actors[i].Trust > th {
			c++
		}
	}
	return c
}

// Polarization is 2·mean|trust-0.5|: 0 when everyone sits at the midpoint, 1 when every
// actor is at an extreme.
func (n *Network) Polarization() float64 {
	if len(n.Actors) == 0 {
		return 0
	}
	sum := 0.0
	for i := range n.Actors {
		sum += math.Abs(n.Actors[i].Trust - 0.5)
	}
	return 2 * sum / float64(len(n.Actors))
}

func (n *Network) Metrics(lowTh, highTh float64) Metrics {
	m := Metrics{
		Actors:       len(n.Actors),
		AverageTrust: n.AverageTrust(),
		Polarization: n.Polarization(),
		LowTrust:     n.CountAtOrBelow(lowTh),
		HighTrust:    n.CountAbove(highTh),
	}
	if m.Actors > 0 {
		m.LowTrustFraction = float64(m.LowTrust) / float64(m.Actors)
	}
	return m
}
