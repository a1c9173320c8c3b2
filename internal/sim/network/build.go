package network

import (
	"math"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/rng"
)

// Build creates the session network from actor definitions. Explicit connections come
// first in definition order; category links are then rolled on g for every unconnected
// actor pair. Actors without a position are placed on a ring whose radius jitter is
// drawn from g, so the layout is reproducible from the seed.
func Build(actors []catalogs.ActorDef, links []catalogs.CategoryLink, g *rng.Generator) *Network {
	out := make([]Actor, 0, len(actors))
	for _, d := range actors {
		a := Actor{
			ID:              d.ID,
			Name:            d.Name,
			Category:        d.Category,
			Tier:            d.Tier,
			Trust:           d.Trust,
			BaseTrust:       d.Trust,
			Resilience:      d.Resilience,
			EmotionalState:  d.EmotionalState,
			RecoveryRate:    d.RecoveryRate,
			Vulnerabilities: append([]string(nil), d.Vulnerabilities...),
			Resistances:     append([]string(nil), d.Resistances...),
		}
		if d.Position != nil {
			a.Position = Position{X: d.Position[0], Y: d.Position[1]}
		}
		a.Clamp01()
		out = append(out, a)
	}
	n := New(out, nil)

	for _, d := range actors {
		for _, l := range d.Connections {
			if l.Target == d.ID || !n.Has(l.Target) || n.Connected(d.ID, l.Target) {
				continue
			}
			n.Connections = append(n.Connections, Connection{
				Source:   d.ID,
				Target:   l.Target,
				Strength: Clamp01(l.Strength),
				Type:     l.Type,
			})
		}
	}

	if g == nil {
		return n
	}
	for _, rule := range links {
		for i := range n.Actors {
			for j := i + 1; j < len(n.Actors); j++ {
				a, b := &n.Actors[i], &n.Actors[j]
				forward := a.Category == rule.From && b.Category == rule.To
				backward := a.Category == rule.To && b.Category == rule.From
				if !forward && !backward {
					continue
				}
				if n.Connected(a.ID, b.ID) {
					continue
				}
				if !g.Chance(rule.Probability) {
					continue
				}
				n.Connections = append(n.Connections, Connection{
					Source:   a.ID,
					Target:   b.ID,
					Strength: Clamp01(rule.Strength),
					Type:     rule.Type,
				})
			}
		}
	}

	count := len(n.Actors)
	for i := range n.Actors {
		if actors[i].Position != nil {
			continue
		}
		angle := 2 * math.Pi * float64(i) / float64(count)
		r := 0.3 + 0.1*g.Next()
		n.Actors[i].Position = Position{
			X: 0.5 + r*math.Cos(angle),
			Y: 0.5 + r*math.Sin(angle),
		}
	}
	return n
}
