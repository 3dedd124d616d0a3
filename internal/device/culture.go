package device

import "sync"

// Culture is the simulated vessel shared by the devices of one setup.
// Pumping medium in dilutes it; each optical density reading advances
// its growth by one tick.
type Culture struct {
	mu     sync.Mutex
	od     float64
	volume float64
}

// NewCulture returns a culture with the given optical density and volume in mL.
func NewCulture(od, volume float64) *Culture {
	if volume <= 0 {
		volume = 1
	}
	return &Culture{od: od, volume: volume}
}

// OpticalDensity returns the current optical density.
func (c *Culture) OpticalDensity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.od
}

// Volume returns the current volume in mL.
func (c *Culture) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// AddMedium dilutes the culture with volume mL of fresh medium.
func (c *Culture) AddMedium(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.od = c.od * c.volume / (c.volume + volume)
	c.volume += volume
}

// Remove takes volume mL out without changing the density.
func (c *Culture) Remove(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume -= volume
	if c.volume < 0 {
		c.volume = 0
	}
}

// Grow multiplies the density by (1 + rate).
func (c *Culture) Grow(rate float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.od *= 1 + rate
	return c.od
}
