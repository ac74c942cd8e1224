package black

// Densities exposes n(d1) and n(d2) to the external tests.
func (c *Calculator) Densities() (float64, float64) { return c.nD1, c.nD2 }
