package utils

// Epsilon is the float64 machine epsilon, the gap between 1 and the next
// representable value.
const Epsilon = 2.220446049250313e-16
