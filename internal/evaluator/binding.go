package evaluator

import "iarray/internal/container"

// Binding is the (name, Container | Scalar) pair spec §3 threads through
// an expression. A scalar binding has no shape of its own: it is
// broadcast against every bound container's shape and, per spec §4.5,
// adopts the first bound container's dtype in the output.
type Binding struct {
	Container *container.Container
	Scalar    float64
	IsScalar  bool
}

// ContainerBinding binds a name to a container operand.
func ContainerBinding(c *container.Container) Binding { return Binding{Container: c} }

// ScalarBinding binds a name to a broadcast scalar operand.
func ScalarBinding(v float64) Binding { return Binding{Scalar: v, IsScalar: true} }
