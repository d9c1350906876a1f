package classify

import (
	"context"
	"fmt"

	"github.com/ecoaily/gridinsight/pkg/policy"
)

// Layer is a fully-connected layer.
type Layer struct {
	Weights [][]float64 `json:"weights"` // [out][in]
	Biases  []float64   `json:"biases"`
}

// Network is a feedforward network with ReLU hidden layers and a linear
// output layer. Only inference is supported; weights come from an artifact.
type Network struct {
	Layers []Layer `json:"layers"`
}

// Validate checks that layer shapes chain from in inputs to out outputs.
func (n *Network) Validate(in, out int) error {
	if n == nil || len(n.Layers) == 0 {
		return fmt.Errorf("network has no layers")
	}
	width := in
	for i, l := range n.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Biases) {
			return fmt.Errorf("layer %d: %d weight rows, %d biases", i, len(l.Weights), len(l.Biases))
		}
		for j, row := range l.Weights {
			if len(row) != width {
				return fmt.Errorf("layer %d row %d: expected %d inputs, got %d", i, j, width, len(row))
			}
		}
		width = len(l.Weights)
	}
	if width != out {
		return fmt.Errorf("network produces %d outputs, expected %d", width, out)
	}
	return nil
}

// Forward computes the network output.
func (n *Network) Forward(input []float64) []float64 {
	x := input
	for i, l := range n.Layers {
		y := make([]float64, len(l.Weights))
		for j, row := range l.Weights {
			sum := l.Biases[j]
			for k, w := range row {
				sum += w * x[k]
			}
			y[j] = sum
		}

		if i < len(n.Layers)-1 {
			for j := range y {
				y[j] = max(y[j], 0)
			}
		}
		x = y
	}
	return x
}

// NetworkClassifier runs a Network on the window and picks the class with
// the highest score.
type NetworkClassifier struct {
	net *Network
}

// NewNetworkClassifier validates that net maps a window to six scores.
func NewNetworkClassifier(net *Network) (*NetworkClassifier, error) {
	if err := net.Validate(WindowSize, policy.NumClasses); err != nil {
		return nil, err
	}
	return &NetworkClassifier{net: net}, nil
}

func (c *NetworkClassifier) Classify(ctx context.Context, w Window) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return Argmax(c.net.Forward(w[:])), nil
}
