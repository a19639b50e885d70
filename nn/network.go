package nn

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/openfluke/neuralterrain/tensor"
)

// Network is a same-size convolution stack mapping (Channels+1) input planes
// to Channels output planes. The extra input plane carries the noise level.
type Network struct {
	Layers   []LayerConfig
	Channels int

	// UseGPU runs layers through WebGPU; a failing GPU layer falls back to
	// the CPU path for the rest of the network's life.
	UseGPU bool

	// Observer, when set, receives per-layer activation stats.
	Observer LayerObserver

	logger  *slog.Logger
	gpuDead atomic.Bool
}

// NewNetwork validates layers and chains their channel counts.
func NewNetwork(layers []LayerConfig) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrBadWeights)
	}
	for i := range layers {
		if err := layers[i].Validate(); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if i > 0 && layers[i].InputChannels != layers[i-1].Filters {
			return nil, fmt.Errorf("%w: layer %d expects %d channels, layer %d gives %d",
				ErrBadWeights, i, layers[i].InputChannels, i-1, layers[i-1].Filters)
		}
	}
	channels := layers[len(layers)-1].Filters
	if layers[0].InputChannels != channels+1 {
		return nil, fmt.Errorf("%w: first layer takes %d channels, want %d (output channels + noise level)",
			ErrBadWeights, layers[0].InputChannels, channels+1)
	}
	return &Network{Layers: layers, Channels: channels, logger: slog.Default()}, nil
}

// NewRandomNetwork builds an untrained network: hidden layers of width
// `hidden` with LeakyReLU, then a linear output layer.
func NewRandomNetwork(channels, hidden, depth, kernelSize int, seed uint64) (*Network, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: depth %d", ErrBadWeights, depth)
	}
	rng := tensor.NewRand(seed)
	layers := make([]LayerConfig, 0, depth)
	in := channels + 1
	for i := 0; i < depth-1; i++ {
		layers = append(layers, InitConv2DLayer(in, kernelSize, hidden, ActivationLeakyReLU, rng))
		in = hidden
	}
	layers = append(layers, InitConv2DLayer(in, kernelSize, channels, ActivationLinear, rng))
	return NewNetwork(layers)
}

// LoadNetwork reads conv{i}.weight / conv{i}.bias pairs from a safetensors
// file. Weights are [out, in, k, k]; hidden layers get LeakyReLU and the
// last layer is linear.
func LoadNetwork(path string) (*Network, error) {
	tensors, err := LoadSafetensors(path)
	if err != nil {
		return nil, err
	}
	return NetworkFromTensors(tensors)
}

// NetworkFromTensors assembles a network from decoded safetensors entries.
func NetworkFromTensors(tensors map[string]TensorWithShape) (*Network, error) {
	indices, err := convIndices(tensors)
	if err != nil {
		return nil, err
	}

	layers := make([]LayerConfig, 0, len(indices))
	for n, idx := range indices {
		wName := fmt.Sprintf("conv%d.weight", idx)
		bName := fmt.Sprintf("conv%d.bias", idx)
		w := tensors[wName]
		if len(w.Shape) != 4 || w.Shape[2] != w.Shape[3] {
			return nil, fmt.Errorf("%w: %s has shape %v, want [out, in, k, k]", ErrBadWeights, wName, w.Shape)
		}
		b, ok := tensors[bName]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrBadWeights, bName)
		}
		act := ActivationLeakyReLU
		if n == len(indices)-1 {
			act = ActivationLinear
		}
		layers = append(layers, LayerConfig{
			Activation:    act,
			KernelSize:    w.Shape[2],
			Padding:       w.Shape[2] / 2,
			InputChannels: w.Shape[1],
			Filters:       w.Shape[0],
			Kernel:        w.Values,
			Bias:          b.Values,
		})
	}
	return NewNetwork(layers)
}

// Tensors returns the network weights in the layout LoadNetwork reads.
func (n *Network) Tensors() map[string]TensorWithShape {
	out := make(map[string]TensorWithShape, 2*len(n.Layers))
	for i, l := range n.Layers {
		out[fmt.Sprintf("conv%d.weight", i)] = TensorWithShape{
			Values: l.Kernel,
			Shape:  []int{l.Filters, l.InputChannels, l.KernelSize, l.KernelSize},
			DType:  "F32",
		}
		out[fmt.Sprintf("conv%d.bias", i)] = TensorWithShape{
			Values: l.Bias,
			Shape:  []int{l.Filters},
			DType:  "F32",
		}
	}
	return out
}

// Save writes the network to a safetensors file.
func (n *Network) Save(path string) error {
	return SaveSafetensors(path, n.Tensors())
}

// SetLogger replaces the network's logger.
func (n *Network) SetLogger(l *slog.Logger) {
	if l != nil {
		n.logger = l
	}
}

// Forward runs the stack over a [Channels+1][height][width] input.
// ctx is checked between layers.
func (n *Network) Forward(ctx context.Context, input []float32, height, width int) ([]float32, error) {
	if want := (n.Channels + 1) * height * width; len(input) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrChannels, len(input), want)
	}
	x := input
	for i := range n.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var device string
		x, device = n.layerForward(i, x, height, width)
		n.notifyObserver(i, device, x)
	}
	return x, nil
}

func (n *Network) layerForward(i int, x []float32, height, width int) ([]float32, string) {
	l := &n.Layers[i]
	if n.UseGPU && !n.gpuDead.Load() {
		out, err := conv2DForwardGPU(x, l, height, width)
		if err == nil {
			return out, "gpu"
		}
		if n.gpuDead.CompareAndSwap(false, true) {
			n.logger.Warn("gpu conv failed, using cpu", "layer", i, "error", err)
		}
	}
	return conv2DForwardCPU(x, l, height, width), "cpu"
}

func convIndices(tensors map[string]TensorWithShape) ([]int, error) {
	var indices []int
	for name := range tensors {
		if !strings.HasPrefix(name, "conv") || !strings.HasSuffix(name, ".weight") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "conv"), ".weight"))
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no conv{i}.weight tensors", ErrBadWeights)
	}
	sort.Ints(indices)
	for i, idx := range indices {
		if idx != i {
			return nil, fmt.Errorf("%w: conv layers must be numbered 0..%d, found conv%d", ErrBadWeights, len(indices)-1, idx)
		}
	}
	return indices, nil
}

func sortedNames(tensors map[string]TensorWithShape) []string {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
