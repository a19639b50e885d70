package nn

import "fmt"

// ActivationType defines the activation function used in a layer
type ActivationType int

const (
	ActivationScaledReLU ActivationType = 0 // v * 1.1, then ReLU
	ActivationSigmoid    ActivationType = 1 // 1 / (1 + exp(-v))
	ActivationTanh       ActivationType = 2 // tanh(v)
	ActivationSoftplus   ActivationType = 3 // log(1 + exp(v))
	ActivationLeakyReLU  ActivationType = 4 // v if v >= 0, else v * 0.1
	ActivationLinear     ActivationType = 5 // identity
)

var activationNames = map[string]ActivationType{
	"scaled_relu": ActivationScaledReLU,
	"sigmoid":     ActivationSigmoid,
	"tanh":        ActivationTanh,
	"softplus":    ActivationSoftplus,
	"leaky_relu":  ActivationLeakyReLU,
	"linear":      ActivationLinear,
}

// ParseActivation maps a config name such as "leaky_relu" to its type.
func ParseActivation(name string) (ActivationType, error) {
	a, ok := activationNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown activation %q", name)
	}
	return a, nil
}

func (a ActivationType) String() string {
	for name, v := range activationNames {
		if v == a {
			return name
		}
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

// LayerConfig holds one Conv2D layer of the noise predictor. Layers run at
// stride 1 with "same" padding, so every layer keeps the spatial size.
type LayerConfig struct {
	Activation ActivationType

	KernelSize    int       // Size of convolution kernel (e.g., 3 for 3x3)
	Padding       int       // KernelSize / 2
	InputChannels int       // Input channels
	Filters       int       // Number of output filters/channels
	Kernel        []float32 // Convolution kernel weights [filters][inChannels][kernelH][kernelW]
	Bias          []float32 // Bias terms [filters]
}

// Validate checks that the weight slices match the declared geometry.
func (c *LayerConfig) Validate() error {
	if c.KernelSize <= 0 || c.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel size %d must be odd and positive", ErrBadWeights, c.KernelSize)
	}
	if c.InputChannels <= 0 || c.Filters <= 0 {
		return fmt.Errorf("%w: channels %d -> %d", ErrBadWeights, c.InputChannels, c.Filters)
	}
	if want := c.Filters * c.InputChannels * c.KernelSize * c.KernelSize; len(c.Kernel) != want {
		return fmt.Errorf("%w: kernel size mismatch: got %d, expected %d", ErrBadWeights, len(c.Kernel), want)
	}
	if len(c.Bias) != c.Filters {
		return fmt.Errorf("%w: bias size mismatch: got %d, expected %d", ErrBadWeights, len(c.Bias), c.Filters)
	}
	return nil
}
