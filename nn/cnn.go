package nn

import (
	"math"
	"math/rand/v2"
)

// InitConv2DLayer initializes a same-padded Conv2D layer with He-initialised
// weights. rng may be nil.
func InitConv2DLayer(inputChannels, kernelSize, filters int, activation ActivationType, rng *rand.Rand) LayerConfig {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	kernelTotal := filters * inputChannels * kernelSize * kernelSize
	kernel := make([]float32, kernelTotal)
	stddev := float32(math.Sqrt(2.0 / float64(inputChannels*kernelSize*kernelSize)))

	for i := range kernel {
		kernel[i] = float32(rng.NormFloat64()) * stddev
	}

	return LayerConfig{
		Activation:    activation,
		KernelSize:    kernelSize,
		Padding:       kernelSize / 2,
		InputChannels: inputChannels,
		Filters:       filters,
		Kernel:        kernel,
		Bias:          make([]float32, filters),
	}
}

// conv2DForwardCPU performs 2D convolution on CPU
// input shape: [inChannels][height][width] (flattened)
// output shape: [filters][height][width] (flattened), activation applied
func conv2DForwardCPU(input []float32, config *LayerConfig, height, width int) []float32 {
	inC := config.InputChannels
	kSize := config.KernelSize
	padding := config.Padding
	filters := config.Filters
	plane := height * width

	output := make([]float32, filters*plane)

	for f := 0; f < filters; f++ {
		for oh := 0; oh < height; oh++ {
			for ow := 0; ow < width; ow++ {
				sum := config.Bias[f]

				for ic := 0; ic < inC; ic++ {
					for kh := 0; kh < kSize; kh++ {
						ih := oh + kh - padding
						if ih < 0 || ih >= height {
							continue
						}
						for kw := 0; kw < kSize; kw++ {
							iw := ow + kw - padding
							if iw < 0 || iw >= width {
								continue
							}
							inputIdx := ic*plane + ih*width + iw
							kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
							sum += input[inputIdx] * config.Kernel[kernelIdx]
						}
					}
				}

				output[f*plane+oh*width+ow] = activateCPU(sum, config.Activation)
			}
		}
	}

	return output
}
