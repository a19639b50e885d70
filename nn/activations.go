package nn

import (
	"math"
)

// activateCPU applies the activation function on CPU
func activateCPU(v float32, activation ActivationType) float32 {
	switch activation {
	case ActivationScaledReLU:
		v = v * 1.1
		if v < 0 {
			v = 0
		}
		return v
	case ActivationSigmoid:
		return 1.0 / (1.0 + float32(math.Exp(float64(-v))))
	case ActivationTanh:
		return float32(math.Tanh(float64(v)))
	case ActivationSoftplus:
		return float32(math.Log(1.0 + math.Exp(float64(v))))
	case ActivationLeakyReLU:
		if v < 0 {
			v = v * 0.1
		}
		return v
	default:
		return v
	}
}

// activationWGSL returns the WGSL expression applying activation to `sum`.
// It mirrors activateCPU so both paths agree.
func activationWGSL(activation ActivationType) string {
	switch activation {
	case ActivationScaledReLU:
		return "max(sum * 1.1, 0.0)"
	case ActivationSigmoid:
		return "1.0 / (1.0 + exp(-sum))"
	case ActivationTanh:
		return "tanh(sum)"
	case ActivationSoftplus:
		return "log(1.0 + exp(sum))"
	case ActivationLeakyReLU:
		return "select(sum * 0.1, sum, sum >= 0.0)"
	default:
		return "sum"
	}
}
