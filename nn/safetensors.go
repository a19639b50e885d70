package nn

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
)

// TensorInfo describes a tensor's properties
type TensorInfo struct {
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset []int  `json:"data_offsets"`
}

// TensorWithShape is a decoded tensor together with its declared shape.
type TensorWithShape struct {
	Values []float32
	Shape  []int
	DType  string
}

// LoadSafetensors reads a safetensors file and returns tensors by name
func LoadSafetensors(filepath string) (map[string]TensorWithShape, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return LoadSafetensorsFromBytes(data)
}

// LoadSafetensorsFromBytes reads safetensors data from a byte slice and returns tensors by name
func LoadSafetensorsFromBytes(data []byte) (map[string]TensorWithShape, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("data too short: need at least 8 bytes for header size")
	}

	// Read header size (first 8 bytes, little-endian)
	headerSize := binary.LittleEndian.Uint64(data[0:8])
	if headerSize > uint64(len(data)-8) {
		return nil, fmt.Errorf("data too short: header size %d but only %d bytes available", headerSize, len(data)-8)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &rawHeader); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	// Tensor data starts after header
	allData := data[8+headerSize:]

	tensors := make(map[string]TensorWithShape)
	for name, raw := range rawHeader {
		if name == "__metadata__" {
			continue
		}

		var info TensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("tensor %s: bad header entry: %w", name, err)
		}

		width := bytesPerElement(info.DType)
		if width == 0 {
			slog.Warn("skipping tensor with unsupported dtype", "tensor", name, "dtype", info.DType)
			continue
		}
		if len(info.Offset) != 2 {
			return nil, fmt.Errorf("tensor %s: data_offsets must have two entries", name)
		}

		numElements := 1
		for _, dim := range info.Shape {
			if dim < 0 {
				return nil, fmt.Errorf("tensor %s: negative dimension %d", name, dim)
			}
			numElements *= dim
		}

		start, end := info.Offset[0], info.Offset[1]
		if start < 0 || end > len(allData) || end-start != numElements*width {
			return nil, fmt.Errorf("tensor %s: data out of bounds", name)
		}
		tensors[name] = TensorWithShape{
			Values: decodeValues(allData[start:end], info.DType, numElements),
			Shape:  info.Shape,
			DType:  info.DType,
		}
	}

	return tensors, nil
}

// SaveSafetensors writes tensors to a safetensors file
func SaveSafetensors(filepath string, tensors map[string]TensorWithShape) error {
	data, err := SerializeSafetensors(tensors)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, data, 0644)
}

// SerializeSafetensors converts tensors to safetensors format bytes.
// Supported dtypes are F32, F16 and BF16; an empty DType means F32.
func SerializeSafetensors(tensors map[string]TensorWithShape) ([]byte, error) {
	names := sortedNames(tensors)

	header := make(map[string]TensorInfo, len(tensors))
	offset := 0
	for _, name := range names {
		t := tensors[name]
		dtype := t.DType
		if dtype == "" {
			dtype = "F32"
		}
		width := bytesPerElement(dtype)
		if width == 0 {
			return nil, fmt.Errorf("unsupported dtype: %s", dtype)
		}
		size := len(t.Values) * width
		header[name] = TensorInfo{DType: dtype, Shape: t.Shape, Offset: []int{offset, offset + size}}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}

	// Build file: [header_size (8 bytes)] [header JSON] [tensor data]
	headerSize := uint64(len(headerJSON))
	result := make([]byte, 8+int(headerSize)+offset)
	binary.LittleEndian.PutUint64(result[0:8], headerSize)
	copy(result[8:], headerJSON)

	body := result[8+headerSize:]
	for _, name := range names {
		info := header[name]
		encodeValues(body[info.Offset[0]:info.Offset[1]], info.DType, tensors[name].Values)
	}
	return result, nil
}

func bytesPerElement(dtype string) int {
	switch dtype {
	case "F32":
		return 4
	case "F16", "BF16":
		return 2
	default:
		return 0
	}
}

func decodeValues(raw []byte, dtype string, n int) []float32 {
	out := make([]float32, n)
	switch dtype {
	case "F32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "F16":
		for i := range out {
			out[i] = float16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "BF16":
		for i := range out {
			out[i] = bfloat16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	return out
}

func encodeValues(dest []byte, dtype string, values []float32) {
	switch dtype {
	case "F32":
		for i, v := range values {
			binary.LittleEndian.PutUint32(dest[i*4:], math.Float32bits(v))
		}
	case "F16":
		for i, v := range values {
			binary.LittleEndian.PutUint16(dest[i*2:], float32ToFloat16(v))
		}
	case "BF16":
		for i, v := range values {
			binary.LittleEndian.PutUint16(dest[i*2:], float32ToBFloat16(v))
		}
	}
}

// float16ToFloat32 converts a float16 (half precision) to float32
func float16ToFloat32(f16 uint16) float32 {
	sign := uint32((f16 >> 15) & 0x1)
	exponent := uint32((f16 >> 10) & 0x1F)
	mantissa := uint32(f16 & 0x3FF)

	var f32bits uint32
	if exponent == 0 {
		if mantissa == 0 {
			// Zero
			f32bits = sign << 31
		} else {
			// Subnormal
			exponent = 1
			for (mantissa & 0x400) == 0 {
				mantissa <<= 1
				exponent--
			}
			mantissa &= 0x3FF
			f32bits = (sign << 31) | ((exponent + (127 - 15)) << 23) | (mantissa << 13)
		}
	} else if exponent == 0x1F {
		// Inf or NaN
		f32bits = (sign << 31) | (0xFF << 23) | (mantissa << 13)
	} else {
		// Normal
		f32bits = (sign << 31) | ((exponent + (127 - 15)) << 23) | (mantissa << 13)
	}

	return math.Float32frombits(f32bits)
}

// float32ToFloat16 converts float32 to half precision, truncating the
// mantissa. Values outside the half range saturate to infinity.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exponent := int((bits>>23)&0xFF) - 127 + 15
	mantissa := bits & 0x7FFFFF

	switch {
	case (bits>>23)&0xFF == 0xFF:
		// Inf or NaN
		if mantissa != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exponent >= 0x1F:
		return sign | 0x7C00
	case exponent <= 0:
		if exponent < -10 {
			return sign
		}
		// Subnormal
		mantissa |= 0x800000
		return sign | uint16(mantissa>>uint(14-exponent))
	default:
		return sign | uint16(exponent)<<10 | uint16(mantissa>>13)
	}
}

// bfloat16ToFloat32 converts a bfloat16 to float32
func bfloat16ToFloat32(bf16 uint16) float32 {
	// bfloat16 is just the top 16 bits of float32
	return math.Float32frombits(uint32(bf16) << 16)
}

func float32ToBFloat16(f float32) uint16 {
	return uint16(math.Float32bits(f) >> 16)
}
