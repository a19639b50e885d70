package nn

import (
	"fmt"

	"github.com/openfluke/neuralterrain/gpu"
	"github.com/openfluke/webgpu/wgpu"
)

// generateConv2DShader creates the WGSL shader for one same-padded,
// stride 1 Conv2D layer with its activation fused in.
func generateConv2DShader(inChannels, outChannels, height, width, kSize, padding int, activation ActivationType) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> input: array<f32>;      // [inC][H][W]
@group(0) @binding(1) var<storage, read> kernel: array<f32>;     // [outC][inC][kH][kW]
@group(0) @binding(2) var<storage, read> bias: array<f32>;       // [outC]
@group(0) @binding(3) var<storage, read_write> output: array<f32>; // [outC][H][W]

const IN_C: u32 = %du;
const OUT_C: u32 = %du;
const H: u32 = %du;
const W: u32 = %du;
const K_SIZE: u32 = %du;
const PADDING: i32 = %d;

@compute @workgroup_size(256, 1, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= OUT_C * H * W) { return; }

    // Decode indices: [oc][oh][ow]
    let oc = idx / (H * W);
    let rem = idx %% (H * W);
    let oh = rem / W;
    let ow = rem %% W;

    var sum = bias[oc];
    for (var ic: u32 = 0u; ic < IN_C; ic = ic + 1u) {
        for (var kh: u32 = 0u; kh < K_SIZE; kh = kh + 1u) {
            for (var kw: u32 = 0u; kw < K_SIZE; kw = kw + 1u) {
                let ih = i32(oh) + i32(kh) - PADDING;
                let iw = i32(ow) + i32(kw) - PADDING;
                if (ih >= 0 && ih < i32(H) && iw >= 0 && iw < i32(W)) {
                    let input_idx = ic * H * W + u32(ih) * W + u32(iw);
                    let kernel_idx = ((oc * IN_C + ic) * K_SIZE + kh) * K_SIZE + kw;
                    sum = sum + input[input_idx] * kernel[kernel_idx];
                }
            }
        }
    }

    output[idx] = %s;
}
`, inChannels, outChannels, height, width, kSize, padding, activationWGSL(activation))
}

// conv2DForwardGPU runs one layer on the shared WebGPU device. The layout
// matches conv2DForwardCPU.
func conv2DForwardGPU(input []float32, config *LayerConfig, height, width int) ([]float32, error) {
	c, err := gpu.GetContext()
	if err != nil {
		return nil, err
	}
	dev := c.Device

	inC := config.InputChannels
	outC := config.Filters
	if want := inC * height * width; len(input) != want {
		return nil, fmt.Errorf("input size mismatch: got %d, expected %d", len(input), want)
	}

	shader := generateConv2DShader(inC, outC, height, width, config.KernelSize, config.Padding, config.Activation)
	module, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "conv2d_fwd_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shader},
	})
	if err != nil {
		return nil, fmt.Errorf("CreateShaderModule: %w", err)
	}
	defer module.Release()

	pipeline, err := dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "conv2d_fwd_pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	outputSize := outC * height * width
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst

	inputBuf, err := gpu.NewFloatBuffer(input, usage)
	if err != nil {
		return nil, err
	}
	defer gpu.FreeBuffer(inputBuf)

	kernelBuf, err := gpu.NewFloatBuffer(config.Kernel, usage)
	if err != nil {
		return nil, err
	}
	defer gpu.FreeBuffer(kernelBuf)

	biasBuf, err := gpu.NewFloatBuffer(config.Bias, usage)
	if err != nil {
		return nil, err
	}
	defer gpu.FreeBuffer(biasBuf)

	outputBuf, err := gpu.NewStorageBuffer("conv2d_output", outputSize)
	if err != nil {
		return nil, err
	}
	defer gpu.FreeBuffer(outputBuf)

	bg, err := dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "conv2d_fwd_bg",
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: inputBuf, Offset: 0, Size: inputBuf.GetSize()},
			{Binding: 1, Buffer: kernelBuf, Offset: 0, Size: kernelBuf.GetSize()},
			{Binding: 2, Buffer: biasBuf, Offset: 0, Size: biasBuf.GetSize()},
			{Binding: 3, Buffer: outputBuf, Offset: 0, Size: outputBuf.GetSize()},
		},
	})
	if err != nil {
		return nil, err
	}
	defer bg.Release()

	enc, err := dev.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups((uint32(outputSize)+255)/256, 1, 1)
	pass.End()
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, err
	}
	c.Queue.Submit(cb)
	cb.Release()

	return gpu.ReadBuffer(outputBuf, outputSize)
}
