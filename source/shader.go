package source

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"
)

// copyBytesPerRowAlignment is wgpu's required alignment for
// copy_texture_to_buffer rows.
const copyBytesPerRowAlignment = 256

// ShaderConfig configures a GPU procedural shader source. CustomPath, if
// set, takes precedence over Preset; Preset defaults to
// ShaderPresetGradient when neither is set.
type ShaderConfig struct {
	// Provider supplies the shared GPU device/queue. The shader source
	// never creates its own adapter or device; it borrows the host's.
	Provider gpucontext.DeviceProvider
	// CustomPath, if non-empty, is read as a WGSL file on NewShader.
	CustomPath string
	// Preset selects a built-in WGSL program when CustomPath is empty.
	Preset ShaderPreset
	// FPSLimit caps render frequency; defaults to 30 if zero.
	FPSLimit int
}

// uniforms mirrors the WGSL-side uniform buffer layout: resolution (2x
// f32), time (f32), and trailing padding to keep the struct 16-byte
// aligned as WGSL uniform blocks require.
type uniforms struct {
	resolutionX, resolutionY float32
	elapsed                  float32
	_padding                 float32
}

func (u uniforms) bytes() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(u.resolutionX))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(u.resolutionY))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(u.elapsed))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(u._padding))
	return buf
}

// bytesToUint32 packs a little-endian byte slice (as produced by
// naga.Compile) into the uint32 words the HAL shader source expects.
func bytesToUint32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

// rgbaFromPixels wraps a tightly-packed RGBA byte buffer as an
// *image.RGBA without copying.
func rgbaFromPixels(width, height int, pixels []byte) *image.RGBA {
	return &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// Shader renders a WGSL fragment program to an offscreen texture each
// frame and reads the result back to host memory.
type Shader struct {
	config     ShaderConfig
	wgslSource string

	device hal.Device
	queue  hal.Queue

	pipeline       hal.RenderPipeline
	uniformBuffer  hal.Buffer
	bindGroup      hal.BindGroup
	outputTexture  hal.Texture
	outputView     hal.TextureView
	outputBuffer   hal.Buffer

	width, height int
	bytesPerRow   uint32
	startTime     time.Time
	prepared      bool
}

// NewShader creates a shader source, resolving CustomPath/Preset to
// concrete WGSL text. The device/queue are not acquired until Prepare
// is called with concrete dimensions.
func NewShader(config ShaderConfig) (*Shader, error) {
	if config.FPSLimit <= 0 {
		config.FPSLimit = 30
	}

	wgslSource := config.Preset.wgsl()
	if config.CustomPath != "" {
		custom, err := LoadCustomShader(config.CustomPath)
		if err != nil {
			return nil, newErr(KindConfig, "shader.new", err)
		}
		wgslSource = custom
	}

	return &Shader{config: config, wgslSource: wgslSource, startTime: time.Now()}, nil
}

func alignedBytesPerRow(width int) uint32 {
	unaligned := uint32(width * 4)
	return (unaligned + copyBytesPerRowAlignment - 1) / copyBytesPerRowAlignment * copyBytesPerRowAlignment
}

func (s *Shader) initGPU(width, height int) error {
	if s.config.Provider == nil {
		return fmt.Errorf("no GPU device provider configured")
	}

	device, ok := s.config.Provider.Device().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("device provider returned no usable HAL device")
	}
	queue, ok := s.config.Provider.Queue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("device provider returned no usable HAL queue")
	}

	spirv, err := naga.Compile(s.wgslSource)
	if err != nil {
		return fmt.Errorf("compile shader: %w", err)
	}

	shaderModule, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "waybg shader",
		Source: hal.ShaderSource{SPIRV: bytesToUint32(spirv)},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	uniformBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "waybg shader uniforms",
		Size:  16,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}

	bindGroupLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "waybg shader bind group layout",
		Entries: []types.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: types.ShaderStageVertex | types.ShaderStageFragment,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeUniform,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "waybg shader bind group",
		Layout: bindGroupLayout,
		Entries: []hal.BindGroupEntry{
			{Binding: 0, Buffer: uniformBuffer},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "waybg shader pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "waybg shader pipeline",
		Layout: pipelineLayout,
		Vertex: hal.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []types.ColorTargetState{
				{Format: gputypes.TextureFormatRGBA8Unorm, WriteMask: types.ColorWriteAll},
			},
		},
		Primitive: types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}

	outputTexture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:     "waybg shader output",
		Size:      types.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Dimension: types.TextureDimension2D,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output texture: %w", err)
	}
	outputView, err := device.CreateTextureView(outputTexture, &hal.TextureViewDescriptor{})
	if err != nil {
		return fmt.Errorf("create output texture view: %w", err)
	}

	bytesPerRow := alignedBytesPerRow(width)
	outputBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "waybg shader readback",
		Size:  uint64(bytesPerRow) * uint64(height),
		Usage: gputypes.BufferUsageCopyDst | gputypes.BufferUsageMapRead,
	})
	if err != nil {
		return fmt.Errorf("create readback buffer: %w", err)
	}

	s.device = device
	s.queue = queue
	s.pipeline = pipeline
	s.uniformBuffer = uniformBuffer
	s.bindGroup = bindGroup
	s.outputTexture = outputTexture
	s.outputView = outputView
	s.outputBuffer = outputBuffer
	s.width, s.height = width, height
	s.bytesPerRow = bytesPerRow
	return nil
}

func (s *Shader) Prepare(width, height int) error {
	if s.device == nil || s.width != width || s.height != height {
		if err := s.initGPU(width, height); err != nil {
			return newErr(KindGPUUnavailable, "shader.prepare", err)
		}
	}
	s.prepared = true
	return nil
}

func (s *Shader) renderFrame() ([]byte, error) {
	elapsed := float32(time.Since(s.startTime).Seconds())
	u := uniforms{resolutionX: float32(s.width), resolutionY: float32(s.height), elapsed: elapsed}
	s.queue.WriteBuffer(s.uniformBuffer, 0, u.bytes())

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "waybg shader render"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}

	pass, err := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "waybg shader pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{View: s.outputView, LoadOp: types.LoadOpClear, StoreOp: types.StoreOpStore},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("begin render pass: %w", err)
	}
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		return nil, fmt.Errorf("end render pass: %w", err)
	}

	encoder.CopyTextureToBuffer(
		hal.ImageCopyTexture{Texture: s.outputTexture},
		hal.ImageCopyBuffer{
			Buffer: s.outputBuffer,
			Layout: hal.TextureDataLayout{BytesPerRow: s.bytesPerRow, RowsPerImage: uint32(s.height)},
		},
		types.Extent3D{Width: uint32(s.width), Height: uint32(s.height), DepthOrArrayLayers: 1},
	)

	cmdBuf, err := encoder.Finish()
	if err != nil {
		return nil, fmt.Errorf("finish command buffer: %w", err)
	}

	fence, err := s.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer s.device.DestroyFence(fence)

	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ok, err := s.device.Wait(fence, 1, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("GPU readback timed out")
	}

	padded := make([]byte, uint64(s.bytesPerRow)*uint64(s.height))
	if err := s.queue.ReadBuffer(s.outputBuffer, 0, padded); err != nil {
		return nil, fmt.Errorf("read back output buffer: %w", err)
	}

	unpadded := make([]byte, s.width*s.height*4)
	rowBytes := s.width * 4
	for row := 0; row < s.height; row++ {
		src := padded[row*int(s.bytesPerRow) : row*int(s.bytesPerRow)+rowBytes]
		copy(unpadded[row*rowBytes:(row+1)*rowBytes], src)
	}
	return unpadded, nil
}

func (s *Shader) NextFrame() (Frame, error) {
	if !s.prepared {
		return Frame{}, newErr(KindNotPrepared, "shader.next_frame", fmt.Errorf("not prepared"))
	}
	pixels, err := s.renderFrame()
	if err != nil {
		return Frame{}, newErr(KindGPURuntime, "shader.next_frame", err)
	}
	img := rgbaFromPixels(s.width, s.height, pixels)
	return Frame{Image: img, Timestamp: time.Now()}, nil
}

func (s *Shader) FrameDuration() time.Duration {
	fps := s.config.FPSLimit
	if fps < 1 {
		fps = 1
	}
	return time.Duration(1000/fps) * time.Millisecond
}

func (s *Shader) IsAnimated() bool { return true }

func (s *Shader) Release() {
	if s.device != nil {
		s.device.DestroyBuffer(s.uniformBuffer)
		s.device.DestroyBuffer(s.outputBuffer)
	}
	s.device, s.queue = nil, nil
	s.pipeline = nil
	s.uniformBuffer, s.outputBuffer = nil, nil
	s.bindGroup = nil
	s.outputTexture, s.outputView = nil, nil
	s.prepared = false
}

func (s *Shader) Describe() string {
	name := s.config.Preset.String()
	if s.config.CustomPath != "" {
		name = "Custom"
	}
	return fmt.Sprintf("Shader: %s (%dfps)", name, s.config.FPSLimit)
}

