package layer

import "sync"

// softwareBuffer is an in-memory stand-in for an SHM buffer.
type softwareBuffer struct {
	pixels        []byte
	width, height int
	stride        int
}

func (b *softwareBuffer) Bytes() []byte { return b.pixels }
func (b *softwareBuffer) Width() int    { return b.width }
func (b *softwareBuffer) Height() int   { return b.height }
func (b *softwareBuffer) Stride() int   { return b.stride }
func (b *softwareBuffer) Release()      {}

// softwarePool hands out freshly allocated softwareBuffers. It keeps
// no reuse pool of its own; callers exercising eviction/reuse
// behavior belong in the cache package, not here.
type softwarePool struct{}

func (softwarePool) AcquireBuffer(width, height, stride int) (Buffer, error) {
	return &softwareBuffer{
		pixels: make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
	}, nil
}

// SoftwareSurface is a reference Surface backed by process memory.
// Committed buffers are retained so tests can assert on what was last
// drawn.
type SoftwareSurface struct {
	mu      sync.Mutex
	output  Output
	pool    softwarePool
	lastBuf Buffer
	commits int
}

// NewSoftwareSurface creates a SoftwareSurface for the given output.
func NewSoftwareSurface(output Output) *SoftwareSurface {
	return &SoftwareSurface{output: output}
}

func (s *SoftwareSurface) Output() Output { return s.output }
func (s *SoftwareSurface) Pool() Pool     { return s.pool }

func (s *SoftwareSurface) AttachAndCommit(buf Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBuf = buf
	s.commits++
	return nil
}

// LastCommitted returns the most recently committed buffer, if any.
func (s *SoftwareSurface) LastCommitted() (Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastBuf == nil {
		return nil, false
	}
	return s.lastBuf, true
}

// Commits reports how many times AttachAndCommit has been called.
func (s *SoftwareSurface) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// SoftwareManager is a reference Manager implementation driven
// entirely in process memory, with manual frame-callback triggering
// for deterministic tests.
type SoftwareManager struct {
	mu       sync.Mutex
	outputs  []Output
	surfaces map[string]*SoftwareSurface
	frames   chan string
}

// NewSoftwareManager creates a SoftwareManager with the given outputs,
// each backed by a SoftwareSurface.
func NewSoftwareManager(outputs []Output) *SoftwareManager {
	m := &SoftwareManager{
		outputs:  outputs,
		surfaces: make(map[string]*SoftwareSurface, len(outputs)),
		frames:   make(chan string, 64),
	}
	for _, o := range outputs {
		m.surfaces[o.Name] = NewSoftwareSurface(o)
	}
	return m
}

func (m *SoftwareManager) Outputs() []Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Output, len(m.outputs))
	copy(out, m.outputs)
	return out
}

func (m *SoftwareManager) Surface(output string) (Surface, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[output]
	if !ok {
		return nil, false
	}
	return s, true
}

func (m *SoftwareManager) FrameCallbacks() <-chan string {
	return m.frames
}

// FireFrameCallback simulates the compositor signaling that output is
// ready for its next frame.
func (m *SoftwareManager) FireFrameCallback(output string) {
	m.frames <- output
}
