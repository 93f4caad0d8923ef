package source

import "fmt"

// Kind classifies a source error per the engine's error taxonomy. The
// caller uses Kind to decide whether a failure is recoverable per-tick
// (decode, gpu_runtime) or should be logged and leave the source
// uninitialized (gpu_unavailable, invalid_config).
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota
	KindConfig
	KindIO
	KindDecode
	KindGPUUnavailable
	KindGPURuntime
	KindPipeline
	KindInvalidSource
	KindInvalidConfig
	KindNotPrepared
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindGPUUnavailable:
		return "gpu_unavailable"
	case KindGPURuntime:
		return "gpu_runtime"
	case KindPipeline:
		return "pipeline"
	case KindInvalidSource:
		return "invalid_source"
	case KindInvalidConfig:
		return "invalid_config"
	case KindNotPrepared:
		return "not_prepared"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it (e.g. "animated.prepare", "shader.render_frame").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds an *Error, wrapping err (which may be nil).
func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
