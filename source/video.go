package source

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/waybg/waybg"
)

// VideoConfig configures video playback. Audio is never decoded: a
// wallpaper only ever needs the frame rasters.
type VideoConfig struct {
	Path           string
	LoopPlayback   bool
	PlaybackSpeed  float64
	HWAccel        bool
}

// hwDecoder names a hardware-accelerated decode path ffmpeg can use,
// probed from `ffmpeg -hwaccels` the same way the reference player
// probes GStreamer's element registry for vaapidecodebin/nvdec.
type hwDecoder int

const (
	hwNone hwDecoder = iota
	hwVAAPI
	hwNVDEC
)

func detectHWDecoder() hwDecoder {
	out, err := exec.Command("ffmpeg", "-hwaccels").Output()
	if err != nil {
		return hwNone
	}
	text := string(out)
	switch {
	case strings.Contains(text, "vaapi"):
		return hwVAAPI
	case strings.Contains(text, "cuda"), strings.Contains(text, "nvdec"):
		return hwNVDEC
	default:
		return hwNone
	}
}

func (h hwDecoder) ffmpegArgs() []string {
	switch h {
	case hwVAAPI:
		return []string{"-hwaccel", "vaapi"}
	case hwNVDEC:
		return []string{"-hwaccel", "cuda"}
	default:
		return nil
	}
}

// Video decodes a video file to raw RGBA frames by driving ffmpeg as a
// subprocess and reading its rawvideo output, one decoder goroutine
// feeding a single-slot mailbox that NextFrame reads without blocking.
type Video struct {
	config VideoConfig

	width, height int
	prepared      bool

	mu           sync.Mutex
	currentFrame *image.RGBA
	playing      bool
	eof          bool

	cancel context.CancelFunc
	done   chan struct{}

	frameDuration time.Duration
}

// NewVideo creates a video source from configuration.
func NewVideo(config VideoConfig) *Video {
	if config.PlaybackSpeed == 0 {
		config.PlaybackSpeed = 1.0
	}
	return &Video{
		config:        config,
		frameDuration: 33 * time.Millisecond,
	}
}

func (v *Video) Prepare(width, height int) error {
	v.width, v.height = width, height
	v.prepared = true
	if v.cancel == nil {
		v.start()
	}
	return nil
}

func (v *Video) start() {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.done = make(chan struct{})

	go v.runLoop(ctx)
}

func (v *Video) runLoop(ctx context.Context) {
	defer close(v.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := v.decodeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			waybg.Logger().Error("video decode failed, retrying", "path", v.config.Path, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		v.mu.Lock()
		v.eof = true
		v.mu.Unlock()

		if !v.config.LoopPlayback {
			return
		}
	}
}

// decodeOnce runs a single ffmpeg pass end to end, writing decoded
// frames into the mailbox as they arrive.
func (v *Video) decodeOnce(ctx context.Context) error {
	hw := hwNone
	if v.config.HWAccel {
		hw = detectHWDecoder()
	}

	args := append([]string{}, hw.ffmpegArgs()...)
	args = append(args,
		"-i", v.config.Path,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", v.width, v.height),
	)
	if v.config.PlaybackSpeed != 1.0 {
		args = append(args, "-filter:v", fmt.Sprintf("setpts=%.4f*PTS", 1.0/v.config.PlaybackSpeed))
	}
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	frameSize := v.width * v.height * 4
	reader := bufio.NewReaderSize(stdout, frameSize)
	buf := make([]byte, frameSize)

	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			break
		}
		img := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
		copy(img.Pix, buf)

		v.mu.Lock()
		v.currentFrame = img
		v.playing = true
		v.mu.Unlock()
	}

	return cmd.Wait()
}

func (v *Video) NextFrame() (Frame, error) {
	if !v.prepared {
		return Frame{}, newErr(KindNotPrepared, "video.next_frame", fmt.Errorf("not prepared"))
	}

	v.mu.Lock()
	frame := v.currentFrame
	v.mu.Unlock()

	if frame == nil {
		width, height := v.width, v.height
		if width == 0 || height == 0 {
			width, height = 1920, 1080
		}
		black := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 3; i < len(black.Pix); i += 4 {
			black.Pix[i] = 0xff
		}
		return Frame{Image: black, Timestamp: time.Now()}, nil
	}

	return Frame{Image: frame, Timestamp: time.Now()}, nil
}

func (v *Video) FrameDuration() time.Duration { return v.frameDuration }

func (v *Video) IsAnimated() bool { return true }

func (v *Video) Release() {
	if v.cancel != nil {
		v.cancel()
		<-v.done
		v.cancel = nil
	}
	v.mu.Lock()
	v.currentFrame = nil
	v.playing = false
	v.eof = false
	v.mu.Unlock()
	v.prepared = false
}

func (v *Video) Describe() string {
	return fmt.Sprintf("Video: %s (loop: %t, hw_accel: %t)", v.config.Path, v.config.LoopPlayback, v.config.HWAccel)
}
