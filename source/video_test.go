package source

import (
	"testing"
	"time"
)

func TestNewVideoDefaultsPlaybackSpeed(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "x.mp4"})
	if v.config.PlaybackSpeed != 1.0 {
		t.Fatalf("PlaybackSpeed = %v, want 1.0", v.config.PlaybackSpeed)
	}
}

func TestNewVideoKeepsExplicitPlaybackSpeed(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "x.mp4", PlaybackSpeed: 2.0})
	if v.config.PlaybackSpeed != 2.0 {
		t.Fatalf("PlaybackSpeed = %v, want 2.0", v.config.PlaybackSpeed)
	}
}

func TestVideoNextFrameBeforePrepareFails(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "x.mp4"})
	_, err := v.NextFrame()
	if err == nil {
		t.Fatal("expected an error calling NextFrame before Prepare")
	}
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != KindNotPrepared {
		t.Fatalf("err = %#v, want *Error{Kind: KindNotPrepared}", err)
	}
}

func TestVideoNextFrameReturnsBlackBeforeFirstDecodedFrame(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "does-not-exist.mp4"})
	if err := v.Prepare(4, 4); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer v.Release()

	frame, err := v.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	px := frame.Image.RGBAAt(0, 0)
	if px.R != 0 || px.G != 0 || px.B != 0 || px.A != 0xff {
		t.Fatalf("placeholder frame pixel = %+v, want opaque black", px)
	}
}

func TestVideoIsAnimatedAndFrameDuration(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "x.mp4"})
	if !v.IsAnimated() {
		t.Fatal("video should always report animated")
	}
	if v.FrameDuration() != 33*time.Millisecond {
		t.Fatalf("FrameDuration = %v, want 33ms", v.FrameDuration())
	}
}

func TestVideoReleaseStopsDecodeLoopPromptly(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "does-not-exist.mp4"})
	if err := v.Prepare(4, 4); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	done := make(chan struct{})
	go func() {
		v.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Release did not return promptly after cancellation")
	}

	if v.prepared {
		t.Fatal("expected prepared to be cleared after Release")
	}
}

func TestVideoDescribe(t *testing.T) {
	v := NewVideo(VideoConfig{Path: "x.mp4", LoopPlayback: true, HWAccel: true})
	got := v.Describe()
	if got == "" {
		t.Fatal("expected a non-empty description")
	}
}

func TestHWDecoderFFmpegArgs(t *testing.T) {
	if args := hwNone.ffmpegArgs(); args != nil {
		t.Fatalf("hwNone.ffmpegArgs() = %v, want nil", args)
	}
	if args := hwVAAPI.ffmpegArgs(); len(args) != 2 || args[0] != "-hwaccel" || args[1] != "vaapi" {
		t.Fatalf("hwVAAPI.ffmpegArgs() = %v, want [-hwaccel vaapi]", args)
	}
	if args := hwNVDEC.ffmpegArgs(); len(args) != 2 || args[1] != "cuda" {
		t.Fatalf("hwNVDEC.ffmpegArgs() = %v, want [-hwaccel cuda]", args)
	}
}
