package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/your-org/videoqa/internal/config"
)

// Handle is an open, finite video source.
// A Handle is owned by a single request and must be closed when the request ends.
type Handle interface {
	FrameRate() float64
	FrameCount() int
	// Duration is FrameCount / FrameRate, in seconds.
	Duration() float64
	// ReadFrame decodes the frame at the given zero-based index.
	ReadFrame(ctx context.Context, index int) (image.Image, error)
	Close() error
}

// Opener acquires a Handle for a video file.
type Opener interface {
	Open(ctx context.Context, path string) (Handle, error)
}

// VideoInfo is what ffprobe reports about the first video stream.
type VideoInfo struct {
	FPS        float64
	FrameCount int
	Duration   float64
	Width      int
	Height     int
	Codec      string
}

// FFmpegDecoder opens videos with ffprobe and decodes single frames with ffmpeg.
type FFmpegDecoder struct {
	ffmpeg  string
	ffprobe string
}

func NewFFmpegDecoder(cfg config.FFmpegConfig) *FFmpegDecoder {
	return &FFmpegDecoder{ffmpeg: cfg.FFmpegPath, ffprobe: cfg.FFprobePath}
}

// Open probes path and returns a handle. It fails if the file is missing,
// is not a container ffprobe understands, or has no video stream.
func (d *FFmpegDecoder) Open(ctx context.Context, path string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	info, err := d.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	return &ffmpegHandle{decoder: d, path: path, info: *info}, nil
}

// Probe runs ffprobe against path.
func (d *FFmpegDecoder) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, d.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,r_frame_rate,avg_frame_rate,nb_frames,duration:format=duration",
		"-print_format", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(output)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(output []byte) (*VideoInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no video stream")
	}
	s := probe.Streams[0]

	info := &VideoInfo{
		Width:  s.Width,
		Height: s.Height,
		Codec:  s.CodecName,
	}

	// avg_frame_rate tracks what a decoder actually delivers; r_frame_rate is the fallback.
	info.FPS = parseRate(s.AvgFrameRate)
	if info.FPS == 0 {
		info.FPS = parseRate(s.RFrameRate)
	}

	duration := parseFloat(s.Duration)
	if duration == 0 {
		duration = parseFloat(probe.Format.Duration)
	}

	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.FPS > 0 && duration > 0 {
		// Containers such as webm/mkv don't carry a frame count.
		info.FrameCount = int(math.Round(duration * info.FPS))
	}

	if info.FPS > 0 {
		info.Duration = float64(info.FrameCount) / info.FPS
	}
	return info, nil
}

// parseRate parses ffprobe's "num/den" rationals. Anything unreadable yields 0.
func parseRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return parseFloat(rate)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

type ffmpegHandle struct {
	decoder *FFmpegDecoder
	path    string
	info    VideoInfo

	mu     sync.Mutex
	closed bool
}

func (h *ffmpegHandle) FrameRate() float64 { return h.info.FPS }
func (h *ffmpegHandle) FrameCount() int    { return h.info.FrameCount }
func (h *ffmpegHandle) Duration() float64  { return h.info.Duration }

// ReadFrame selects exactly one frame by index and returns it at source resolution.
func (h *ffmpegHandle) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, errors.New("read from closed video handle")
	}
	if index < 0 || (h.info.FrameCount > 0 && index >= h.info.FrameCount) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", index, h.info.FrameCount)
	}

	cmd := exec.CommandContext(ctx, h.decoder.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-i", h.path,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, index),
		"-vsync", "0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame %d: %w: %s", index, err, strings.TrimSpace(stderr.String()))
	}

	data, err := firstJPEG(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame %d: %w", index, err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", index, err)
	}
	return img, nil
}

// Close is idempotent. Frames are decoded by short-lived processes, so there is
// nothing left running once ReadFrame returns.
func (h *ffmpegHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
