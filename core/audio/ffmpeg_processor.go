package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// FFprobeProber implements Prober by piping the stream into ffprobe.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a new FFprobeProber.
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	return &FFprobeProber{ffprobePath: ffprobePath}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs ffprobe with the stream on stdin. The context bounds the child process.
func (p *FFprobeProber) Probe(ctx context.Context, r io.Reader) (StreamInfo, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration,bit_rate",
		"-of", "json",
		"-i", "pipe:0",
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdin = r
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe execution failed: %w\nFFprobe Error: %s", err, stderr.String())
	}
	return parseProbeOutput(out.Bytes())
}

// parseProbeOutput turns ffprobe JSON into StreamInfo. Missing fields stay zero.
func parseProbeOutput(data []byte) (StreamInfo, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(data, &probeData); err != nil {
		return StreamInfo{}, fmt.Errorf("failed to unmarshal ffprobe output: %w\nFFprobe Output: %s", err, string(data))
	}

	var info StreamInfo
	if probeData.Format.Duration != "" {
		duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
		if err != nil {
			return StreamInfo{}, fmt.Errorf("failed to parse duration string %q: %w", probeData.Format.Duration, err)
		}
		info.Duration = duration
	}
	if probeData.Format.BitRate != "" {
		bps, err := strconv.ParseInt(probeData.Format.BitRate, 10, 64)
		if err != nil {
			return StreamInfo{}, fmt.Errorf("failed to parse bit_rate string %q: %w", probeData.Format.BitRate, err)
		}
		info.Bitrate = int(bps / 1000)
	}
	return info, nil
}
