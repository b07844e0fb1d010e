package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

// DurationProber measures the playback length of encoded audio.
type DurationProber interface {
	Probe(ctx context.Context, audio []byte, format Format) (float64, error)
}

// FFProbe measures duration by demuxing every packet with the ffprobe binary.
// Container headers are only used when the stream carries no packet timing.
type FFProbe struct {
	binPath string
}

func NewFFProbe(binPath string) *FFProbe {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &FFProbe{binPath: binPath}
}

// Probe returns 0 and a KindDurationProbeFailed error when the audio cannot be decoded.
func (p *FFProbe) Probe(ctx context.Context, audio []byte, format Format) (float64, error) {
	if len(audio) == 0 {
		return 0, newError(KindDurationProbeFailed, nil, "probe duration: empty audio")
	}

	cmd := exec.CommandContext(ctx, p.binPath,
		"-v", "error",
		"-f", format.demuxer(),
		"-i", "pipe:0",
		"-select_streams", "a:0",
		"-show_entries", "packet=pts_time,duration_time:format=duration",
		"-of", "json",
	)
	cmd.Stdin = bytes.NewReader(audio)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, newError(KindDurationProbeFailed, err, fmt.Sprintf("ffprobe failed (stderr: %s)", stderr.String()))
	}

	seconds, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return 0, newError(KindDurationProbeFailed, err, "parse ffprobe output")
	}
	return seconds, nil
}

type probeOutput struct {
	Packets []struct {
		PTSTime      string `json:"pts_time"`
		DurationTime string `json:"duration_time"`
	} `json:"packets"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseProbeOutput returns the span from the first packet's start to the last
// packet's end, falling back to the container duration.
func parseProbeOutput(data []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode json: %w", err)
	}

	first, last := math.Inf(1), math.Inf(-1)
	for _, pkt := range out.Packets {
		pts, err := strconv.ParseFloat(pkt.PTSTime, 64)
		if err != nil {
			continue
		}
		dur, _ := strconv.ParseFloat(pkt.DurationTime, 64)
		first = math.Min(first, pts)
		last = math.Max(last, pts+dur)
	}
	if last > first {
		return last - first, nil
	}

	if out.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return 0, fmt.Errorf("parse format duration %q: %w", out.Format.Duration, err)
		}
		if seconds > 0 {
			return seconds, nil
		}
	}

	return 0, fmt.Errorf("no decodable audio packets")
}
