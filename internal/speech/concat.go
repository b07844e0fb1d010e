package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Concatenator joins encoded segments into one stream, inserting gap of
// silence between consecutive segments.
type Concatenator interface {
	Concat(ctx context.Context, segments [][]byte, gap time.Duration, format Format) ([]byte, error)
}

// FFmpegConcatenator re-encodes the segments through an ffmpeg concat filter graph.
type FFmpegConcatenator struct {
	binPath    string
	sampleRate int
}

// NewFFmpegConcatenator returns a concatenator that resamples to 24 kHz mono,
// the native rate of the speech provider's output.
func NewFFmpegConcatenator(binPath string) *FFmpegConcatenator {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegConcatenator{binPath: binPath, sampleRate: 24000}
}

func (c *FFmpegConcatenator) Concat(ctx context.Context, segments [][]byte, gap time.Duration, format Format) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("concat: no segments")
	}

	dir, err := os.MkdirTemp("", "readaloud-concat-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inputs := make([]string, len(segments))
	for i, seg := range segments {
		path := filepath.Join(dir, fmt.Sprintf("segment_%d.%s", i, format))
		if err := os.WriteFile(path, seg, 0o600); err != nil {
			return nil, fmt.Errorf("write segment %d: %w", i, err)
		}
		inputs[i] = path
	}

	cmd := exec.CommandContext(ctx, c.binPath, buildConcatArgs(inputs, gap, format, c.sampleRate)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg concat failed: %w (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg concat produced no output")
	}
	return stdout.Bytes(), nil
}

// buildConcatArgs lays out seg0 [gap] seg1 [gap] ... segN-1. A single anullsrc
// input is split into one copy per gap.
func buildConcatArgs(inputs []string, gap time.Duration, format Format, sampleRate int) []string {
	n := len(inputs)
	norm := fmt.Sprintf("aresample=%d,aformat=sample_fmts=fltp:channel_layouts=mono", sampleRate)

	args := []string{"-hide_banner", "-loglevel", "error"}
	for _, in := range inputs {
		args = append(args, "-f", format.demuxer(), "-i", in)
	}

	var graph strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&graph, "[%d:a]%s[a%d];", i, norm, i)
	}

	gaps := n - 1
	if gaps > 0 {
		args = append(args,
			"-f", "lavfi",
			"-t", fmt.Sprintf("%.3f", gap.Seconds()),
			"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", sampleRate),
		)
		fmt.Fprintf(&graph, "[%d:a]%s,asplit=%d", n, norm, gaps)
		for i := 0; i < gaps; i++ {
			fmt.Fprintf(&graph, "[s%d]", i)
		}
		graph.WriteString(";")
	}

	for i := 0; i < n; i++ {
		if i > 0 {
			fmt.Fprintf(&graph, "[s%d]", i-1)
		}
		fmt.Fprintf(&graph, "[a%d]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=0:a=1[out]", n+gaps)

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[out]",
		"-c:a", format.codec(),
		"-f", format.muxer(),
		"pipe:1",
	)
	return args
}
