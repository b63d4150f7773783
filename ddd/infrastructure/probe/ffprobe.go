package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"distribution-service/ddd/domain/vo"
)

// FFProbe implements gateway.MediaProbe with the ffprobe binary.
type FFProbe struct {
	binary string
}

func NewFFProbe(binary string) *FFProbe {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{binary: binary}
}

type result struct {
	Streams []stream `json:"streams"`
	Format  format   `json:"format"`
}

type stream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

type format struct {
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Probe runs ffprobe against path and maps the first video and audio streams.
func (p *FFProbe) Probe(ctx context.Context, path string) (*vo.MediaInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ffprobe: empty path")
	}
	cmd := exec.CommandContext(ctx, p.binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return Parse(output)
}

// Parse decodes ffprobe JSON output.
func Parse(output []byte) (*vo.MediaInfo, error) {
	var r result
	if err := json.Unmarshal(output, &r); err != nil {
		return nil, fmt.Errorf("ffprobe parse: %w", err)
	}
	info := &vo.MediaInfo{
		DurationMs: int64(math.Round(parseFloat(r.Format.Duration) * 1000)),
		BitRate:    int64(parseFloat(r.Format.BitRate)),
		FormatName: r.Format.FormatName,
	}
	for _, s := range r.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FPS = parseRate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseRate(s.RFrameRate)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	return info, nil
}

// parseRate "30000/1001" -> 29.97
func parseRate(v string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(v), "/")
	if !ok {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return math.Round(n/d*100) / 100
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}
