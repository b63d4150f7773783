package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
)

// FFmpegExecutor implements gateway.TranscodeEngine using local ffmpeg and a StorageGateway.
type FFmpegExecutor struct {
	ffmpeg          config.FFmpegConfig
	renditionPrefix string
	storage         gateway.StorageGateway
}

func NewFFmpegExecutor(cfg *config.Config, storage gateway.StorageGateway) *FFmpegExecutor {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	e := &FFmpegExecutor{storage: storage, renditionPrefix: "renditions"}
	if cfg != nil {
		e.ffmpeg = cfg.Transcode.FFmpeg
		if p := strings.TrimSpace(cfg.Storage.RenditionPrefix); p != "" {
			e.renditionPrefix = p
		}
	}
	return e
}

// RenditionObjectKey 成片的对象键 renditions/{video}/{platform}.mp4
func RenditionObjectKey(prefix, videoID string, spec vo.PlatformSpec) string {
	ext := spec.Container
	if ext == "" {
		ext = "mp4"
	}
	return path.Join(prefix, videoID, spec.Platform.String()+"."+ext)
}

// Transcode downloads the source, encodes it to the platform spec and uploads the rendition.
func (e *FFmpegExecutor) Transcode(ctx context.Context, req *gateway.TranscodeRequest) (*vo.Rendition, error) {
	if req == nil {
		return nil, errors.New("nil transcode request")
	}
	if e.storage == nil {
		return nil, errors.New("storage gateway not configured")
	}
	if e.ffmpeg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.ffmpeg.Timeout)
		defer cancel()
	}

	tempDir := os.TempDir()
	if strings.TrimSpace(e.ffmpeg.TempDir) != "" {
		tempDir = e.ffmpeg.TempDir
	}
	work := filepath.Join(tempDir, req.VideoID, req.Platform.String())
	if err := makeWorkDir(work); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(work)
		// 其它平台仍在使用时目录非空，Remove 失败即可
		_ = os.Remove(filepath.Dir(work))
	}()

	localInput := filepath.Join(work, "source"+path.Ext(req.SourceKey))
	if err := e.storage.DownloadFile(ctx, req.SourceKey, localInput); err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}
	objectKey := RenditionObjectKey(e.renditionPrefix, req.VideoID, req.Spec)
	localOutput := filepath.Join(work, path.Base(objectKey))

	durationSec := float64(req.SourceDurationMs) / 1000
	if durationSec <= 0 {
		durationSec = e.probeDurationSeconds(ctx, localInput)
	}
	args := BuildArgs(localInput, localOutput, req.Spec, e.ffmpeg)
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	logger.Infof("ffmpeg command video_uuid=%s platform=%s command=%s", req.VideoID, req.Platform, strings.Join(cmd.Args, " "))

	start := time.Now()
	if err := e.executeFFmpegCommand(ctx, cmd, durationSec, req); err != nil {
		return nil, err
	}

	info, err := os.Stat(localOutput)
	if err != nil {
		return nil, fmt.Errorf("stat output: %w", err)
	}
	url, err := e.storage.PutFile(ctx, localOutput, objectKey, req.Spec.ContentType())
	if err != nil {
		return nil, fmt.Errorf("upload rendition: %w", err)
	}
	logger.Info("rendition uploaded", map[string]interface{}{
		"video_uuid": req.VideoID,
		"platform":   req.Platform.String(),
		"object_key": objectKey,
		"size_bytes": info.Size(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return &vo.Rendition{
		ObjectKey:     objectKey,
		URL:           url,
		FileSizeBytes: info.Size(),
		Width:         req.Spec.Width,
		Height:        req.Spec.Height,
	}, nil
}

// makeWorkDir 同一视频的另一个平台可能刚好删除了共享的父目录，重试一次
func makeWorkDir(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		err = os.MkdirAll(dir, 0o755)
	}
	return err
}

func (e *FFmpegExecutor) binary() string {
	if e.ffmpeg.BinaryPath != "" {
		return e.ffmpeg.BinaryPath
	}
	return "ffmpeg"
}

func (e *FFmpegExecutor) probeBinary() string {
	if e.ffmpeg.ProbePath != "" {
		return e.ffmpeg.ProbePath
	}
	return "ffprobe"
}

// BuildArgs 缩放并补边到目标尺寸，保持原始宽高比
func BuildArgs(input, output string, spec vo.PlatformSpec, ff config.FFmpegConfig) []string {
	videoCodec := "libx264"
	if strings.TrimSpace(ff.VideoCodec) != "" {
		videoCodec = ff.VideoCodec
	}
	preset := "medium"
	if strings.TrimSpace(ff.VideoPreset) != "" {
		preset = ff.VideoPreset
	}

	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", spec.Width, spec.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", spec.Width, spec.Height),
		"setsar=1",
	}
	if spec.MaxFPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=fps='min(source_fps,%d)'", spec.MaxFPS))
	}

	args := []string{
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-i", input,
		"-progress", "pipe:2",
		"-nostats",
		"-vf", strings.Join(filters, ","),
		"-c:v", videoCodec,
		"-preset", preset,
		"-pix_fmt", "yuv420p",
	}
	if spec.VideoBitrate != "" {
		args = append(args, "-b:v", spec.VideoBitrate, "-maxrate", spec.VideoBitrate, "-bufsize", doubleRate(spec.VideoBitrate))
	}
	if ff.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(ff.Threads))
	}
	audioBitrate := spec.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = "128k"
	}
	args = append(args, "-c:a", "aac", "-b:a", audioBitrate)
	if spec.MaxDuration > 0 {
		args = append(args, "-t", strconv.Itoa(spec.MaxDuration))
	}
	if spec.Container == "" || spec.Container == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-y", output)
}

// doubleRate "6M" -> "12M"，无法解析时原样返回
func doubleRate(rate string) string {
	n := len(rate)
	unit := ""
	if n > 0 && (rate[n-1] < '0' || rate[n-1] > '9') {
		unit = rate[n-1:]
		rate = rate[:n-1]
	}
	v, err := strconv.Atoi(rate)
	if err != nil {
		return rate + unit
	}
	return strconv.Itoa(v*2) + unit
}

func (e *FFmpegExecutor) executeFFmpegCommand(ctx context.Context, cmd *exec.Cmd, durationSec float64, req *gateway.TranscodeRequest) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	progressDone := make(chan struct{})
	buf := make([]string, 0, 200)
	go func() {
		defer close(progressDone)
		scanFFmpegProgress(stderr, durationSec, &buf, func(pct int) {
			logger.Debug("ffmpeg progress", map[string]interface{}{
				"video_uuid": req.VideoID,
				"platform":   req.Platform.String(),
				"percent":    pct,
			})
		})
	}()

	done := make(chan error, 1)
	go func() {
		<-progressDone
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
	case err := <-done:
		if err == nil {
			return nil
		}
		tail := buf
		if n := len(tail); n > 20 {
			tail = tail[n-20:]
		}
		logger.Errorf("ffmpeg failed video_uuid=%s platform=%s tail_stderr=%s", req.VideoID, req.Platform, strings.Join(tail, "\n"))
		if len(tail) > 0 {
			return fmt.Errorf("ffmpeg: %w: %s", err, tail[len(tail)-1])
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
}

// scanFFmpegProgress 解析 -progress 输出，其余行保留最近 200 行用于错误定位
func scanFFmpegProgress(stderr io.Reader, durationSec float64, capture *[]string, progressCb func(int)) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	last := -1
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "out_time_ms=") {
			ms, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
			if err == nil && durationSec > 0 && progressCb != nil {
				pct := int(ms / 1e6 / durationSec * 100)
				if pct > 99 {
					pct = 99
				}
				if pct >= 0 && pct/10 != last/10 {
					last = pct
					progressCb(pct)
				}
			}
			continue
		}
		if strings.Contains(line, "=") && !strings.Contains(line, " ") {
			// 其它 -progress 键值行
			continue
		}
		b := *capture
		if len(b) >= 200 {
			b = b[1:]
		}
		*capture = append(b, line)
	}
}

// probeDurationSeconds 调用 ffprobe 获取输入时长（秒），失败则返回 0。
func (e *FFmpegExecutor) probeDurationSeconds(ctx context.Context, inputPath string) float64 {
	cmd := exec.CommandContext(ctx, e.probeBinary(), "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", inputPath)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return val
}
