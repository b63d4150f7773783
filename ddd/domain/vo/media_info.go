package vo

// MediaInfo 源视频探测结果
type MediaInfo struct {
	DurationMs int64   `json:"duration_ms"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	VideoCodec string  `json:"video_codec"`
	AudioCodec string  `json:"audio_codec"`
	FPS        float64 `json:"fps"`
	BitRate    int64   `json:"bit_rate"`
	FormatName string  `json:"format_name"`
}

// HasVideo 是否探测到视频流
func (m MediaInfo) HasVideo() bool {
	return m.VideoCodec != "" && m.Width > 0 && m.Height > 0
}

// Rendition 单个平台成片的产出
type Rendition struct {
	ObjectKey     string
	URL           string
	FileSizeBytes int64
	Width         int
	Height        int
}
