package vo

// Orientation 画面方向
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// PlatformSpec 平台成片规格
type PlatformSpec struct {
	Platform     Platform
	Width        int
	Height       int
	VideoCodec   string
	AudioCodec   string
	VideoBitrate string
	AudioBitrate string
	MaxFPS       int
	// MaxDuration 秒，0 表示不限制
	MaxDuration int
	Container   string
}

// Orientation 由宽高推导方向
func (s PlatformSpec) Orientation() Orientation {
	if s.Height > s.Width {
		return OrientationPortrait
	}
	return OrientationLandscape
}

// ContentType 成片的 MIME 类型
func (s PlatformSpec) ContentType() string {
	if s.Container == "webm" {
		return "video/webm"
	}
	return "video/mp4"
}

// SpecOverride 部分覆盖，零值字段保持原值
type SpecOverride struct {
	Width        int
	Height       int
	VideoBitrate string
	AudioBitrate string
	MaxFPS       int
	MaxDuration  int
}

// Apply 返回应用覆盖后的新规格
func (s PlatformSpec) Apply(o SpecOverride) PlatformSpec {
	if o.Width > 0 {
		s.Width = o.Width
	}
	if o.Height > 0 {
		s.Height = o.Height
	}
	if o.VideoBitrate != "" {
		s.VideoBitrate = o.VideoBitrate
	}
	if o.AudioBitrate != "" {
		s.AudioBitrate = o.AudioBitrate
	}
	if o.MaxFPS > 0 {
		s.MaxFPS = o.MaxFPS
	}
	if o.MaxDuration > 0 {
		s.MaxDuration = o.MaxDuration
	}
	return s
}

func portrait(p Platform, vb string, fps, maxDur int) PlatformSpec {
	return PlatformSpec{Platform: p, Width: 1080, Height: 1920, VideoCodec: "h264", AudioCodec: "aac",
		VideoBitrate: vb, AudioBitrate: "128k", MaxFPS: fps, MaxDuration: maxDur, Container: "mp4"}
}

func landscape(p Platform, w, h int, vb string, fps, maxDur int) PlatformSpec {
	return PlatformSpec{Platform: p, Width: w, Height: h, VideoCodec: "h264", AudioCodec: "aac",
		VideoBitrate: vb, AudioBitrate: "192k", MaxFPS: fps, MaxDuration: maxDur, Container: "mp4"}
}

// SpecTable 平台到规格的映射
type SpecTable map[Platform]PlatformSpec

// DefaultSpecTable 内置的各平台规格
func DefaultSpecTable() SpecTable {
	return SpecTable{
		PlatformYouTube:     landscape(PlatformYouTube, 1920, 1080, "8M", 60, 0),
		PlatformTikTok:      portrait(PlatformTikTok, "6M", 60, 600),
		PlatformInstagram:   portrait(PlatformInstagram, "5M", 30, 900),
		PlatformFacebook:    landscape(PlatformFacebook, 1920, 1080, "6M", 30, 0),
		PlatformLinkedIn:    landscape(PlatformLinkedIn, 1920, 1080, "5M", 30, 600),
		PlatformTwitter:     landscape(PlatformTwitter, 1280, 720, "5M", 40, 140),
		PlatformThreads:     portrait(PlatformThreads, "5M", 30, 300),
		PlatformVimeo:       landscape(PlatformVimeo, 1920, 1080, "10M", 60, 0),
		PlatformWordPress:   landscape(PlatformWordPress, 1280, 720, "4M", 30, 0),
		PlatformDailymotion: landscape(PlatformDailymotion, 1920, 1080, "6M", 60, 0),
		PlatformNaverClip:   portrait(PlatformNaverClip, "5M", 30, 60),
	}
}

// WithOverrides 返回应用覆盖后的新表，未知平台忽略
func (t SpecTable) WithOverrides(overrides map[Platform]SpecOverride) SpecTable {
	out := make(SpecTable, len(t))
	for p, s := range t {
		out[p] = s
	}
	for p, o := range overrides {
		if s, ok := out[p]; ok {
			out[p] = s.Apply(o)
		}
	}
	return out
}

// Lookup 查询平台规格
func (t SpecTable) Lookup(p Platform) (PlatformSpec, bool) {
	s, ok := t[p]
	return s, ok
}
