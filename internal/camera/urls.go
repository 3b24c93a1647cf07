package camera

import "strings"

// StreamURLs are the per-camera endpoints derived from the configured media
// bases. The service only templates these strings; the media server owns
// the transport.
type StreamURLs struct {
	Publish string `json:"publish"`
	HLS     string `json:"hls"`
	DASH    string `json:"dash"`
}

// URLBuilder templates publish and playback URLs from base addresses.
type URLBuilder struct {
	rtmpBase string
	httpBase string
}

// NewURLBuilder constructs a builder. rtmpBase is the nginx-rtmp publish
// application (rtmp://host/live); httpBase serves HLS and DASH renditions.
func NewURLBuilder(rtmpBase, httpBase string) *URLBuilder {
	return &URLBuilder{
		rtmpBase: strings.TrimRight(strings.TrimSpace(rtmpBase), "/"),
		httpBase: strings.TrimRight(strings.TrimSpace(httpBase), "/"),
	}
}

// For returns the camera's stream endpoints.
func (b *URLBuilder) For(c *Camera) StreamURLs {
	return StreamURLs{
		Publish: b.rtmpBase + "/" + c.StreamKey,
		HLS:     b.httpBase + "/hls/" + c.StreamKey + ".m3u8",
		DASH:    b.httpBase + "/dash/" + c.StreamKey + ".mpd",
	}
}
