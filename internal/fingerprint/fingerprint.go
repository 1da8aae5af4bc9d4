// Package fingerprint derives a best-effort device identifier for anonymous
// chat visitors. It deters repeat submissions; it is not an identity.
package fingerprint

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Prefix starts every computed fingerprint.
const Prefix = "fp_"

var wellFormed = regexp.MustCompile(`^fp_[0-9a-f]{16}$`)

// Signals are the browser attributes the widget collects.
type Signals struct {
	CanvasHash          string   `json:"canvasHash"`
	UserAgent           string   `json:"userAgent"`
	Language            string   `json:"language"`
	Languages           []string `json:"languages"`
	Platform            string   `json:"platform"`
	ScreenWidth         int      `json:"screenWidth"`
	ScreenHeight        int      `json:"screenHeight"`
	ColorDepth          int      `json:"colorDepth"`
	PixelRatio          float64  `json:"pixelRatio"`
	Timezone            string   `json:"timezone"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	DeviceMemory        float64  `json:"deviceMemory"`
	MaxTouchPoints      int      `json:"maxTouchPoints"`
	Plugins             []string `json:"plugins"`
	WebGLVendor         string   `json:"webglVendor"`
	WebGLRenderer       string   `json:"webglRenderer"`
	SessionID           string   `json:"sessionId"`
}

// Empty reports whether no device attribute was collected.
func (s Signals) Empty() bool {
	return s.CanvasHash == "" && s.UserAgent == "" && s.Platform == "" &&
		s.ScreenWidth == 0 && s.Timezone == "" && s.WebGLRenderer == ""
}

// Compute hashes the signals into an opaque "fp_<16 hex>" string. Field order
// and list order do not matter; the session id is ignored so the value stays
// stable across sessions on the same browser.
func Compute(s Signals) string {
	parts := []string{
		"canvas=" + strings.TrimSpace(s.CanvasHash),
		"ua=" + strings.TrimSpace(s.UserAgent),
		"lang=" + strings.ToLower(strings.TrimSpace(s.Language)),
		"langs=" + joinSorted(s.Languages, true),
		"platform=" + strings.TrimSpace(s.Platform),
		fmt.Sprintf("screen=%dx%dx%d@%s", s.ScreenWidth, s.ScreenHeight, s.ColorDepth, strconv.FormatFloat(s.PixelRatio, 'f', -1, 64)),
		"tz=" + strings.TrimSpace(s.Timezone),
		"cores=" + strconv.Itoa(s.HardwareConcurrency),
		"mem=" + strconv.FormatFloat(s.DeviceMemory, 'f', -1, 64),
		"touch=" + strconv.Itoa(s.MaxTouchPoints),
		"plugins=" + joinSorted(s.Plugins, false),
		"webgl=" + strings.TrimSpace(s.WebGLVendor) + "/" + strings.TrimSpace(s.WebGLRenderer),
	}
	sum := xxhash.Sum64String(strings.Join(parts, "|"))
	return fmt.Sprintf("%s%016x", Prefix, sum)
}

// Valid reports whether v looks like a fingerprint produced by Compute.
func Valid(v string) bool {
	return wellFormed.MatchString(v)
}

// Resolve picks the fingerprint for a request: a well-formed client value
// wins, then computed signals, then a session-scoped fallback so that a
// visitor with no signals is still deduplicated within their session.
func Resolve(provided string, signals *Signals, sessionID string) string {
	provided = strings.TrimSpace(provided)
	if Valid(provided) {
		return provided
	}
	if signals != nil && !signals.Empty() {
		return Compute(*signals)
	}
	if provided != "" {
		return fmt.Sprintf("%s%016x", Prefix, xxhash.Sum64String("raw="+provided))
	}
	if sessionID != "" {
		return fmt.Sprintf("%s%016x", Prefix, xxhash.Sum64String("session="+sessionID))
	}
	return ""
}

func joinSorted(values []string, lower bool) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v != "" {
			cleaned = append(cleaned, v)
		}
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, ",")
}
