// Package linkscan classifies saved URLs into content kinds and flags
// links behind known paywalls. The host and extension tables are static
// immutable configuration, loaded once at package init; the ranking
// engine itself never inspects URLs.
package linkscan

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/leo-hammett/anthist-sub000/internal/content"
)

// Classification errors
var (
	ErrEmptyURL   = errors.New("url is empty")
	ErrInvalidURL = errors.New("invalid URL format")
)

// videoHosts maps hostnames whose links are treated as video content.
// Subdomains of these hosts match as well.
var videoHosts = map[string]bool{
	"youtube.com":     true,
	"youtu.be":        true,
	"vimeo.com":       true,
	"dailymotion.com": true,
	"twitch.tv":       true,
}

// audioHosts maps hostnames whose links are treated as audio content.
var audioHosts = map[string]bool{
	"soundcloud.com":     true,
	"open.spotify.com":   true,
	"podcasts.apple.com": true,
	"overcast.fm":        true,
}

// extensionKinds maps file extensions to content kinds. Extensions not
// listed here fall through to the article default.
var extensionKinds = map[string]string{
	".pdf":  content.KindDocument,
	".epub": content.KindDocument,
	".doc":  content.KindDocument,
	".docx": content.KindDocument,
	".mp4":  content.KindVideo,
	".webm": content.KindVideo,
	".mov":  content.KindVideo,
	".mp3":  content.KindAudio,
	".m4a":  content.KindAudio,
	".ogg":  content.KindAudio,
	".wav":  content.KindAudio,
	".flac": content.KindAudio,
}

// paywallDomains lists publishers that gate articles behind a paywall.
// Matching is by registered host or any subdomain.
var paywallDomains = map[string]bool{
	"nytimes.com":        true,
	"wsj.com":            true,
	"ft.com":             true,
	"economist.com":      true,
	"bloomberg.com":      true,
	"washingtonpost.com": true,
	"newyorker.com":      true,
	"theatlantic.com":    true,
	"wired.com":          true,
	"medium.com":         true,
}

// hostMatches reports whether hostname equals domain or is a subdomain of it.
func hostMatches(hostname, domain string) bool {
	return hostname == domain || strings.HasSuffix(hostname, "."+domain)
}

// matchesAny reports whether hostname matches any domain in the table.
func matchesAny(hostname string, table map[string]bool) bool {
	for domain := range table {
		if hostMatches(hostname, domain) {
			return true
		}
	}
	return false
}

// Classify returns the content kind for a URL: video or audio when the
// host is a known media platform, document for recognized file
// extensions, and article otherwise.
func Classify(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if matchesAny(hostname, videoHosts) {
		return content.KindVideo, nil
	}
	if matchesAny(hostname, audioHosts) {
		return content.KindAudio, nil
	}

	if ext := strings.ToLower(path.Ext(parsed.Path)); ext != "" {
		if kind, ok := extensionKinds[ext]; ok {
			return kind, nil
		}
	}

	return content.KindArticle, nil
}

// IsPaywalled reports whether the URL's host is a known paywalled
// publisher. Malformed URLs are not paywalled; the caller validates
// URLs separately.
func IsPaywalled(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return false
	}

	return matchesAny(hostname, paywallDomains)
}
