package usersync

import (
	"net/http"
	"regexp"

	"github.com/golang/glog"
)

// PixelSink receives the sync pixel URLs extracted from a bid response and
// materializes them out of band, instead of the markup being inlined into
// the creative. Implementations must tolerate an empty slice.
type PixelSink interface {
	RenderPixels(urls []string)
}

var pixelSrcPattern = regexp.MustCompile(`(?i)<(?:img|iframe)[^>]*?\bsrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// ParsePixelURLs extracts every pixel URL embedded in sync pixel markup.
// Both img and iframe tags are recognized; URLs come back in document order.
func ParsePixelURLs(markup string) []string {
	matches := pixelSrcPattern.FindAllStringSubmatch(markup, -1)
	if len(matches) == 0 {
		return nil
	}

	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		pixelURL := match[1]
		if pixelURL == "" {
			pixelURL = match[2]
		}
		if pixelURL != "" {
			urls = append(urls, pixelURL)
		}
	}
	return urls
}

// HTTPSink fires each pixel as a server-side 1x1 image fetch. The response
// bodies are discarded; sync pixels only matter for the request they cause.
type HTTPSink struct {
	Client *http.Client
}

func (s *HTTPSink) RenderPixels(urls []string) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	for _, pixelURL := range urls {
		resp, err := client.Get(pixelURL)
		if err != nil {
			glog.V(2).Infof("usersync: pixel fetch failed for %s: %v", pixelURL, err)
			continue
		}
		resp.Body.Close()
	}
}

// NopSink ignores all pixels. It is the default when no out-of-band sync is
// configured.
type NopSink struct{}

func (NopSink) RenderPixels(urls []string) {}
