package alert

import (
	"strings"

	"github.com/joshsymonds/mailrelay/internal/graph"
)

// Match reports whether msg should trigger the relay. An empty keyword
// matches every message. Otherwise the keyword must appear as a
// case-insensitive substring of the subject or the body preview.
func Match(msg graph.Message, keyword string) bool {
	if keyword == "" {
		return true
	}
	k := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(msg.Subject), k) ||
		strings.Contains(strings.ToLower(msg.BodyPreview), k)
}
