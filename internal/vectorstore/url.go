package vectorstore

import (
	"fmt"
	"net/url"
	"strconv"
)

// splitHostPort extracts host/port from a "scheme://host:port" Qdrant URL. The qdrant-go-client
// dials by host/port rather than by URL string.
func splitHostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse qdrant url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("qdrant url %q has no host", rawURL)
	}
	portStr := u.Port()
	if portStr == "" {
		return host, 6334, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("qdrant url %q has invalid port: %w", rawURL, err)
	}
	return host, port, nil
}
