package providers

import "net/http"

// applyAuthHeaders sets a bearer Authorization header (when apiKey is non-empty) plus any
// provider-specific default headers, mirroring elf-providers' shared auth_headers helper.
func applyAuthHeaders(req *http.Request, apiKey string, defaultHeaders map[string]string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
}
