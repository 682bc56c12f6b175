package gateway

import (
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

// static root candidates tried in order when none is configured.
var staticRoots = []string{"web/static", "static", "public"}

// DiscoverStaticRoot returns the directory to serve the controller UI
// from: the configured directory when set, otherwise the first existing
// default. Empty means nothing to serve.
func DiscoverStaticRoot(configured string) string {
	if configured != "" {
		return configured
	}
	for _, dir := range staticRoots {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// staticHandler serves the controller UI. The root path serves the
// directory's index document; unknown paths get a plain 404 from the
// file server.
func staticHandler(root string) http.Handler {
	if root == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}
	log.Info().Str("dir", root).Msg("serving static assets")
	return http.FileServer(http.Dir(root))
}

// qrHandler renders the controller join URL as a PNG QR code, for the
// shared screen to display.
func qrHandler(publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(publicURL, qrcode.Medium, 256)
		if err != nil {
			log.Error().Err(err).Str("url", publicURL).Msg("QR render failed")
			http.Error(w, "qr unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
