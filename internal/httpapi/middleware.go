package httpapi

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytesDefault bounds request bodies the adapter will decode;
// queuectl's request/response payloads are small typed records, so a
// generous-but-bounded limit catches abuse without constraining any real
// caller.
const maxBodyBytesDefault = 1 << 20 // 1MB

const payloadTooLargeJSON = `{"error":{"code":"PAYLOAD_TOO_LARGE","message":"request body exceeds size limit"}}`

// maxBodyBytes limits request body size: a fast Content-Length check for
// early rejection, then an enforced MaxBytesReader for chunked or spoofed
// requests.
func maxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				writePayloadTooLarge(w)
				return
			}

			body := http.MaxBytesReader(w, r.Body, maxBytes)
			buf, err := io.ReadAll(body)
			if err != nil {
				slog.WarnContext(r.Context(), "request body size limit exceeded",
					"method", r.Method, "path", r.URL.Path, "limit", maxBytes)
				writePayloadTooLarge(w)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(buf))
			next.ServeHTTP(w, r)
		})
	}
}

func writePayloadTooLarge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	_, _ = w.Write([]byte(payloadTooLargeJSON))
}
