// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/silo-farm/silo/log"
)

// RequestLoggerHandler logs every call with its outcome. Ledger mutations
// carry small JSON bodies (ids and decimal amounts), so those are logged
// too; the body is re-buffered for the wrapped handler.
func RequestLoggerHandler(handler http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Method != http.MethodGet && r.Body != nil {
			var err error
			if body, err = io.ReadAll(r.Body); err != nil {
				logger.Warn("dropping request with unreadable body",
					"method", r.Method, "uri", r.URL.String(), "err", err)
				http.Error(w, "unreadable body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		start := time.Now()
		rec := newStatusRecorder(w)
		handler.ServeHTTP(rec, r)

		ctx := []any{
			"method", r.Method,
			"uri", r.URL.String(),
			"status", rec.statusCode,
			"duration", time.Since(start),
		}
		if len(body) > 0 {
			ctx = append(ctx, "body", string(body))
		}
		logger.Info("api request", ctx...)
	})
}
