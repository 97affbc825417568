package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/service"
)

// WatermarkHeader carries the store watermark, in epoch milliseconds, taken
// before the change set was read. Clients send it back as ?since= on their
// next sync.
const WatermarkHeader = "X-Sync-Watermark"

const cborContentType = "application/cbor"

func (s *Server) setWatermark(w http.ResponseWriter, at time.Time) {
	w.Header().Set(WatermarkHeader, strconv.FormatInt(at.UnixMilli(), 10))
}

// syncHandler serves a JSON change set read by load.
func syncHandler[T any](s *Server, load func(ctx context.Context, since time.Time) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, err := service.ParseWatermark(r.URL.Query().Get("since"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		watermark, err := s.store.Watermark(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}

		rows, err := load(r.Context(), since)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		s.setWatermark(w, watermark)
		writeJSON(w, r, http.StatusOK, rows)
	}
}

// handleSyncPodcasts returns the channels that changed since the watermark,
// CBOR-encoded unless ?format=json.
func (s *Server) handleSyncPodcasts(w http.ResponseWriter, r *http.Request) {
	since, err := service.ParseWatermark(r.URL.Query().Get("since"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	watermark, err := s.store.Watermark(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}

	views, err := s.changes.ChannelsChangedSince(r.Context(), since)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.setWatermark(w, watermark)

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, r, http.StatusOK, views)
		return
	}

	data, err := s.cbor.Marshal(views)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", cborContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("write cbor")
	}
}
