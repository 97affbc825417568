package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voyagen/confsync/internal/logging"
)

type timeResponse struct {
	Now       int64 `json:"now"`
	Simulated bool  `json:"simulated"`
}

func (s *Server) timeResponse() timeResponse {
	return timeResponse{Now: s.clock.Now().UnixMilli(), Simulated: s.clock.Simulated()}
}

func (s *Server) handleGetTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.timeResponse())
}

// handleSetTime moves the application clock to the given epoch
// milliseconds, or back to real time for "null".
func (s *Server) handleSetTime(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")
	logger := logging.FromContext(r.Context())

	if value == "null" {
		s.clock.Reset()
		logger.Info().Msg("application clock reset")
		writeJSON(w, r, http.StatusOK, s.timeResponse())
		return
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms < 0 {
		writeStatus(w, r, http.StatusBadRequest, "time must be epoch milliseconds or null, got "+strconv.Quote(value))
		return
	}
	s.clock.Set(time.UnixMilli(ms))
	logger.Info().Int64("ms", ms).Msg("application clock set")
	writeJSON(w, r, http.StatusOK, s.timeResponse())
}
