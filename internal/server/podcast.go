package server

import (
	"net/http"

	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/models"
)

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.importer.Import(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":     "ok",
		"channel_id": res.ChannelID,
	})
}

func (s *Server) handleAllPodcasts(w http.ResponseWriter, r *http.Request) {
	views, err := s.changes.AllChannels(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, views)
}

type submitRequestBody struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	RSSLink   string `json:"rssLink"`
	Requester string `json:"requester"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := s.requests.Submit(r.Context(), models.PodcastRequest{
		Title:     body.Title,
		Author:    body.Author,
		RSSLink:   body.RSSLink,
		Requester: body.Requester,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info().Int64("request_id", req.ID).Str("rss_url", req.RSSLink).Msg("podcast requested")

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"id":     req.ID,
		"status": req.Status,
	})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeStatus(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req, err := s.requests.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, req)
}
