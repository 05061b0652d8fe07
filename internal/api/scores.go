package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

func (s *Server) handleHighScores(w http.ResponseWriter, r *http.Request) {
	entries := s.opts.Scores.Scores()
	rows := make([]HighScoreRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, HighScoreRow{
			Rank:      i + 1,
			Name:      e.Name,
			Score:     e.Score,
			Display:   humanize.Comma(int64(e.Score)),
			Timestamp: e.Timestamp,
			Ago:       humanize.Time(e.Timestamp),
		})
	}
	s.writeJSON(w, http.StatusOK, HighScoresResponse{
		GameID:     s.opts.GameID,
		Capacity:   s.opts.Scores.Capacity(),
		Persistent: s.opts.Scores.Persistent(),
		Entries:    rows,
	})
}

// handleResetHighScores clears the table. It needs the admin token in
// X-Admin-Token or as a bearer token.
func (s *Server) handleResetHighScores(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tokens == nil || !s.opts.Tokens.Verify(adminToken(r)) {
		s.errorHandler.HandleUnauthorized(w, r)
		return
	}
	if err := s.opts.Scores.Reset(r.Context()); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.logger.Warn("high scores reset", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

func adminToken(r *http.Request) string {
	if tok := r.Header.Get("X-Admin-Token"); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		s.writeJSON(w, http.StatusOK, ResultsResponse{GameID: s.opts.GameID, Results: []ResultRow{}})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.errorHandler.HandleValidationError(w, r, "limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	results, err := s.opts.Results.RecentResults(r.Context(), s.opts.GameID, limit)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	rows := make([]ResultRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, ResultRow{
			ID:            res.ID,
			Score:         res.Score,
			RoundsCleared: res.RoundsCleared,
			Outcome:       res.Outcome,
			FinishedAt:    res.FinishedAt,
			Ago:           humanize.Time(res.FinishedAt),
		})
	}
	s.writeJSON(w, http.StatusOK, ResultsResponse{GameID: s.opts.GameID, Results: rows})
}
