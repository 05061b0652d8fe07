package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/highscore"
	"github.com/MJE43/photohunt/internal/scripting"
)

// handleCreateGame creates a session and starts its first game.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.opts.Manager.Start(r.Context(), nil)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.logger.Info("session created", "session", sess.ID())
	w.Header().Set("Location", "/api/v1/games/"+sess.ID())
	s.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	ids := s.opts.Manager.List()
	s.writeJSON(w, http.StatusOK, SessionsResponse{Sessions: ids, Count: len(ids)})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.stopAutoplay(id)
	if err := s.opts.Manager.Remove(id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.logger.Info("session removed", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleRestart abandons any game in progress and starts a new one.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Restart(r.Context()); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req ClickRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	side, err := engine.ParseSide(strings.ToLower(req.Image))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "image", err.Error())
		return
	}
	if req.BoxWidth <= 0 || req.BoxHeight <= 0 {
		s.errorHandler.HandleValidationError(w, r, "boxWidth", "box size must be positive")
		return
	}
	res, err := sess.Click(engine.Click{Side: side, X: req.X, Y: req.Y, BoxWidth: req.BoxWidth, BoxHeight: req.BoxHeight})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ClickResponse{ClickResult: res, Snapshot: sess.Snapshot()})
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	idx, err := sess.UseHint()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, HintResponse{Index: idx, Snapshot: sess.Snapshot()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, (*game.Session).Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, (*game.Session).Resume)
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *game.Session) error {
		sess.Quit()
		return nil
	})
}

func (s *Server) handleCancelName(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, (*game.Session).CancelNameEntry)
}

// withSession runs a state transition and replies with the new snapshot.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*game.Session) error) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSubmitName(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req NameRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	rank, err := sess.SubmitName(r.Context(), req.Name)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NameResponse{Rank: rank, Name: highscore.NormalizeName(req.Name)})
}

func (s *Server) handleStartAutoplay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req AutoplayRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		s.errorHandler.HandleValidationError(w, r, "script", "script is required")
		return
	}

	eng := scripting.NewEngine(nil, s.logger)
	interval := s.opts.AutoplayInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	eng.SetInterval(interval)

	s.autoMu.Lock()
	if prev, ok := s.autoplay[sess.ID()]; ok && prev.GetState().State == scripting.StateRunning {
		s.autoMu.Unlock()
		s.errorHandler.HandleError(w, r, NewError(ErrTypeConflict, "autoplay already running").Build())
		return
	}
	s.autoplay[sess.ID()] = eng
	s.autoMu.Unlock()

	if err := eng.Start(req.Script, sess); err != nil {
		s.errorHandler.HandleValidationError(w, r, "script", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, AutoplayResponse{Snapshot: eng.GetState()})
}

func (s *Server) handleGetAutoplay(w http.ResponseWriter, r *http.Request) {
	s.autoMu.Lock()
	eng, ok := s.autoplay[chi.URLParam(r, "id")]
	s.autoMu.Unlock()
	if !ok {
		s.writeJSON(w, http.StatusOK, AutoplayResponse{Snapshot: scripting.Snapshot{State: scripting.StateIdle}})
		return
	}
	s.writeJSON(w, http.StatusOK, AutoplayResponse{Snapshot: eng.GetState(), Logs: eng.GetLogs()})
}

func (s *Server) handleStopAutoplay(w http.ResponseWriter, r *http.Request) {
	s.stopAutoplay(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stopAutoplay(id string) {
	s.autoMu.Lock()
	eng, ok := s.autoplay[id]
	delete(s.autoplay, id)
	s.autoMu.Unlock()
	if ok {
		_ = eng.Stop()
	}
}
