// Package transport is the agent-facing HTTP API. Agents hold a session
// token (minted at registration, presented via the X-Session header) and
// drive their avatar through small JSON commands; all game rules live in the
// engine.
package transport

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/gridfall/server/internal/engine"
)

const sessionHeader = "X-Session"

// Server routes the JSON API onto the engine.
type Server struct {
	eng *engine.Engine
	log *zap.Logger
	mux *http.ServeMux
}

func NewServer(eng *engine.Engine, log *zap.Logger) *Server {
	s := &Server{eng: eng, log: log, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /v1/register", s.handleRegister)
	s.mux.HandleFunc("POST /v1/reconnect", s.handleReconnect)
	s.mux.HandleFunc("POST /v1/rename", s.handleRename)
	s.mux.HandleFunc("POST /v1/logout", s.handleLogout)

	s.mux.HandleFunc("GET /v1/look", s.handleLook)
	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /v1/messages", s.handleMessages)
	s.mux.HandleFunc("GET /v1/events", s.handleEvents)

	s.mux.HandleFunc("POST /v1/move", s.handleMove)
	s.mux.HandleFunc("POST /v1/attack", s.handleAttack)
	s.mux.HandleFunc("POST /v1/gather", s.handleGather)
	s.mux.HandleFunc("POST /v1/say", s.handleSay)
	s.mux.HandleFunc("POST /v1/levelup", s.handleLevelUp)
	s.mux.HandleFunc("POST /v1/skill", s.handleSkill)

	return s
}

// Mux exposes the router so the caller can mount extra routes (the spectator
// feed) before serving.
func (s *Server) Mux() *http.ServeMux { return s.mux }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// envelope is the uniform response shape: exactly one of Result or Error is
// set.
type envelope struct {
	OK     bool      `json:"ok"`
	Result any       `json:"result,omitempty"`
	Error  *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{OK: true, Result: result})
}

// writeError maps game rejections to 400 with their code; anything else is an
// internal failure and stays opaque to the caller.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	var gerr *engine.GameError
	if errors.As(err, &gerr) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(envelope{Error: &apiError{Code: gerr.Code, Message: gerr.Message}})
		return
	}
	s.log.Error("request failed", zap.Error(err))
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(envelope{Error: &apiError{Code: "E_INTERNAL", Message: "internal error"}})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(envelope{Error: &apiError{Code: "E_BAD_REQUEST", Message: "malformed json body"}})
		return false
	}
	return true
}

// newSessionID mints an unguessable session token.
func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type registerRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret,omitempty"`
}

type registerResponse struct {
	Session     string           `json:"session"`
	Agent       engine.AgentView `json:"agent"`
	Reconnected bool             `json:"reconnected"`
}

// handleRegister mints a session when the caller has none, so a brand-new
// agent needs no prior state beyond picking a name.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	session := r.Header.Get(sessionHeader)
	if session == "" {
		var err error
		if session, err = newSessionID(); err != nil {
			s.writeError(w, err)
			return
		}
	}
	res, err := s.eng.Register(r.Context(), session, req.Name, req.Secret)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, registerResponse{Session: session, Agent: res.Agent, Reconnected: res.Reconnected})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	session := r.Header.Get(sessionHeader)
	if session == "" {
		var err error
		if session, err = newSessionID(); err != nil {
			s.writeError(w, err)
			return
		}
	}
	res, err := s.eng.Reconnect(r.Context(), session, req.Name, req.Secret)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, registerResponse{Session: session, Agent: res.Agent, Reconnected: res.Reconnected})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.eng.Rename(r.Context(), r.Header.Get(sessionHeader), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, view)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Logout(r.Context(), r.Header.Get(sessionHeader)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, map[string]bool{"logged_out": true})
}

func (s *Server) handleLook(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Look(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Status(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.eng.Messages(r.Context(), r.Header.Get(sessionHeader), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, msgs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.eng.Events(r.Context(), r.URL.Query().Get("kind"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, events)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.eng.Move(r.Context(), r.Header.Get(sessionHeader), req.Direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.eng.Attack(r.Context(), r.Header.Get(sessionHeader), req.Direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleGather(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Gather(r.Context(), r.Header.Get(sessionHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.eng.Communicate(r.Context(), r.Header.Get(sessionHeader), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleLevelUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Skill string `json:"skill"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.eng.LevelUpSkill(r.Context(), r.Header.Get(sessionHeader), req.Skill)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Skill     string `json:"skill"`
		Direction string `json:"direction,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.eng.UseSkill(r.Context(), r.Header.Get(sessionHeader), req.Skill, req.Direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, res)
}
