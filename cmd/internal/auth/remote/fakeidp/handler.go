package fakeidp

import (
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 16

// Handler serves the identity API under /api and a WebSocket endpoint at
// /ws that stays open until the client leaves. The probe uses /ws.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Route("/api", func(r chi.Router) {
		r.Head("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		r.Post("/auth/register", s.tracked("POST /auth/register", s.handleRegister))
		r.Post("/auth/verify-register", s.tracked("POST /auth/verify-register", s.handleVerify(true)))
		r.Post("/auth/login", s.tracked("POST /auth/login", s.handleLogin))
		r.Post("/auth/verify-login", s.tracked("POST /auth/verify-login", s.handleVerify(false)))
		r.Post("/auth/logout", s.tracked("POST /auth/logout", s.handleLogout))
		r.Get("/auth/me", s.tracked("GET /auth/me", s.handleMe))
		r.Post("/auth/refresh", s.tracked("POST /auth/refresh", s.handleRefresh))
	})
	return r
}

// tracked counts calls to route and answers with an injected failure when
// one is queued.
func (s *Server) tracked(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f, ok := s.track(route); ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next(w, r)
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"nome"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"codigo"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Requisição inválida")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "E-mail e senha são obrigatórios")
		return
	}
	if status, msg := s.register(req.Email, req.Password, req.Name); status != 0 {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":          "Código de verificação enviado por e-mail",
		"email":            normalizeEmail(req.Email),
		"conta_verificada": false,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Requisição inválida")
		return
	}
	if status, msg := s.login(req.Email, req.Password); status != 0 {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Código de verificação enviado por e-mail",
		"email":   normalizeEmail(req.Email),
	})
}

func (s *Server) handleVerify(forRegister bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		u, tok, status, msg := s.verify(req.Email, req.Code, forRegister)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":          true,
			"access_token":     tok,
			"user_id":          u.id,
			"nome":             u.name,
			"email":            u.email,
			"foto_perfil":      u.avatar,
			"conta_verificada": true,
		})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, jti, ok := s.authenticate(bearerToken(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Sessão não encontrada ou não verificada")
		return
	}
	s.endSession(jti)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Sessão atual encerrada com sucesso"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.authenticate(bearerToken(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Sessão não encontrada ou não verificada")
		return
	}
	var avatar any
	if u.avatar != "" {
		avatar = u.avatar
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                 u.id,
		"nome":               u.name,
		"email":              u.email,
		"dois_fatores_ativo": u.verified,
		"data_criacao":       u.createdAt.UTC().Format(time.RFC3339),
		"foto_perfil":        avatar,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	u, jti, ok := s.authenticate(bearerToken(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Sessão não encontrada ou não verificada")
		return
	}
	tok, err := s.rotate(u, jti)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": tok})
}

// handleWS accepts a connection and holds it open. coder/websocket answers
// pings while CloseRead drains the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = c.CloseNow() }()

	ctx := c.CloseRead(r.Context())
	<-ctx.Done()
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
