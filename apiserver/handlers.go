package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// CreateSession signs a user in with e-mail and password and returns a token pair.
func (s *Server) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds apiclient.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "", "Malformed request body.")
			return
		}

		user, err := s.users.GetByEmail(creds.Email)
		if err != nil || !user.Authenticate(creds.Password) {
			log.Info().Str("email", creds.Email).Msg("Rejected sign in")
			writeError(w, http.StatusUnauthorized, "", "E-mail or password incorrect.")
			return
		}

		accessToken, refreshToken, ok := s.issue(w, user)
		if !ok {
			return
		}
		if err := s.users.RecordLogin(user.ID, token.NowTimeFunc()); err != nil {
			log.Err(err).Str("email", user.Email).Msg("Recording last login failed")
		}

		writeJSON(w, http.StatusOK, apiclient.LoginResponse{
			Token:        accessToken,
			RefreshToken: refreshToken,
			Permissions:  user.Permissions,
			Roles:        user.Roles,
		})
	}
}

// Refresh redeems a refresh token for a new pair. Each refresh token works once.
func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "", "Refresh token is required.")
			return
		}

		stored, next, err := s.refresh.Rotate(req.RefreshToken)
		if errors.Is(err, errors.ErrInvalidRefreshToken) {
			writeError(w, http.StatusUnauthorized, "refresh_token.invalid", "Refresh token is invalid.")
			return
		}
		if err != nil {
			log.Err(err).Msg("Rotating refresh token failed")
			writeError(w, http.StatusInternalServerError, "", "Internal error.")
			return
		}

		user, err := s.users.GetByID(stored.UserID)
		if err != nil || !user.Active() {
			_ = s.refresh.Delete(next)
			writeError(w, http.StatusUnauthorized, "refresh_token.invalid", "Refresh token is invalid.")
			return
		}

		accessToken, err := s.tokens.CreateAccessToken(user)
		if err != nil {
			log.Err(err).Str("user", user.ID).Msg("Creating access token failed")
			writeError(w, http.StatusInternalServerError, "", "Internal error.")
			return
		}

		writeJSON(w, http.StatusOK, apiclient.RefreshResponse{Token: accessToken, RefreshToken: next})
	}
}

// Me returns the signed-in user with their current permissions and roles.
func (s *Server) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeTokenInvalid, "Invalid token.")
			return
		}

		user, err := s.users.GetByID(claims.Subject)
		if err != nil || !user.Active() {
			writeError(w, http.StatusUnauthorized, codeTokenInvalid, "User not found.")
			return
		}

		writeJSON(w, http.StatusOK, sessions.User{
			Email:       user.Email,
			Permissions: user.Permissions,
			Roles:       user.Roles,
		})
	}
}

func (s *Server) issue(w http.ResponseWriter, user *users.User) (string, string, bool) {
	accessToken, err := s.tokens.CreateAccessToken(user)
	if err != nil {
		log.Err(err).Str("user", user.ID).Msg("Creating access token failed")
		writeError(w, http.StatusInternalServerError, "", "Internal error.")
		return "", "", false
	}
	refreshToken, err := s.refresh.Create(user.ID)
	if err != nil {
		log.Err(err).Str("user", user.ID).Msg("Creating refresh token failed")
		writeError(w, http.StatusInternalServerError, "", "Internal error.")
		return "", "", false
	}
	return accessToken, refreshToken, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiclient.ErrorResponse{Error: true, Code: code, Message: message})
}
