package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/modeltrack/modeltrack/pkg/auth"
	"github.com/modeltrack/modeltrack/pkg/authstore"
)

// sessionTokenTTL bounds how long an issued bearer token stays valid.
const sessionTokenTTL = 24 * time.Hour

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

func userToResponse(user *authstore.User) userResponse {
	return userResponse{ID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}
}

// createUserHandler handles POST /api/2.0/tracking/users/create. It accepts
// a JSON body or an HTML form post from the signup page. Self-service
// accounts are never administrators.
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var username, password string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed form body")
			return
		}
		username = r.PostFormValue("username")
		password = r.PostFormValue("password")
	} else {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
			return
		}
		username, password = req.Username, req.Password
	}

	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "username and password must not be empty")
		return
	}

	user, err := s.users.CreateUser(username, password, false)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("created user", "username", user.Username)
	writeJSON(w, http.StatusCreated, map[string]any{"user": userToResponse(user)})
}

type experimentPermissionResponse struct {
	ExperimentID string `json:"experiment_id"`
	Username     string `json:"username"`
	Permission   string `json:"permission"`
}

type registeredModelPermissionResponse struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Permission string `json:"permission"`
}

// getUserHandler handles GET /api/2.0/tracking/users/get. The response
// includes every grant the account holds.
func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "username must not be empty")
		return
	}
	user, err := s.users.GetUser(username)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	expGrants, err := s.users.ListExperimentPermissions(username)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	modelGrants, err := s.users.ListRegisteredModelPermissions(username)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	experimentPerms := make([]experimentPermissionResponse, len(expGrants))
	for i, g := range expGrants {
		experimentPerms[i] = experimentPermissionResponse{ExperimentID: g.ExperimentID, Username: g.Username, Permission: g.Permission}
	}
	modelPerms := make([]registeredModelPermissionResponse, len(modelGrants))
	for i, g := range modelGrants {
		modelPerms[i] = registeredModelPermissionResponse{Name: g.Name, Username: g.Username, Permission: g.Permission}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":                         userToResponse(user),
		"experiment_permissions":       experimentPerms,
		"registered_model_permissions": modelPerms,
	})
}

// updateUserPasswordHandler handles PATCH /api/2.0/tracking/users/update-password.
func (s *Server) updateUserPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "password must not be empty")
		return
	}
	if err := s.users.UpdatePassword(req.Username, req.Password); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// updateUserAdminHandler handles PATCH /api/2.0/tracking/users/update-admin.
// Only administrators reach this handler.
func (s *Server) updateUserAdminHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.users.UpdateAdmin(req.Username, req.IsAdmin); err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("updated admin status", "username", req.Username, "is_admin", req.IsAdmin)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deleteUserHandler handles DELETE /api/2.0/tracking/users/delete. The
// store drops the account and every grant it holds in one transaction.
func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.users.DeleteUser(req.Username); err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("deleted user", "username", req.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createSessionHandler handles POST /api/2.0/tracking/users/token. It
// exchanges the caller's basic-auth credentials for a short-lived bearer
// token when token signing is configured.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, http.StatusNotImplemented, "FEATURE_DISABLED", "token authentication is not configured")
		return
	}
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.WriteChallenge(w, s.cfg.Auth.Realm)
		return
	}
	token, err := s.tokens.IssueToken(caller.Username, sessionTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int64(sessionTokenTTL.Seconds()),
	})
}
