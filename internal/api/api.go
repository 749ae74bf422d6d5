// CLAUDE:SUMMARY Core API struct and HTTP handlers — login, traditions CRUD, completion toggle, ratings, leaderboards, user profiles
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/bucketlist/internal/auth"
	"github.com/hazyhaar/bucketlist/internal/config"
	"github.com/hazyhaar/bucketlist/internal/db"
	"github.com/hazyhaar/bucketlist/internal/stats"
	"github.com/hazyhaar/bucketlist/pkg/audit"
)

// usernameRe validates username format: ASCII alphanumeric, underscore, hyphen only.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxBodySize is the maximum HTTP body size for JSON endpoints.
const maxBodySize = 64 * 1024 // 64KB

// LoginRateLimiter is the rate limiter for POST /api/login (30 req/60s).
var LoginRateLimiter = NewRateLimiter(30, 60*time.Second)

// defaultBoardSize is the leaderboard length when no limit is given.
const defaultBoardSize = 5

type API struct {
	db         *db.DB
	auth       *auth.Auth
	auditLog   audit.Logger
	instConfig *config.InstanceConfig
}

func New(database *db.DB, a *auth.Auth) *API {
	return &API{db: database, auth: a}
}

// SetAuditLog sets the audit logger for mutating endpoints.
func (a *API) SetAuditLog(l audit.Logger) {
	a.auditLog = l
}

// SetInstanceConfig sets the instance identity for the status endpoint.
func (a *API) SetInstanceConfig(cfg *config.InstanceConfig) {
	a.instConfig = cfg
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("POST /api/login", RateLimitMiddleware(LoginRateLimiter, a.handleLogin))
	mux.HandleFunc("GET /api/me", a.handleGetMe)

	// Traditions
	mux.HandleFunc("GET /api/traditions", a.handleListTraditions)
	mux.HandleFunc("POST /api/traditions", a.handleCreateTradition)
	mux.HandleFunc("GET /api/traditions/{id}", a.handleGetTradition)

	// Completion & ratings
	mux.HandleFunc("POST /api/traditions/{id}/completion", a.handleToggleCompletion)
	mux.HandleFunc("POST /api/traditions/{id}/rating", a.handleSubmitRating)
	mux.HandleFunc("POST /api/traditions/{id}/difficulty", a.handleSubmitDifficulty)

	// Per-user records
	mux.HandleFunc("GET /api/completions", a.handleGetCompletions)
	mux.HandleFunc("GET /api/ratings", a.handleGetRatings)
	mux.HandleFunc("GET /api/difficulty", a.handleGetDifficultyRatings)

	// Leaderboards
	mux.HandleFunc("GET /api/leaderboard/top-rated", a.leaderboard(stats.ByRating))
	mux.HandleFunc("GET /api/leaderboard/most-completed", a.leaderboard(stats.ByCompletions))
	mux.HandleFunc("GET /api/leaderboard/most-difficult", a.leaderboard(stats.ByDifficulty))

	// User profile
	mux.HandleFunc("GET /api/user/{username}", a.handleGetUser)

	// Status
	mux.HandleFunc("GET /api/status", a.handleStatus)
}

// --- Auth ---

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		jsonError(w, "username is required", http.StatusBadRequest)
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 30 {
		jsonError(w, "username must be 3-30 characters", http.StatusBadRequest)
		return
	}
	if !usernameRe.MatchString(req.Username) {
		jsonError(w, "username must contain only ASCII letters, digits, underscore or hyphen", http.StatusBadRequest)
		return
	}

	// Identity is self-asserted: first login creates the user.
	user, err := a.db.GetOrCreateUser(req.Username)
	if err != nil {
		slog.Error("get-or-create user", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	_ = a.db.TouchLastSeen(user.ID)

	token, err := a.auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

func (a *API) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	user, err := a.db.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, user)
}

// --- Traditions ---

func (a *API) handleListTraditions(w http.ResponseWriter, r *http.Request) {
	traditions, err := a.db.ListTraditionsWithStats()
	if err != nil {
		slog.Error("listing traditions", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if traditions == nil {
		traditions = []db.TraditionWithStats{}
	}

	jsonResp(w, http.StatusOK, map[string]interface{}{
		"traditions": traditions,
		"count":      len(traditions),
	})
}

func (a *API) handleCreateTradition(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if strings.Contains(err.Error(), "too large") {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	done := audit.Action(r.Context(), a.auditLog, "add_tradition", "http", claims.UserID, req)
	tradition, err := a.db.CreateTradition(req.Name, req.Description, &claims.UserID)
	done(tradition, err)
	if err != nil {
		slog.Error("creating tradition", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusCreated, tradition)
}

func (a *API) handleGetTradition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, "id is required", http.StatusBadRequest)
		return
	}

	tradition, err := a.traditionWithStats(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "tradition not found", http.StatusNotFound)
			return
		}
		slog.Error("getting tradition", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, tradition)
}

// --- Completion & ratings ---

func (a *API) handleToggleCompletion(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if err := stats.CheckToggle(claimsUserID(claims)); err != nil {
		writeEligibilityError(w, err)
		return
	}
	traditionID := r.PathValue("id")

	if _, err := a.db.GetTradition(traditionID); err != nil {
		jsonError(w, "tradition not found", http.StatusNotFound)
		return
	}

	// The client reports its belief about current state; the toggle flips it.
	var req struct {
		Completed bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	done := audit.Action(r.Context(), a.auditLog, "toggle_completion", "http", claims.UserID, map[string]interface{}{
		"tradition_id": traditionID,
		"completed":    req.Completed,
	})
	err := a.db.SetCompletion(claims.UserID, traditionID, !req.Completed)
	done(nil, err)
	if err != nil {
		slog.Error("toggling completion", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	a.respondWithTradition(w, traditionID)
}

func (a *API) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	a.submitValue(w, r, "rating", a.db.GetRatings, a.db.PutRating)
}

func (a *API) handleSubmitDifficulty(w http.ResponseWriter, r *http.Request) {
	a.submitValue(w, r, "difficulty", a.db.GetDifficultyRatings, a.db.PutDifficultyRating)
}

// submitValue is the shared rating/difficulty submission path. Eligibility is
// checked against the user's current record sets before any write; failures
// never reach the store.
func (a *API) submitValue(w http.ResponseWriter, r *http.Request, kind string,
	get func(userID string) (map[string]int, error),
	put func(userID, traditionID string, value int) error) {

	claims := a.auth.ExtractClaims(r)
	traditionID := r.PathValue("id")

	var req map[string]int
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	value, ok := req[kind]
	if !ok {
		jsonError(w, kind+" is required", http.StatusBadRequest)
		return
	}

	userID := claimsUserID(claims)
	var completed map[string]bool
	var existing map[string]int
	if userID != "" {
		var err error
		if completed, err = a.db.GetCompletions(userID); err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if existing, err = get(userID); err != nil {
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	if err := stats.CheckSubmit(userID, completed, existing, traditionID, value); err != nil {
		writeEligibilityError(w, err)
		return
	}

	if _, err := a.db.GetTradition(traditionID); err != nil {
		jsonError(w, "tradition not found", http.StatusNotFound)
		return
	}

	done := audit.Action(r.Context(), a.auditLog, "rate_"+kind, "http", userID, map[string]interface{}{
		"tradition_id": traditionID,
		kind:           value,
	})
	err := put(userID, traditionID, value)
	done(nil, err)
	if err != nil {
		slog.Error("storing "+kind, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	a.respondWithTradition(w, traditionID)
}

// respondWithTradition returns the tradition with freshly recomputed
// statistics — the authoritative state after a successful mutation.
func (a *API) respondWithTradition(w http.ResponseWriter, traditionID string) {
	tradition, err := a.traditionWithStats(traditionID)
	if err != nil {
		slog.Error("recomputing statistics", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, tradition)
}

func (a *API) traditionWithStats(id string) (*db.TraditionWithStats, error) {
	t, err := a.db.GetTradition(id)
	if err != nil {
		return nil, err
	}
	completions, err := a.db.ListAllCompletions()
	if err != nil {
		return nil, err
	}
	ratings, err := a.db.ListAllRatings()
	if err != nil {
		return nil, err
	}
	difficulties, err := a.db.ListAllDifficultyRatings()
	if err != nil {
		return nil, err
	}
	return &db.TraditionWithStats{
		Tradition: *t,
		Stats:     stats.Compute(id, completions, ratings, difficulties),
	}, nil
}

// --- Per-user records ---

func (a *API) handleGetCompletions(w http.ResponseWriter, r *http.Request) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	completed, err := a.db.GetCompletions(claims.UserID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	ids := make([]string, 0, len(completed))
	for id := range completed {
		ids = append(ids, id)
	}
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"completions": ids,
		"count":       len(ids),
	})
}

func (a *API) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	a.userValues(w, r, a.db.GetRatings, "ratings")
}

func (a *API) handleGetDifficultyRatings(w http.ResponseWriter, r *http.Request) {
	a.userValues(w, r, a.db.GetDifficultyRatings, "difficulty")
}

func (a *API) userValues(w http.ResponseWriter, r *http.Request, get func(string) (map[string]int, error), field string) {
	claims := a.auth.ExtractClaims(r)
	if claims == nil {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	values, err := get(claims.UserID)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, map[string]interface{}{
		field:   values,
		"count": len(values),
	})
}

// --- Leaderboards ---

func (a *API) leaderboard(key stats.Key) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultBoardSize
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
				limit = l
			}
		}

		traditions, err := a.db.ListTraditionsWithStats()
		if err != nil {
			slog.Error("loading leaderboard", "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}

		top := stats.RankTop(traditions, func(t db.TraditionWithStats) stats.Statistics {
			return t.Stats
		}, key, limit)
		if top == nil {
			top = []db.TraditionWithStats{}
		}

		jsonResp(w, http.StatusOK, map[string]interface{}{
			"traditions": top,
			"count":      len(top),
		})
	}
}

// --- User ---

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		jsonError(w, "username is required", http.StatusBadRequest)
		return
	}

	user, err := a.db.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "user not found", http.StatusNotFound)
			return
		}
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, user)
}

// --- Status ---

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	instStats, err := a.db.GetInstanceStats()
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{"stats": instStats}
	if a.instConfig != nil {
		resp["instance"] = map[string]string{
			"id":   a.instConfig.ID,
			"name": a.instConfig.Name,
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- Helpers ---

func claimsUserID(claims *auth.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// writeEligibilityError maps engine eligibility failures onto HTTP statuses.
func writeEligibilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stats.ErrUnauthenticated):
		jsonError(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, stats.ErrNotCompleted):
		jsonError(w, "tradition must be completed before rating", http.StatusForbidden)
	case errors.Is(err, stats.ErrAlreadyRated):
		jsonError(w, "already rated", http.StatusConflict)
	case errors.Is(err, stats.ErrInvalidValue):
		jsonError(w, "value must be between 1 and 10", http.StatusBadRequest)
	default:
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
