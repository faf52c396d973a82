package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/auth"
	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/storage"
	"github.com/openprocure/procflow/internal/workflow"
)

const maxUploadBytes = 32 << 20

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleStaff
	}
	if !models.ValidRole(req.Role) {
		s.respondError(w, http.StatusBadRequest, "unknown role")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		PasswordHash: hash,
	}
	if err := s.storage.CreateUser(r.Context(), user); err != nil {
		s.respondError(w, http.StatusConflict, "username already taken")
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.storage.GetUserByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.Error("token issue failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, auth.UserFrom(r.Context()))
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.workflow.List(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	if requests == nil {
		requests = []*models.PurchaseRequest{}
	}
	s.respondJSON(w, http.StatusOK, requests)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	input, proforma, ok := s.parseRequestForm(w, r)
	if !ok {
		return
	}
	req, err := s.workflow.Create(r.Context(), auth.UserFrom(r.Context()), input, proforma)
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, req)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requestID(w, r)
	if !ok {
		return
	}
	req, err := s.workflow.Get(r.Context(), auth.UserFrom(r.Context()), id)
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requestID(w, r)
	if !ok {
		return
	}
	input, proforma, ok := s.parseRequestForm(w, r)
	if !ok {
		return
	}
	req, err := s.workflow.Update(r.Context(), auth.UserFrom(r.Context()), id, input, proforma)
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requestID(w, r)
	if !ok {
		return
	}
	req, err := s.workflow.Approve(r.Context(), auth.UserFrom(r.Context()), id)
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requestID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := s.workflow.Reject(r.Context(), auth.UserFrom(r.Context()), id, body.Reason)
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleSubmitReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requestID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	name, content, err := formFile(r, "receipt")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read receipt file")
		return
	}
	if len(content) == 0 {
		s.respondError(w, http.StatusBadRequest, "receipt file is required")
		return
	}
	req, err := s.workflow.SubmitReceipt(r.Context(), auth.UserFrom(r.Context()), id, name, content)
	if err != nil {
		s.respondWorkflowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleSearchRequests(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	hits, err := s.index.Search(query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"query": query, "hits": hits})
}

func (s *Server) handleExportPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	if user.Role != models.RoleFinance {
		s.respondError(w, http.StatusForbidden, "only finance can export purchase orders")
		return
	}
	data, err := s.export.PurchaseOrdersXLSX(r.Context())
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="purchase-orders.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		s.respondError(w, http.StatusBadRequest, "invalid request id")
		return 0, false
	}
	return id, true
}

// parseRequestForm reads the multipart create/update form: title, description
// and amount fields plus an optional proforma file.
func (s *Server) parseRequestForm(w http.ResponseWriter, r *http.Request) (workflow.RequestInput, []byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return workflow.RequestInput{}, nil, false
	}
	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid amount")
		return workflow.RequestInput{}, nil, false
	}
	name, content, err := formFile(r, "proforma")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read proforma file")
		return workflow.RequestInput{}, nil, false
	}
	input := workflow.RequestInput{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Amount:       amount,
		ProformaName: name,
	}
	return input, content, true
}

// formFile reads an optional multipart file field. A missing field is not an
// error; it returns empty content.
func formFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, content, nil
}

func (s *Server) respondWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrForbidden):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, workflow.ErrWrongStage),
		errors.Is(err, workflow.ErrEmptyReason),
		errors.Is(err, workflow.ErrMissingTitle),
		errors.Is(err, workflow.ErrBadAmount):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "request not found")
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
