package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/directory"
	"github.com/platinummonkey/storefront/pkg/httputil"
	"github.com/platinummonkey/storefront/pkg/middleware"
)

// AdminHandlers exposes the admin directory over HTTP.
// Every route expects an authenticated principal.
type AdminHandlers struct {
	dir *directory.Directory
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(dir *directory.Directory) *AdminHandlers {
	return &AdminHandlers{dir: dir}
}

// RegisterRoutes registers the /admin/users routes on an authenticated subrouter
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	requireManage := middleware.RequirePermission(auth.PermissionManageAdmins)

	router.Handle("/users", requireManage(http.HandlerFunc(h.listUsers))).Methods("GET")
	router.Handle("/users/{id:[0-9]+}", requireManage(http.HandlerFunc(h.getUser))).Methods("GET")
	router.HandleFunc("/users", h.createUser).Methods("POST")
	router.HandleFunc("/users/{id:[0-9]+}", h.updateProfile).Methods("PATCH")
	router.HandleFunc("/users/{id:[0-9]+}/role", h.updateRole).Methods("PUT")
	router.HandleFunc("/users/{id:[0-9]+}/permissions", h.updatePermissions).Methods("PUT")
	router.HandleFunc("/users/{id:[0-9]+}/status", h.updateStatus).Methods("PUT")
	router.HandleFunc("/users/{id:[0-9]+}", h.deactivateUser).Methods("DELETE")
}

// CreateUserRequest is the body of POST /admin/users
type CreateUserRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Phone       string   `json:"phone"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// UpdateProfileRequest is the body of PATCH /admin/users/{id}; omitted fields are kept
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
}

// UpdateRoleRequest is the body of PUT /admin/users/{id}/role
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdatePermissionsRequest is the body of PUT /admin/users/{id}/permissions
type UpdatePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// UpdateStatusRequest is the body of PUT /admin/users/{id}/status
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// listUsers handles GET /admin/users. ?active=true|false filters by status.
func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Has("active")
	active, err := httputil.ParseQueryBool(r, "active", true)
	if err != nil {
		httputil.WriteBadRequest(w, "active must be true or false")
		return
	}

	all, err := h.dir.ListAll(r.Context())
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	accounts := make([]*auth.AdminAccount, 0, len(all))
	for _, account := range all {
		if !filter || account.IsActive == active {
			accounts = append(accounts, account)
		}
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"users": accounts,
		"count": len(accounts),
	})
}

// getUser handles GET /admin/users/{id}
func (h *AdminHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	account, err := h.dir.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// createUser handles POST /admin/users
func (h *AdminHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	perms, err := auth.ParsePermissions(req.Permissions)
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}

	account, err := h.dir.Create(r.Context(), directory.CreateRequest{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Role:        auth.Role(req.Role),
		Permissions: perms,
	}, middleware.GetPrincipal(r))
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteCreated(w, account)
}

// updateProfile handles PATCH /admin/users/{id}
func (h *AdminHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := h.dir.UpdateProfile(r.Context(), id, directory.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Password:  req.Password,
	}, middleware.GetPrincipal(r))
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// updateRole handles PUT /admin/users/{id}/role
func (h *AdminHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	account, err := h.dir.UpdateRole(r.Context(), id, auth.Role(req.Role), middleware.GetPrincipal(r))
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// updatePermissions handles PUT /admin/users/{id}/permissions
func (h *AdminHandlers) updatePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdatePermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permissions == nil {
		httputil.WriteBadRequest(w, "permissions is required")
		return
	}

	perms, err := auth.ParsePermissions(req.Permissions)
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}

	account, err := h.dir.UpdatePermissions(r.Context(), id, perms, middleware.GetPrincipal(r))
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// updateStatus handles PUT /admin/users/{id}/status
func (h *AdminHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		httputil.WriteBadRequest(w, "is_active is required")
		return
	}

	account, err := h.dir.UpdateActiveStatus(r.Context(), id, *req.IsActive, middleware.GetPrincipal(r))
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

// deactivateUser handles DELETE /admin/users/{id}. The account is kept
// and marked inactive.
func (h *AdminHandlers) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	account, err := h.dir.SoftDelete(r.Context(), id, middleware.GetPrincipal(r))
	if err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	httputil.WriteSuccess(w, account)
}
