package auth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role is the closed set of admin roles
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"      // Unrestricted, manages every account
	RoleAdmin           Role = "admin"            // Manages staff accounts
	RoleStaff           Role = "staff"            // Day-to-day operator
	RoleStoreManager    Role = "store_manager"    // Catalog and storefront settings
	RoleSalesManager    Role = "sales_manager"    // Orders and reports
	RoleCustomerService Role = "customer_service" // Customers and orders
	RoleOther           Role = "other"            // Anything not covered above
)

var validRoles = map[Role]bool{
	RoleSuperAdmin:      true,
	RoleAdmin:           true,
	RoleStaff:           true,
	RoleStoreManager:    true,
	RoleSalesManager:    true,
	RoleCustomerService: true,
	RoleOther:           true,
}

// Roles returns every known role in a stable order
func Roles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleAdmin,
		RoleStaff,
		RoleStoreManager,
		RoleSalesManager,
		RoleCustomerService,
		RoleOther,
	}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return validRoles[r]
}

// ParseRole converts a raw role name into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", NewError(KindInvalidRole, "parse role", fmt.Errorf("unknown role %q", s))
	}
	return r, nil
}

// Permission names a section of the admin console
type Permission string

const (
	PermissionAll              Permission = "all" // Wildcard
	PermissionManageProducts   Permission = "manage_products"
	PermissionManageCategories Permission = "manage_categories"
	PermissionManageOrders     Permission = "manage_orders"
	PermissionManageCustomers  Permission = "manage_customers"
	PermissionManageShipping   Permission = "manage_shipping"
	PermissionManageChatbot    Permission = "manage_chatbot"
	PermissionViewReports      Permission = "view_reports"
	PermissionManageAdmins     Permission = "manage_admins"
)

var validPermissions = map[Permission]bool{
	PermissionAll:              true,
	PermissionManageProducts:   true,
	PermissionManageCategories: true,
	PermissionManageOrders:     true,
	PermissionManageCustomers:  true,
	PermissionManageShipping:   true,
	PermissionManageChatbot:    true,
	PermissionViewReports:      true,
	PermissionManageAdmins:     true,
}

// Valid reports whether p is one of the known permissions
func (p Permission) Valid() bool {
	return validPermissions[p]
}

// PermissionSet is an unordered set of permissions.
// The zero value is an empty set and is safe to read.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from already-typed permissions
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// ParsePermissions validates raw permission names and returns them as a set.
// Duplicates collapse; an unknown name fails the whole set.
func ParsePermissions(names []string) (PermissionSet, error) {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		p := Permission(strings.TrimSpace(name))
		if !p.Valid() {
			return nil, NewError(KindInvalidPermission, "parse permissions", fmt.Errorf("unknown permission %q", name))
		}
		set[p] = struct{}{}
	}
	return set, nil
}

// Has reports plain membership, without wildcard expansion
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Validate checks every member against the known permissions
func (s PermissionSet) Validate() error {
	for p := range s {
		if !p.Valid() {
			return NewError(KindInvalidPermission, "validate permissions", fmt.Errorf("unknown permission %q", p))
		}
	}
	return nil
}

// Sorted returns the members in lexical order
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of permission names, rejecting unknown names
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParsePermissions(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the set as a JSON array column
func (s PermissionSet) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads a JSON array column
func (s *PermissionSet) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = PermissionSet{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PermissionSet", src)
	}
	if len(data) == 0 {
		*s = PermissionSet{}
		return nil
	}
	return s.UnmarshalJSON(data)
}

// AdminAccount is a storefront back-office account.
// It never carries the password digest.
type AdminAccount struct {
	ID          int64         `json:"id"`
	Email       string        `json:"email"`
	FirstName   string        `json:"first_name,omitempty"`
	LastName    string        `json:"last_name,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
	IsActive    bool          `json:"is_active"`
	LastLogin   *time.Time    `json:"last_login,omitempty"`
	CreatedBy   *int64        `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// FullName joins first and last name
func (a *AdminAccount) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Clone returns a deep copy
func (a *AdminAccount) Clone() *AdminAccount {
	if a == nil {
		return nil
	}
	out := *a
	out.Permissions = a.Permissions.Clone()
	if a.LastLogin != nil {
		t := *a.LastLogin
		out.LastLogin = &t
	}
	if a.CreatedBy != nil {
		id := *a.CreatedBy
		out.CreatedBy = &id
	}
	return &out
}

// NormalizeEmail lowercases and trims an email for comparison and storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
