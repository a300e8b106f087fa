package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name    string
		account *AdminAccount
		perm    Permission
		want    bool
	}{
		{
			name:    "super_admin with empty set",
			account: &AdminAccount{Role: RoleSuperAdmin},
			perm:    PermissionManageAdmins,
			want:    true,
		},
		{
			name:    "wildcard grants everything",
			account: &AdminAccount{Role: RoleStaff, Permissions: NewPermissionSet(PermissionAll)},
			perm:    PermissionManageShipping,
			want:    true,
		},
		{
			name:    "member permission",
			account: &AdminAccount{Role: RoleStaff, Permissions: NewPermissionSet(PermissionManageOrders)},
			perm:    PermissionManageOrders,
			want:    true,
		},
		{
			name:    "non-member permission",
			account: &AdminAccount{Role: RoleStaff, Permissions: NewPermissionSet(PermissionManageOrders)},
			perm:    PermissionManageProducts,
			want:    false,
		},
		{
			name:    "admin without grant",
			account: &AdminAccount{Role: RoleAdmin},
			perm:    PermissionViewReports,
			want:    false,
		},
		{
			name:    "nil permission set",
			account: &AdminAccount{Role: RoleCustomerService},
			perm:    PermissionManageCustomers,
			want:    false,
		},
		{
			name:    "nil account",
			account: nil,
			perm:    PermissionManageOrders,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.account, tt.perm))
		})
	}
}

func TestHasPermission_SuperAdminAlwaysTrue(t *testing.T) {
	account := &AdminAccount{Role: RoleSuperAdmin}
	for p := range validPermissions {
		assert.True(t, HasPermission(account, p), "permission %s", p)
	}
}

func TestCanManage(t *testing.T) {
	roles := Roles()

	for _, actorRole := range roles {
		for _, targetRole := range roles {
			actor := &AdminAccount{ID: 1, Role: actorRole}
			target := &AdminAccount{ID: 2, Role: targetRole}

			want := actorRole == RoleSuperAdmin || (actorRole == RoleAdmin && targetRole == RoleStaff)
			assert.Equalf(t, want, CanManage(actor, target), "%s -> %s", actorRole, targetRole)
		}
	}

	assert.False(t, CanManage(nil, &AdminAccount{Role: RoleStaff}))
	assert.False(t, CanManage(&AdminAccount{Role: RoleSuperAdmin}, nil))
}

func TestCanCreateRole(t *testing.T) {
	superAdmin := &AdminAccount{Role: RoleSuperAdmin}
	admin := &AdminAccount{Role: RoleAdmin}
	staff := &AdminAccount{Role: RoleStaff}

	for _, r := range Roles() {
		assert.True(t, CanCreateRole(superAdmin, r))
		assert.Equal(t, r == RoleStaff, CanCreateRole(admin, r))
		assert.False(t, CanCreateRole(staff, r))
	}
	assert.False(t, CanCreateRole(nil, RoleStaff))
}
