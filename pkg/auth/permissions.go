package auth

// HasPermission reports whether account may use the console section guarded by p.
// super_admin and holders of the "all" wildcard pass every check.
func HasPermission(account *AdminAccount, p Permission) bool {
	if account == nil {
		return false
	}
	if account.Role == RoleSuperAdmin {
		return true
	}
	if account.Permissions.Has(PermissionAll) {
		return true
	}
	return account.Permissions.Has(p)
}

// CanManage reports whether actor may edit target's credentials.
// Self-action rules are enforced by callers, not here.
func CanManage(actor, target *AdminAccount) bool {
	if actor == nil || target == nil {
		return false
	}
	switch actor.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return target.Role == RoleStaff
	default:
		return false
	}
}

// CanCreateRole reports whether actor may create an account with role
func CanCreateRole(actor *AdminAccount, role Role) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return role == RoleStaff
	default:
		return false
	}
}
