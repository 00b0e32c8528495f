// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"github.com/taibuivan/gatekeep/internal/platform/constants"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/pkg/slice"
)

// # Role Resolution

// Resolution is the effective authorization of an account at a point in time.
type Resolution struct {
	// Slugs of the active roles, in assignment order.
	Slugs []string

	// Permissions is the deduplicated union of the active roles' permissions, first-seen order.
	Permissions []string

	// IsPrivilegedOverride is true when an active role carries the super-administrator slug.
	IsPrivilegedOverride bool
}

// PermissionSet returns the resolution as a set suitable for all-of / any-of checks.
func (resolution Resolution) PermissionSet() sec.PermissionSet {
	return sec.NewPermissionSet(resolution.Permissions, resolution.IsPrivilegedOverride)
}

// RoleResolver projects an account onto its active roles.
//
// It is the only place that decides which roles count, so every caller sees the
// same effective permissions.
type RoleResolver struct{}

// ResolveActive filters out inactive roles and flattens the remainder.
func (RoleResolver) ResolveActive(account *Account) Resolution {
	active := slice.Filter(account.Roles, func(role Role) bool {
		return role.Status == RoleActive
	})

	slugs := make([]string, 0, len(active))
	permissions := make([]string, 0)
	privileged := false

	for _, role := range active {
		slugs = append(slugs, role.Slug)
		permissions = append(permissions, role.Permissions...)
		if role.Slug == constants.SuperAdminRoleSlug {
			privileged = true
		}
	}

	return Resolution{
		Slugs:                slice.Unique(slugs),
		Permissions:          slice.Unique(permissions),
		IsPrivilegedOverride: privileged,
	}
}
