// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Permission Sets

// PermissionSet is a flattened, deduplicated set of permission strings.
//
// A privileged set (held by the super-administrator role) satisfies every check.
type PermissionSet struct {
	granted    map[string]struct{}
	privileged bool
}

// NewPermissionSet builds a set from permissions. Duplicates are collapsed.
func NewPermissionSet(permissions []string, privileged bool) PermissionSet {
	granted := make(map[string]struct{}, len(permissions))
	for _, permission := range permissions {
		granted[permission] = struct{}{}
	}
	return PermissionSet{granted: granted, privileged: privileged}
}

// Privileged reports whether the set carries the override.
func (set PermissionSet) Privileged() bool {
	return set.privileged
}

// Has reports whether a single permission is granted.
func (set PermissionSet) Has(permission string) bool {
	if set.privileged {
		return true
	}
	_, ok := set.granted[permission]
	return ok
}

// HasAll reports whether every requested permission is granted.
// An empty request is trivially satisfied.
func (set PermissionSet) HasAll(requested ...string) bool {
	if set.privileged {
		return true
	}
	for _, permission := range requested {
		if _, ok := set.granted[permission]; !ok {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one requested permission is granted.
// An empty request is trivially satisfied.
func (set PermissionSet) HasAny(requested ...string) bool {
	if set.privileged || len(requested) == 0 {
		return true
	}
	for _, permission := range requested {
		if _, ok := set.granted[permission]; ok {
			return true
		}
	}
	return false
}
