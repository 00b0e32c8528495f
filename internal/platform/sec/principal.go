// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// Principal is the live view of an account, re-read from storage on each request
// that passes the second gate stage. Unlike [AccessClaims] it reflects changes made
// after the access token was issued.
type Principal struct {
	AccountID          string
	Username           string
	Active             bool
	MustChangePassword bool
	Roles              []string
	Permissions        PermissionSet
}
