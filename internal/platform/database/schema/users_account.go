package schema

// UserAccountTable represents the 'users.account' table.
//
// The single active session is embedded as nullable session* columns rather than
// a child table: an account holds at most one session and it is replaced wholesale.
type UserAccountTable struct {
	Table              string
	ID                 string
	Username           string
	Email              string
	Password           string
	Status             string
	MustChangePassword string
	LastLoginAt        string
	SessionTokenHash   string
	SessionIPAddress   string
	SessionUserAgent   string
	SessionIssuedAt    string
	SessionExpiresAt   string
	SessionRotatedAt   string
	CreatedAt          string
	UpdatedAt          string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:              "users.account",
	ID:                 "id",
	Username:           "username",
	Email:              "email",
	Password:           "passwordhash",
	Status:             "status",
	MustChangePassword: "mustchangepassword",
	LastLoginAt:        "lastloginat",
	SessionTokenHash:   "sessiontokenhash",
	SessionIPAddress:   "sessionipaddress",
	SessionUserAgent:   "sessionuseragent",
	SessionIssuedAt:    "sessionissuedat",
	SessionExpiresAt:   "sessionexpiresat",
	SessionRotatedAt:   "sessionrotatedat",
	CreatedAt:          "createdat",
	UpdatedAt:          "updatedat",
}

// Columns returns the account columns without the session block.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.Password, t.Status, t.MustChangePassword,
		t.LastLoginAt, t.CreatedAt, t.UpdatedAt,
	}
}

// SessionColumns returns the embedded session block, in session field order.
func (t UserAccountTable) SessionColumns() []string {
	return []string{
		t.SessionTokenHash, t.SessionIPAddress, t.SessionUserAgent,
		t.SessionIssuedAt, t.SessionExpiresAt, t.SessionRotatedAt,
	}
}
