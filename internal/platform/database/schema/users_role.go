package schema

// UserRoleTable represents the 'users.role' table
type UserRoleTable struct {
	Table       string
	ID          string
	Slug        string
	Name        string
	Permissions string
	Status      string
	IsSystem    string
	IsDefault   string
	CreatedAt   string
}

// UserRole is the schema definition for users.role
var UserRole = UserRoleTable{
	Table:       "users.role",
	ID:          "id",
	Slug:        "slug",
	Name:        "name",
	Permissions: "permissions",
	Status:      "status",
	IsSystem:    "issystem",
	IsDefault:   "isdefault",
	CreatedAt:   "createdat",
}

// Columns returns all standard column names
func (t UserRoleTable) Columns() []string {
	return []string{t.ID, t.Slug, t.Name, t.Permissions, t.Status, t.IsSystem, t.IsDefault}
}

// UserAccountRoleTable represents the 'users.accountrole' assignment table
type UserAccountRoleTable struct {
	Table     string
	AccountID string
	RoleID    string
	Position  string
}

// UserAccountRole is the schema definition for users.accountrole
var UserAccountRole = UserAccountRoleTable{
	Table:     "users.accountrole",
	AccountID: "accountid",
	RoleID:    "roleid",
	Position:  "position",
}
