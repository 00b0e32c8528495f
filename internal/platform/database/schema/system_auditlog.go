package schema

// SystemAuditLogTable represents the 'system.auditlog' table
type SystemAuditLogTable struct {
	Table     string
	ID        string
	ActorID   string
	Action    string
	Outcome   string
	Reason    string
	Subject   string
	IPAddress string
	UserAgent string
	CreatedAt string
}

var SystemAuditLog = SystemAuditLogTable{
	Table:     "system.auditlog",
	ID:        "id",
	ActorID:   "actorid",
	Action:    "action",
	Outcome:   "outcome",
	Reason:    "reason",
	Subject:   "subject",
	IPAddress: "ipaddress",
	UserAgent: "useragent",
	CreatedAt: "createdat",
}

// Columns returns all standard column names
func (t SystemAuditLogTable) Columns() []string {
	return []string{t.ID, t.ActorID, t.Action, t.Outcome, t.Reason, t.Subject, t.IPAddress, t.UserAgent, t.CreatedAt}
}
