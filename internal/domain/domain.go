package domain

// Role is the closed set of user roles.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleCleaner    Role = "cleaner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleCleaner:
		return true
	}
	return false
}

// IsAdminClass reports whether r is admin or super_admin.
func (r Role) IsAdminClass() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Label returns the display name for a role. Total over the closed set;
// unknown roles panic rather than leak a raw value into output.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleCleaner:
		return "Cleaner"
	}
	panic("unknown role " + string(r))
}

// TaskStatus is the closed task lifecycle enumeration.
type TaskStatus string

const (
	StatusToClean       TaskStatus = "to_clean"
	StatusToCleanUrgent TaskStatus = "to_clean_urgent"
	StatusInProgress    TaskStatus = "in_progress"
	StatusCompleted     TaskStatus = "completed"
	StatusVerified      TaskStatus = "verified"
)

// AllTaskStatuses lists every status in lifecycle order.
var AllTaskStatuses = []TaskStatus{
	StatusToClean,
	StatusToCleanUrgent,
	StatusInProgress,
	StatusCompleted,
	StatusVerified,
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusToClean, StatusToCleanUrgent, StatusInProgress, StatusCompleted, StatusVerified:
		return true
	}
	return false
}

// Pending reports whether the task has not been started yet. Urgency is a
// priority hint, not a separate lifecycle branch.
func (s TaskStatus) Pending() bool {
	return s == StatusToClean || s == StatusToCleanUrgent
}

// Label returns the display name for a status. Total over the closed set.
func (s TaskStatus) Label() string {
	switch s {
	case StatusToClean:
		return "To Clean"
	case StatusToCleanUrgent:
		return "To Clean (Urgent)"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusVerified:
		return "Verified"
	}
	panic("unknown task status " + string(s))
}

// User is the authenticated principal shape returned by the backend.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	CompanyID   string `json:"companyId,omitempty"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   string `json:"createdAt,omitempty" format:"date-time"`
	UpdatedAt   string `json:"updatedAt,omitempty" format:"date-time"`
	LastLoginAt string `json:"lastLoginAt,omitempty" format:"date-time"`
}

// Task is a cleaning work item. Timestamps are server-owned; the client
// never fabricates completedAt or verifiedAt.
type Task struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"roomId"`
	AssignedTo    *string    `json:"assignedTo,omitempty"`
	Status        TaskStatus `json:"status" enum:"to_clean,to_clean_urgent,in_progress,completed,verified"`
	ScheduledDate string     `json:"scheduledDate" format:"date-time"`
	CompletedAt   *string    `json:"completedAt,omitempty" format:"date-time"`
	VerifiedAt    *string    `json:"verifiedAt,omitempty" format:"date-time"`
	Observations  string     `json:"observations,omitempty"`
	Images        []string   `json:"images,omitempty"`
	CreatedAt     string     `json:"createdAt" format:"date-time"`
	UpdatedAt     string     `json:"updatedAt" format:"date-time"`
}

// TaskWithDetails is the enriched read projection. The denormalized names
// are derived by the backend and never computed client-side.
type TaskWithDetails struct {
	Task
	RoomName       string `json:"roomName"`
	BuildingName   string `json:"buildingName"`
	AssignedToName string `json:"assignedToName,omitempty"`
}

type Company struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Plan         string `json:"plan" enum:"basic,premium,enterprise"`
	MaxBuildings int    `json:"maxBuildings"`
	IsActive     bool   `json:"isActive"`
	CreatedAt    string `json:"createdAt" format:"date-time"`
	UpdatedAt    string `json:"updatedAt" format:"date-time"`
}

type Building struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type" enum:"hotel,apartment,house"`
	Address   string `json:"address"`
	CompanyID string `json:"companyId"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt" format:"date-time"`
	UpdatedAt string `json:"updatedAt" format:"date-time"`
}

type BedConfiguration struct {
	KingBeds       int `json:"kingBeds"`
	IndividualBeds int `json:"individualBeds"`
}

type Room struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	BuildingID       string           `json:"buildingId"`
	BedConfiguration BedConfiguration `json:"bedConfiguration"`
	BedsSummary      string           `json:"bedsSummary,omitempty"`
	IsActive         bool             `json:"isActive"`
	CreatedAt        string           `json:"createdAt" format:"date-time"`
	UpdatedAt        string           `json:"updatedAt" format:"date-time"`
}
