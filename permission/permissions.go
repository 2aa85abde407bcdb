package permission

// Capability names.
const (
	UserCreate = "user:create"
	UserRead   = "user:read"
	UserUpdate = "user:update"
	UserDelete = "user:delete"

	PatientCreate    = "patient:create"
	PatientRead      = "patient:read"
	PatientUpdate    = "patient:update"
	PatientDelete    = "patient:delete"
	PatientReadOwn   = "patient:read_own"
	PatientUpdateOwn = "patient:update_own"

	DeviceCreate  = "device:create"
	DeviceRead    = "device:read"
	DeviceUpdate  = "device:update"
	DeviceDelete  = "device:delete"
	DeviceReadOwn = "device:read_own"

	ReportCreate  = "report:create"
	ReportRead    = "report:read"
	ReportDelete  = "report:delete"
	ReportReadOwn = "report:read_own"

	ReadingCreate  = "reading:create"
	ReadingRead    = "reading:read"
	ReadingReadOwn = "reading:read_own"

	AuditRead    = "audit:read"
	SystemManage = "system:manage"
)

// DefaultRolePermissions returns a fresh copy of the role to capability table.
func DefaultRolePermissions() map[Role][]string {
	return map[Role][]string{
		RoleAdmin: {
			UserCreate, UserRead, UserUpdate, UserDelete,
			PatientCreate, PatientRead, PatientUpdate, PatientDelete,
			DeviceCreate, DeviceRead, DeviceUpdate, DeviceDelete,
			ReportCreate, ReportRead, ReportDelete,
			AuditRead,
			SystemManage,
		},
		RoleDoctor: {
			PatientRead, PatientUpdate,
			DeviceRead, DeviceUpdate,
			ReportCreate, ReportRead,
			ReadingRead,
		},
		RolePatient: {
			PatientReadOwn, PatientUpdateOwn,
			DeviceReadOwn,
			ReadingReadOwn,
			ReportReadOwn,
		},
		RoleTechnician: {
			DeviceRead, DeviceUpdate, DeviceCreate,
			ReadingCreate, ReadingRead,
		},
	}
}

// Name joins a resource type and action into a capability name.
func Name(resourceType, action string) string {
	return resourceType + ":" + action
}
