package audit

import (
	"fmt"
	"strings"
)

const customPrefix = "custom:"

// Action is the kind of event an entry records. It is one of the predefined
// actions below or a Custom action carrying a free-text label.
type Action struct {
	name   string
	custom bool
}

// Predefined actions.
var (
	ActionLogin             = Action{name: "login"}
	ActionLogout            = Action{name: "logout"}
	ActionLoginFailed       = Action{name: "login_failed"}
	ActionPasswordChanged   = Action{name: "password_changed"}
	ActionPasswordReset     = Action{name: "password_reset"}
	ActionTwoFactorEnabled  = Action{name: "two_factor_enabled"}
	ActionTwoFactorDisabled = Action{name: "two_factor_disabled"}

	ActionUserCreated     = Action{name: "user_created"}
	ActionUserUpdated     = Action{name: "user_updated"}
	ActionUserDeleted     = Action{name: "user_deleted"}
	ActionUserActivated   = Action{name: "user_activated"}
	ActionUserDeactivated = Action{name: "user_deactivated"}

	ActionPatientCreated              = Action{name: "patient_created"}
	ActionPatientUpdated              = Action{name: "patient_updated"}
	ActionPatientDeleted              = Action{name: "patient_deleted"}
	ActionPatientViewed               = Action{name: "patient_viewed"}
	ActionPatientAssignedToDevice     = Action{name: "patient_assigned_to_device"}
	ActionPatientUnassignedFromDevice = Action{name: "patient_unassigned_from_device"}

	ActionDeviceCreated         = Action{name: "device_created"}
	ActionDeviceUpdated         = Action{name: "device_updated"}
	ActionDeviceDeleted         = Action{name: "device_deleted"}
	ActionDeviceConnected       = Action{name: "device_connected"}
	ActionDeviceDisconnected    = Action{name: "device_disconnected"}
	ActionDeviceReadingReceived = Action{name: "device_reading_received"}
	ActionDeviceCalibrated      = Action{name: "device_calibrated"}

	ActionReportGenerated  = Action{name: "report_generated"}
	ActionReportViewed     = Action{name: "report_viewed"}
	ActionReportDownloaded = Action{name: "report_downloaded"}
	ActionReportShared     = Action{name: "report_shared"}
	ActionReportDeleted    = Action{name: "report_deleted"}

	ActionSystemSettingsChanged   = Action{name: "system_settings_changed"}
	ActionBackupCreated           = Action{name: "backup_created"}
	ActionBackupRestored          = Action{name: "backup_restored"}
	ActionMaintenanceModeEnabled  = Action{name: "maintenance_mode_enabled"}
	ActionMaintenanceModeDisabled = Action{name: "maintenance_mode_disabled"}

	ActionDataExported = Action{name: "data_exported"}
	ActionDataImported = Action{name: "data_imported"}
	ActionDataPurged   = Action{name: "data_purged"}

	ActionUnauthorizedAccess      = Action{name: "unauthorized_access"}
	ActionSuspiciousActivity      = Action{name: "suspicious_activity"}
	ActionSecurityPolicyViolation = Action{name: "security_policy_violation"}
)

var predefined = map[string]Action{}

func init() {
	for _, a := range []Action{
		ActionLogin, ActionLogout, ActionLoginFailed, ActionPasswordChanged, ActionPasswordReset,
		ActionTwoFactorEnabled, ActionTwoFactorDisabled,
		ActionUserCreated, ActionUserUpdated, ActionUserDeleted, ActionUserActivated, ActionUserDeactivated,
		ActionPatientCreated, ActionPatientUpdated, ActionPatientDeleted, ActionPatientViewed,
		ActionPatientAssignedToDevice, ActionPatientUnassignedFromDevice,
		ActionDeviceCreated, ActionDeviceUpdated, ActionDeviceDeleted, ActionDeviceConnected,
		ActionDeviceDisconnected, ActionDeviceReadingReceived, ActionDeviceCalibrated,
		ActionReportGenerated, ActionReportViewed, ActionReportDownloaded, ActionReportShared, ActionReportDeleted,
		ActionSystemSettingsChanged, ActionBackupCreated, ActionBackupRestored,
		ActionMaintenanceModeEnabled, ActionMaintenanceModeDisabled,
		ActionDataExported, ActionDataImported, ActionDataPurged,
		ActionUnauthorizedAccess, ActionSuspiciousActivity, ActionSecurityPolicyViolation,
	} {
		predefined[a.name] = a
	}
}

// Custom returns an action outside the predefined set.
func Custom(label string) Action {
	return Action{name: label, custom: true}
}

// IsCustom reports whether a was built with Custom.
func (a Action) IsCustom() bool { return a.custom }

// Label returns the predefined name or the custom label.
func (a Action) Label() string { return a.name }

// IsZero reports whether a is the zero Action.
func (a Action) IsZero() bool { return a.name == "" && !a.custom }

// String returns the wire form: the predefined name, or "custom:<label>".
func (a Action) String() string {
	if a.custom {
		return customPrefix + a.name
	}
	return a.name
}

func (a Action) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("audit: empty action")
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction reverses Action.String.
func ParseAction(s string) (Action, error) {
	if label, ok := strings.CutPrefix(s, customPrefix); ok {
		return Custom(label), nil
	}
	if a, ok := predefined[s]; ok {
		return a, nil
	}
	return Action{}, fmt.Errorf("audit: unknown action %q", s)
}
