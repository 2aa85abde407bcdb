package audit

import (
	"fmt"

	"github.com/google/uuid"
)

// Service names stamped by the family constructors.
const (
	ServiceAuth     = "auth-service"
	ServiceUser     = "user-service"
	ServicePatient  = "patient-service"
	ServiceDevice   = "device-service"
	ServiceReport   = "report-service"
	ServiceData     = "data-service"
	ServiceSecurity = "security-service"
	ServiceAdmin    = "admin-service"
)

// Authentication records a login attempt. userID may be uuid.Nil when the
// email matched no account; the actor is omitted in that case.
func Authentication(userID uuid.UUID, email string, success bool, reason string) Entry {
	opts := Options{
		Action:      ActionLogin,
		Severity:    SeverityInfo,
		Description: fmt.Sprintf("User %s logged in successfully", email),
		ServiceName: ServiceAuth,
	}
	if !success {
		if reason == "" {
			reason = "Unknown error"
		}
		opts.Action = ActionLoginFailed
		opts.Severity = SeverityWarning
		opts.Description = fmt.Sprintf("Failed login attempt for user %s: %s", email, reason)
	}
	if userID != uuid.Nil {
		opts.Actor = &Actor{ID: userID, Email: email}
	}
	return New(opts)
}

// TokenRejected records a bearer, refresh or reset token that failed
// validation. The token owner is unknown, so the entry has no actor.
func TokenRejected(reason string) Entry {
	if reason == "" {
		reason = "Unknown error"
	}
	return New(Options{
		Action:      ActionLoginFailed,
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("Token authentication failed: %s", reason),
		ServiceName: ServiceAuth,
	})
}

// Account records a self-service account event (logout, password change,
// password reset, two-factor toggles) performed by actor on their own account.
func Account(actor Actor, action Action) Entry {
	var description string
	switch action {
	case ActionLogout:
		description = fmt.Sprintf("User %s logged out", actor.Email)
	case ActionPasswordChanged:
		description = fmt.Sprintf("User %s changed their password", actor.Email)
	case ActionPasswordReset:
		description = fmt.Sprintf("Password reset completed for user %s", actor.Email)
	case ActionTwoFactorEnabled:
		description = fmt.Sprintf("Two-factor authentication enabled for user %s", actor.Email)
	case ActionTwoFactorDisabled:
		description = fmt.Sprintf("Two-factor authentication disabled for user %s", actor.Email)
	default:
		description = fmt.Sprintf("Performed %s on account %s", action, actor.Email)
	}

	return New(Options{
		Action:      action,
		Severity:    SeverityInfo,
		Actor:       &actor,
		Resource:    &Resource{Type: "user", ID: actor.ID, Name: actor.Email},
		Description: description,
		ServiceName: ServiceAuth,
	})
}

// UserManagement records an action taken by actor on another user account.
// oldValues and newValues may be nil.
func UserManagement(actor Actor, action Action, targetID uuid.UUID, targetEmail string, oldValues, newValues map[string]any) Entry {
	var description string
	switch action {
	case ActionUserCreated:
		description = fmt.Sprintf("Created user account for %s", targetEmail)
	case ActionUserUpdated:
		description = fmt.Sprintf("Updated user account for %s", targetEmail)
	case ActionUserDeleted:
		description = fmt.Sprintf("Deleted user account for %s", targetEmail)
	case ActionUserActivated:
		description = fmt.Sprintf("Activated user account for %s", targetEmail)
	case ActionUserDeactivated:
		description = fmt.Sprintf("Deactivated user account for %s", targetEmail)
	default:
		description = fmt.Sprintf("Performed action on user account for %s", targetEmail)
	}

	return New(Options{
		Action:      action,
		Actor:       &actor,
		Resource:    &Resource{Type: "user", ID: targetID, Name: targetEmail},
		Description: description,
		ServiceName: ServiceUser,
		OldValues:   oldValues,
		NewValues:   newValues,
	})
}

// PatientManagement records an action on a patient record.
func PatientManagement(actor Actor, action Action, patientID uuid.UUID, patientName string) Entry {
	var description string
	switch action {
	case ActionPatientCreated:
		description = fmt.Sprintf("Created patient record for %s", patientName)
	case ActionPatientUpdated:
		description = fmt.Sprintf("Updated patient record for %s", patientName)
	case ActionPatientDeleted:
		description = fmt.Sprintf("Deleted patient record for %s", patientName)
	case ActionPatientViewed:
		description = fmt.Sprintf("Viewed patient record for %s", patientName)
	default:
		description = fmt.Sprintf("Performed action on patient record for %s", patientName)
	}

	return New(Options{
		Action:      action,
		Actor:       &actor,
		Resource:    &Resource{Type: "patient", ID: patientID, Name: patientName},
		Description: description,
		ServiceName: ServicePatient,
	})
}

// DeviceManagement records an action on a device. metadata may be nil.
func DeviceManagement(actor Actor, action Action, deviceID uuid.UUID, deviceName string, metadata map[string]any) Entry {
	var description string
	switch action {
	case ActionDeviceCreated:
		description = fmt.Sprintf("Created device %s", deviceName)
	case ActionDeviceUpdated:
		description = fmt.Sprintf("Updated device %s", deviceName)
	case ActionDeviceDeleted:
		description = fmt.Sprintf("Deleted device %s", deviceName)
	case ActionDeviceConnected:
		description = fmt.Sprintf("Connected device %s", deviceName)
	case ActionDeviceDisconnected:
		description = fmt.Sprintf("Disconnected device %s", deviceName)
	case ActionDeviceReadingReceived:
		description = fmt.Sprintf("Received reading from device %s", deviceName)
	case ActionDeviceCalibrated:
		description = fmt.Sprintf("Calibrated device %s", deviceName)
	default:
		description = fmt.Sprintf("Performed action on device %s", deviceName)
	}

	return New(Options{
		Action:      action,
		Actor:       &actor,
		Resource:    &Resource{Type: "device", ID: deviceID, Name: deviceName},
		Description: description,
		ServiceName: ServiceDevice,
		Metadata:    metadata,
	})
}

// ReportActivity records an action on a generated report.
func ReportActivity(actor Actor, action Action, reportID uuid.UUID, reportTitle string) Entry {
	var description string
	switch action {
	case ActionReportGenerated:
		description = fmt.Sprintf("Generated report: %s", reportTitle)
	case ActionReportViewed:
		description = fmt.Sprintf("Viewed report: %s", reportTitle)
	case ActionReportDownloaded:
		description = fmt.Sprintf("Downloaded report: %s", reportTitle)
	case ActionReportShared:
		description = fmt.Sprintf("Shared report: %s", reportTitle)
	case ActionReportDeleted:
		description = fmt.Sprintf("Deleted report: %s", reportTitle)
	default:
		description = fmt.Sprintf("Performed action on report: %s", reportTitle)
	}

	return New(Options{
		Action:      action,
		Actor:       &actor,
		Resource:    &Resource{Type: "report", ID: reportID, Name: reportTitle},
		Description: description,
		ServiceName: ServiceReport,
	})
}

// DataOperation records a bulk data operation such as an export or purge.
func DataOperation(actor Actor, action Action, description string, metadata map[string]any) Entry {
	return New(Options{
		Action:      action,
		Actor:       &actor,
		Description: description,
		ServiceName: ServiceData,
		Metadata:    metadata,
	})
}

// SecurityEvent records a free-form security event. actor may be nil.
func SecurityEvent(action Action, severity Severity, description string, actor *Actor, context map[string]any) Entry {
	return New(Options{
		Action:      action,
		Severity:    severity,
		Actor:       actor,
		Description: description,
		ServiceName: ServiceSecurity,
		Metadata:    context,
	})
}

// SystemAdmin records a system administration action by an administrator.
func SystemAdmin(actor Actor, action Action, severity Severity, description string) Entry {
	actor.Role = "admin"
	return New(Options{
		Action:      action,
		Severity:    severity,
		Actor:       &actor,
		Description: description,
		ServiceName: ServiceAdmin,
	})
}
