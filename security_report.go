package medauth

import (
	"fmt"
	"io"
	"strings"

	"github.com/meddevice/medauth/jwt"
)

// SecurityReport summarises the signing secret and environment posture.
type SecurityReport struct {
	IsSecure        bool     `json:"is_secure"`
	Environment     string   `json:"environment"`
	SecretLength    int      `json:"jwt_secret_length"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// BuildSecurityReport inspects cfg without failing. It is meant for
// operators and startup logs; Validate remains the enforcement point.
func BuildSecurityReport(cfg Config) SecurityReport {
	secret := cfg.JWT.Secret
	r := SecurityReport{
		IsSecure:        true,
		Environment:     cfg.Environment,
		SecretLength:    len(secret),
		Warnings:        []string{},
		Recommendations: []string{},
	}

	if len(secret) < jwt.MinSecretLength {
		r.Warnings = append(r.Warnings, fmt.Sprintf("JWT secret is shorter than recommended %d characters", jwt.MinSecretLength))
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Generate a new JWT secret with at least %d characters", jwt.MinSecretLength))
		r.IsSecure = false
	}
	if jwt.HasPlaceholder(secret) {
		r.Warnings = append(r.Warnings, "Using default JWT secret")
		r.Recommendations = append(r.Recommendations, "Generate a secure random JWT secret for production")
		r.IsSecure = false
	}

	switch cfg.Environment {
	case EnvironmentProduction:
		if r.IsSecure {
			r.Recommendations = append(r.Recommendations, "Production environment with secure configuration")
		}
	case EnvironmentDevelopment:
		r.Recommendations = append(r.Recommendations, "Development environment - ensure secure config before production")
	default:
		r.Warnings = append(r.Warnings, fmt.Sprintf("Unknown environment: %s", cfg.Environment))
	}

	r.Recommendations = append(r.Recommendations,
		"Using Argon2id for password hashing",
		fmt.Sprintf("JWT tokens expire in %s", hoursLabel(cfg.JWT.ExpirationHours)),
		fmt.Sprintf("Refresh tokens expire in %s", daysLabel(cfg.JWT.RefreshExpirationDays)),
	)
	return r
}

func hoursLabel(n int) string {
	if n == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", n)
}

func daysLabel(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// WriteTo prints r in the operator-facing text layout.
func (r SecurityReport) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	status := "SECURE"
	if !r.IsSecure {
		status = "NEEDS ATTENTION"
	}

	fmt.Fprintln(&b, "MEDAUTH SECURITY REPORT")
	fmt.Fprintln(&b, "=======================")
	fmt.Fprintf(&b, "Environment: %s\n", r.Environment)
	fmt.Fprintf(&b, "Security Status: %s\n", status)
	fmt.Fprintf(&b, "JWT Secret Length: %d characters\n", r.SecretLength)
	if len(r.Warnings) > 0 {
		fmt.Fprintln(&b, "\nWARNINGS:")
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warning)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(&b, "\nRECOMMENDATIONS:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// SecurityReport reports on the configuration the engine was built with.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return BuildSecurityReport(e.config)
}
