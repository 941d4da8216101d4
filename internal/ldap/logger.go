package ldap

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Log subsystems used across the module.
const (
	SubsystemLDAP      = "ldap"
	SubsystemDirectory = "directory"
	SubsystemProvider  = "provider"
)

// slowOperationThreshold marks operations logged at warn level by LogPerformance.
const slowOperationThreshold = 5 * time.Second

var sensitiveKeys = map[string]bool{
	"password":     true,
	"passwd":       true,
	"old_password": true,
	"new_password": true,
	"unicodepwd":   true,
	"secret":       true,
	"token":        true,
	"private_key":  true,
	"credential":   true,
	"credentials":  true,
}

var sensitivePatterns = []string{
	"password=",
	"passwd=",
	"secret=",
	"token=",
	"unicodepwd",
}

// withFields copies fields so callers can keep reusing their map.
func withFields(fields map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+len(extra))
	maps.Copy(out, fields)
	maps.Copy(out, extra)
	return out
}

// LogOperation runs fn and logs its start, duration and outcome under subsystem.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()
	base := withFields(SanitizeFields(fields), map[string]any{"operation": operation})

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", base)

	err := fn()

	done := withFields(base, map[string]any{"duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		done["error"] = err.Error()
		tflog.SubsystemError(ctx, subsystem, "Operation failed", done)
		return err
	}

	tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", done)
	return nil
}

// LogPerformance logs the duration of an operation, escalating slow ones.
func LogPerformance(ctx context.Context, subsystem, operation string, duration time.Duration, fields map[string]any) {
	out := withFields(fields, map[string]any{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})

	switch {
	case duration > slowOperationThreshold:
		tflog.SubsystemWarn(ctx, subsystem, "Slow operation detected", out)
	case duration > time.Second:
		tflog.SubsystemInfo(ctx, subsystem, "Operation performance", out)
	default:
		tflog.SubsystemDebug(ctx, subsystem, "Operation performance", out)
	}
}

// LogLDAPError logs LDAP-specific error information.
func LogLDAPError(ctx context.Context, subsystem string, operation string, err error, fields map[string]any) {
	out := withFields(SanitizeFields(fields), map[string]any{
		"operation": operation,
		"error":     err.Error(),
		"category":  string(GetErrorCategory(err)),
	})

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		out["ldap_result_code"] = resultErr.ResultCode
		if resultErr.MatchedDN != "" {
			out["ldap_matched_dn"] = resultErr.MatchedDN
		}
		if resultErr.Err != nil {
			out["ldap_diagnostic_message"] = resultErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, subsystem, "LDAP operation failed", out)
}

// LogConnectionEvent logs connection-related events.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	out := withFields(SanitizeFields(fields), map[string]any{"event": event})

	switch event {
	case "connection_established", "authentication_success":
		tflog.SubsystemInfo(ctx, SubsystemLDAP, "Connection event", out)
	case "connection_failed", "authentication_failed", "connection_lost":
		tflog.SubsystemError(ctx, SubsystemLDAP, "Connection event", out)
	default:
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Connection event", out)
	}
}

// LogPoolEvent logs connection pool lifecycle events.
func LogPoolEvent(ctx context.Context, event string, fields map[string]any) {
	out := withFields(fields, map[string]any{"event": event})

	switch event {
	case "pool_created", "pool_closed":
		tflog.SubsystemInfo(ctx, SubsystemLDAP, "Pool event", out)
	case "pool_exhausted", "health_check_failed":
		tflog.SubsystemWarn(ctx, SubsystemLDAP, "Pool event", out)
	default:
		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Pool event", out)
	}
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func containsSensitivePattern(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// LogResourceOperation logs entry to a Terraform resource operation and returns
// a function that logs its exit.
func LogResourceOperation(ctx context.Context, resource, operation string, fields map[string]any) func(error) {
	return logSurfaceOperation(ctx, "resource", resource, operation, fields)
}

// LogDataSourceOperation is LogResourceOperation for data sources.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	return logSurfaceOperation(ctx, "data_source", dataSource, operation, fields)
}

func logSurfaceOperation(ctx context.Context, kind, name, operation string, fields map[string]any) func(error) {
	start := time.Now()
	base := withFields(SanitizeFields(fields), map[string]any{
		kind:        name,
		"operation": operation,
	})

	tflog.SubsystemDebug(ctx, SubsystemProvider, "Starting "+strings.ReplaceAll(kind, "_", " ")+" operation", base)

	return func(err error) {
		done := withFields(base, map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"has_error":   err != nil,
		})

		if err != nil {
			done["error"] = err.Error()
			tflog.SubsystemError(ctx, SubsystemProvider, "Operation failed", done)
			return
		}
		tflog.SubsystemDebug(ctx, SubsystemProvider, "Operation completed", done)
	}
}
