package ldap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of LDAP errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// LDAPError provides enhanced error information for LDAP operations.
type LDAPError struct {
	Operation string        // The operation that failed
	Category  ErrorCategory // Error category
	LDAPCode  uint16        // LDAP result code
	Message   string        // Human-readable message
	ServerMsg string        // Server-provided message
	DN        string        // DN involved in the operation (if applicable)
	Retryable bool          // Whether the error is retryable
	Cause     error         // Underlying error
}

func (e *LDAPError) Error() string {
	var parts []string

	if e.LDAPCode > 0 {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMsg))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *LDAPError) IsRetryable() bool {
	return e.Retryable
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// NewLDAPError creates a new LDAP error.
func NewLDAPError(operation string, err error) *LDAPError {
	if err == nil {
		return nil
	}

	ldapErr := &LDAPError{
		Operation: operation,
		Cause:     err,
	}

	var resultErr *ldap.Error
	switch {
	case errors.As(err, &resultErr):
		ldapErr.LDAPCode = resultErr.ResultCode
		if resultErr.Err != nil {
			ldapErr.ServerMsg = resultErr.Err.Error()
		}
		ldapErr.DN = resultErr.MatchedDN
		ldapErr.Category = categorizeError(resultErr.ResultCode)
		ldapErr.Retryable = isLDAPCodeRetryable(resultErr.ResultCode)
		ldapErr.Message = getLDAPCodeMessage(resultErr.ResultCode)
	case errors.Is(err, context.DeadlineExceeded):
		ldapErr.Category = ErrorCategoryTimeout
		ldapErr.Message = err.Error()
	default:
		ldapErr.Category = categorizeGenericError(err)
		ldapErr.Retryable = isGenericErrorRetryable(err)
		ldapErr.Message = err.Error()
	}

	return ldapErr
}

// NewLDAPErrorWithDN creates a new LDAP error that records the DN the operation targeted.
func NewLDAPErrorWithDN(operation, dn string, err error) *LDAPError {
	ldapErr := NewLDAPError(operation, err)
	if ldapErr != nil && dn != "" {
		ldapErr.DN = dn
	}
	return ldapErr
}

// categorizeError categorizes an error based on LDAP result code.
func categorizeError(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultConfidentialityRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultUndefinedAttributeType,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultNotAllowedOnRDN,
		ldap.LDAPResultFilterError:
		return ErrorCategoryValidation

	case ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultTimeout:
		return ErrorCategoryTimeout

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return ErrorCategoryConnection

	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultOperationsError,
		ldap.LDAPResultOther:
		return ErrorCategoryServer

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes a non-LDAP error by its message.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return ErrorCategoryTimeout
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"),
		strings.Contains(errStr, "dial"), strings.Contains(errStr, "broken pipe"):
		return ErrorCategoryConnection
	case strings.Contains(errStr, "authentication"), strings.Contains(errStr, "bind"),
		strings.Contains(errStr, "credential"):
		return ErrorCategoryAuthentication
	case strings.Contains(errStr, "access"), strings.Contains(errStr, "denied"):
		return ErrorCategoryPermission
	}

	return ErrorCategoryUnknown
}

// isLDAPCodeRetryable determines if an LDAP error code indicates a retryable condition.
func isLDAPCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError,
		ldap.ErrorNetwork:
		return true
	default:
		return false
	}
}

// isGenericErrorRetryable determines if a generic error is retryable.
func isGenericErrorRetryable(err error) bool {
	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"connection",
		"timeout",
		"network",
		"broken pipe",
		"temporary failure",
		"server temporarily unavailable",
		"bind must be completed",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

var ldapCodeMessages = map[uint16]string{
	ldap.LDAPResultOperationsError:              "LDAP operations error",
	ldap.LDAPResultProtocolError:                "LDAP protocol error",
	ldap.LDAPResultTimeLimitExceeded:            "LDAP time limit exceeded",
	ldap.LDAPResultSizeLimitExceeded:            "LDAP size limit exceeded",
	ldap.LDAPResultAuthMethodNotSupported:       "Authentication method not supported",
	ldap.LDAPResultStrongAuthRequired:           "Strong authentication required",
	ldap.LDAPResultConfidentialityRequired:      "Confidentiality (TLS) required",
	ldap.LDAPResultNoSuchAttribute:              "Attribute does not exist",
	ldap.LDAPResultUndefinedAttributeType:       "Attribute type is not defined in the schema",
	ldap.LDAPResultConstraintViolation:          "Attribute value violates a constraint",
	ldap.LDAPResultAttributeOrValueExists:       "Attribute or value already exists",
	ldap.LDAPResultInvalidAttributeSyntax:       "Invalid attribute syntax",
	ldap.LDAPResultNoSuchObject:                 "Object does not exist",
	ldap.LDAPResultInvalidDNSyntax:              "Invalid DN syntax",
	ldap.LDAPResultInappropriateAuthentication:  "Inappropriate authentication",
	ldap.LDAPResultInvalidCredentials:           "Invalid credentials",
	ldap.LDAPResultInsufficientAccessRights:     "Insufficient access rights",
	ldap.LDAPResultBusy:                         "Server is busy",
	ldap.LDAPResultUnavailable:                  "Server is unavailable",
	ldap.LDAPResultUnwillingToPerform:           "Server is unwilling to perform the operation",
	ldap.LDAPResultNamingViolation:              "Naming violation",
	ldap.LDAPResultObjectClassViolation:         "Object class violation",
	ldap.LDAPResultNotAllowedOnNonLeaf:          "Operation not allowed on non-leaf entry",
	ldap.LDAPResultNotAllowedOnRDN:              "Operation not allowed on RDN",
	ldap.LDAPResultEntryAlreadyExists:           "Entry already exists",
	ldap.LDAPResultServerDown:                   "Server is down",
	ldap.LDAPResultTimeout:                      "Operation timed out",
	ldap.LDAPResultFilterError:                  "Invalid search filter",
	ldap.LDAPResultConnectError:                 "Connection error",
	ldap.ErrorNetwork:                           "Network error",
	ldap.LDAPResultUnavailableCriticalExtension: "Critical extension is unavailable",
}

// getLDAPCodeMessage returns a human-readable message for an LDAP result code.
func getLDAPCodeMessage(code uint16) string {
	if msg, ok := ldapCodeMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown LDAP error (code %d)", code)
}

// WrapError wraps an error with operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		if ldapErr.Operation == "" {
			ldapErr.Operation = operation
		}
		return err
	}

	return NewLDAPError(operation, err)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return isLDAPCodeRetryable(resultErr.ResultCode)
	}

	return isGenericErrorRetryable(err)
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return ldapErr.Category
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return categorizeError(resultErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// IsConflictError checks if an error indicates a conflict (already exists).
func IsConflictError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConflict
}

// IsAuthenticationError checks if an error indicates an authentication problem.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsPermissionError checks if an error indicates a permission problem.
func IsPermissionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryPermission
}

// IsLDAPResultCode reports whether err carries the given LDAP result code.
func IsLDAPResultCode(err error, code uint16) bool {
	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) && ldapErr.LDAPCode == code {
		return true
	}
	var resultErr *ldap.Error
	return errors.As(err, &resultErr) && resultErr.ResultCode == code
}
