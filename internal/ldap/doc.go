/*
Package ldap provides the Active Directory LDAP transport used by the directory
wrappers and the Terraform provider.

# Connection Management

The Client interface hides a pool of bound connections:

  - SRV-based domain controller discovery
  - Connection pooling with health checks
  - Retry with exponential backoff for retryable failures
  - Password (simple bind) and Kerberos (GSSAPI) authentication
  - LDAPS or StartTLS with custom CA material

# Requests

SearchRequest, AddRequest, ModifyRequest and ModifyDNRequest mirror their
go-ldap counterparts with attribute maps instead of builder calls. A
ModifyRequest applies value deletions, adds, replaces and attribute deletions
in that order.

# Identifiers

GUIDHandler and SIDHandler convert objectGUID and objectSid between their
binary and string forms. Resolver maps DNs, GUIDs, SIDs, UPNs and
sAMAccountNames to a DN. The dn.go helpers parse, build and normalize DNs.

# Error Handling

Failures are returned as *LDAPError, categorized (connection, authentication,
not found, conflict and so on) and marked retryable where appropriate.
IsNotFoundError and friends classify wrapped errors.

# Example Usage

	config := ldap.DefaultConfig()
	config.Domain = "example.com"
	config.Username = "administrator@example.com"
	config.Password = "password"

	client, err := ldap.NewClient(ctx, config)
	if err != nil {
		return err
	}
	defer client.Close()

	dn, err := ldap.NewResolver(client, "DC=example,DC=com").ResolveToDN(ctx, "jdoe@example.com")
	if err != nil {
		return err
	}
*/
package ldap
