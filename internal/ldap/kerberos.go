package ldap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosPrincipal splits a configured username into principal and realm.
// A realm embedded as user@REALM is used when KerberosRealm is empty.
func kerberosPrincipal(cfg *ConnectionConfig) (string, string, error) {
	username, realm := cfg.Username, cfg.KerberosRealm

	if user, embedded, ok := strings.Cut(username, "@"); ok {
		username = user
		if realm == "" {
			realm = strings.ToUpper(embedded)
		}
	}

	if realm == "" {
		return "", "", errors.New("kerberos realm is required (set kerberos_realm or include realm in username)")
	}
	if username == "" {
		return "", "", errors.New("username (principal) is required for Kerberos authentication")
	}
	return username, realm, nil
}

// performKerberosAuth performs a GSSAPI bind on conn.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, serverInfo *ServerInfo) error {
	client, err := createGSSAPIClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
		_ = client.Close()
	}()

	spn, err := buildServicePrincipal(cfg, serverInfo)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Performing GSSAPI bind", map[string]any{
		"spn": spn,
	})

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// createGSSAPIClient picks credentials in order: explicit ccache, default
// ccache, explicit keytab, default keytab, password.
func createGSSAPIClient(ctx context.Context, cfg *ConnectionConfig) (*gssapi.Client, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = defaultKrb5Conf
	}
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s; create it or set kerberos_config. Example:\n%s",
			krb5conf, exampleKrb5Conf(cfg.KerberosRealm))
	}

	disableFAST := krb5client.DisablePAFXFAST(true)

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, disableFAST)
	}

	if ccache := defaultCCachePath(); fileExists(ccache) {
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Using default credential cache", map[string]any{
			"ccache": ccache,
		})
		return gssapi.NewClientFromCCache(ccache, krb5conf, disableFAST)
	}

	username, realm, err := kerberosPrincipal(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(username, realm, cfg.KerberosKeytab, krb5conf, disableFAST)
	}

	if keytab := defaultKeytabPath(); fileExists(keytab) {
		return gssapi.NewClientWithKeytab(username, realm, keytab, krb5conf, disableFAST)
	}

	if cfg.Password != "" {
		return gssapi.NewClientWithPassword(username, realm, cfg.Password, krb5conf, disableFAST)
	}

	return nil, errors.New("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns KerberosSPN when set, otherwise ldap/<host>.
func buildServicePrincipal(cfg *ConnectionConfig, serverInfo *ServerInfo) (string, error) {
	if cfg == nil {
		return "", errors.New("configuration is required for service principal")
	}
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}
	if serverInfo == nil || serverInfo.Host == "" {
		return "", errors.New("hostname is required for service principal")
	}

	host, _, _ := strings.Cut(serverInfo.Host, ":")
	return "ldap/" + host, nil
}

func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func defaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// exampleKrb5Conf renders a minimal krb5.conf for error messages.
func exampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "EXAMPLE.COM"
	}
	domain := strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %[1]s
    dns_lookup_kdc = true

[realms]
    %[1]s = {
        kdc = dc.%[2]s:88
    }

[domain_realm]
    .%[2]s = %[1]s
    %[2]s = %[1]s`, realm, domain)
}
