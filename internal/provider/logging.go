package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-adex/internal/ldap"
)

// initializeLogging registers the module's log subsystems. Each level is read
// from TF_LOG_PROVIDER_ADEX_<SUBSYSTEM>.
func initializeLogging(ctx context.Context) context.Context {
	for _, subsystem := range []string{
		ldapclient.SubsystemProvider,
		ldapclient.SubsystemDirectory,
		ldapclient.SubsystemLDAP,
	} {
		ctx = tflog.NewSubsystem(ctx, subsystem,
			tflog.WithLevelFromEnv("TF_LOG_PROVIDER_ADEX_"+strings.ToUpper(subsystem)))
	}
	return ctx
}

// diagnosticsError flattens error diagnostics for the operation exit log.
func diagnosticsError(diags diag.Diagnostics) error {
	if !diags.HasError() {
		return nil
	}

	errs := make([]error, 0, diags.ErrorsCount())
	for _, d := range diags.Errors() {
		errs = append(errs, errors.New(d.Summary()+": "+d.Detail()))
	}
	return errors.Join(errs...)
}
