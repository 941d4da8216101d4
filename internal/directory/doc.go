// Package directory wraps single Active Directory entries with typed
// accessors.
//
// An Entry holds the attribute values read from one directory object and
// maps named properties such as DisplayName or ExpirationDate onto the raw
// attributes (displayName, accountExpires). User, Group and OU embed Entry
// and add the properties specific to those object classes.
//
// Reads never touch the network except for CanonicalName, which fetches the
// constructed canonicalName attribute on first use. Writes are staged on the
// entry's Properties and sent as a single modify by CommitChanges.
//
//	user, err := directory.OpenUser(ctx, client, dn, directory.WithLeaveOpen())
//	if err != nil {
//		return err
//	}
//	defer user.Close()
//
//	user.SetTitle("Engineer")
//	if err := user.SetPrimarySmtpAddress("jdoe@example.com"); err != nil {
//		return err
//	}
//	return user.CommitChanges(ctx)
//
// Protocol work, pooling and retry belong to the ldap package; nothing in
// this package retries.
package directory
