package ldap

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

const (
	// fileTimeEpochOffset is the number of 100ns intervals between 1601-01-01 and 1970-01-01.
	fileTimeEpochOffset int64 = 116444736000000000

	// FileTimeNever is the accountExpires value meaning the account never expires.
	FileTimeNever int64 = math.MaxInt64
)

// LargeInteger is the ADSI IADsLargeInteger view of a 64-bit FILETIME. LDAP
// carries FILETIME attributes as one decimal string, so the directory
// wrappers never split values; this is for callers holding ADSI halves.
type LargeInteger struct {
	HighPart int32
	LowPart  int32
}

// Int64 joins the two halves. LowPart is treated as unsigned.
func (li LargeInteger) Int64() int64 {
	return int64(li.HighPart)<<32 | int64(li.LowPart)&0xFFFFFFFF
}

// SplitLargeInteger splits v into its high and low halves.
func SplitLargeInteger(v int64) LargeInteger {
	return LargeInteger{
		HighPart: int32(v >> 32),
		LowPart:  int32(v & 0xFFFFFFFF),
	}
}

// FileTimeToTime converts a FILETIME to UTC time. Zero and FileTimeNever
// both mean "no value" and yield nil.
func FileTimeToTime(ft int64) *time.Time {
	if ft <= 0 || ft == FileTimeNever {
		return nil
	}

	// Split into seconds first; a Duration overflows past 2262.
	d := ft - fileTimeEpochOffset
	t := time.Unix(d/10_000_000, (d%10_000_000)*100).UTC()
	return &t
}

// TimeToFileTime converts t to a FILETIME. A nil time yields FileTimeNever.
func TimeToFileTime(t *time.Time) int64 {
	if t == nil {
		return FileTimeNever
	}

	// Duration overflows past year 2262; go through seconds instead.
	secs := t.Unix()
	return (secs*10_000_000 + int64(t.Nanosecond())/100) + fileTimeEpochOffset
}

// ParseFileTime parses the decimal string AD returns for FILETIME attributes.
func ParseFileTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	ft, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FILETIME value %q: %w", s, err)
	}

	return FileTimeToTime(ft), nil
}

// FormatFileTime renders t as the decimal string AD expects.
func FormatFileTime(t *time.Time) string {
	return strconv.FormatInt(TimeToFileTime(t), 10)
}

// ParseGeneralizedTime parses whenCreated-style timestamps.
func ParseGeneralizedTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	t, err := ber.ParseGeneralizedTime([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("invalid generalized time %q: %w", s, err)
	}

	t = t.UTC()
	return &t, nil
}
