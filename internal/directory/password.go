package directory

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// encodePassword renders pwd the way AD expects unicodePwd: wrapped in
// double quotes and encoded as UTF-16LE without a byte order mark.
func encodePassword(pwd string) (string, error) {
	if pwd == "" {
		return "", fmt.Errorf("%w: password cannot be empty", ErrInvalidArgument)
	}

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(`"` + pwd + `"`)
	if err != nil {
		return "", fmt.Errorf("failed to encode password: %w", err)
	}
	return encoded, nil
}
