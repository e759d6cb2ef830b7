package domain

import (
	"os"
	"strings"
)

// AuthToken is an opaque credential persisted as a single trimmed UTF-8
// line in the file named by the PCClient configuration's token_file_path.
type AuthToken string

// Empty reports whether the token carries no usable value.
func (t AuthToken) Empty() bool {
	return strings.TrimSpace(string(t)) == ""
}

// LoadAuthToken reads and trims a token file. A missing file is not an
// error: it reports an empty token so the caller proceeds to acquisition.
func LoadAuthToken(path string) (AuthToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return AuthToken(strings.TrimSpace(string(data))), nil
}

// SaveAuthToken writes the token as a single trimmed UTF-8 line, replacing
// any existing file.
func SaveAuthToken(path string, token AuthToken) error {
	return os.WriteFile(path, []byte(strings.TrimSpace(string(token))+"\n"), 0o600)
}

// ClearAuthToken removes a persisted token file on explicit rejection, so
// the next LoadAuthToken reports it empty rather than handing the same
// rejected credential back to the caller. A file that doesn't exist is not
// an error.
func ClearAuthToken(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
