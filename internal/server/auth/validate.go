package auth

import (
	"regexp"
	"unicode/utf8"

	"github.com/jimzhouzzy/klotski-server/internal/common"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidUsername reports whether name is non-empty, at most
// common.MaxUsernameLength characters and only letters, digits and '_'.
// The same rule keeps usernames safe to use as directory names.
func ValidUsername(name string) bool {
	return name != "" &&
		utf8.RuneCountInString(name) <= common.MaxUsernameLength &&
		usernamePattern.MatchString(name)
}

// ValidateCredentials applies the signup/login input rules and returns
// common.ErrorInvalidInput on violation.
func ValidateCredentials(username, password string) error {
	if !ValidUsername(username) {
		return common.ErrorInvalidInput
	}
	if password == "" || utf8.RuneCountInString(password) > common.MaxPasswordLength {
		return common.ErrorInvalidInput
	}
	return nil
}
