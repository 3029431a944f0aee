package errors

import "fmt"

var (
	ErrAuthFailed         = fmt.Errorf("invalid user id or password")
	ErrAlreadyOnline      = fmt.Errorf("account already logged in")
	ErrRegistrationFailed = fmt.Errorf("registration failed")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrGroupNotFound      = fmt.Errorf("group not found")
)
