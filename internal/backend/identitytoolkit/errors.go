package identitytoolkit

import (
	"context"
	"errors"
	"net"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/service"
)

// errorCodes maps REST error message tokens to auth codes. Messages look
// like "WEAK_PASSWORD : Password should be at least 6 characters".
var errorCodes = []struct {
	token string
	code  string
}{
	{"EMAIL_EXISTS", auth.CodeEmailInUse},
	{"WEAK_PASSWORD", auth.CodeWeakPassword},
	{"INVALID_EMAIL", auth.CodeInvalidEmail},
	{"MISSING_EMAIL", auth.CodeInvalidEmail},
	{"EMAIL_NOT_FOUND", auth.CodeWrongCredentials},
	{"INVALID_PASSWORD", auth.CodeWrongCredentials},
	{"INVALID_LOGIN_CREDENTIALS", auth.CodeWrongCredentials},
	{"TOO_MANY_ATTEMPTS_TRY_LATER", auth.CodeTooManyRequests},
	{"CONFIGURATION_NOT_FOUND", auth.CodeConfig},
	{"INVALID_IDP_RESPONSE", auth.CodeConfig},
	{"OPERATION_NOT_ALLOWED", auth.CodeOperationNotAllowed},
	{"PASSWORD_LOGIN_DISABLED", auth.CodeOperationNotAllowed},
	{"API_KEY_INVALID", auth.CodeInvalidAPIKey},
	{"API key not valid", auth.CodeInvalidAPIKey},
	{"TOKEN_EXPIRED", auth.CodeSessionExpired},
	{"INVALID_REFRESH_TOKEN", auth.CodeSessionExpired},
	{"INVALID_ID_TOKEN", auth.CodeSessionExpired},
	{"USER_NOT_FOUND", auth.CodeSessionExpired},
	{"USER_DISABLED", auth.CodeSessionExpired},
}

// classify converts a REST, OAuth2 or transport error into a KindAuth
// service.Error carrying the matching auth code.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return auth.Errorf(auth.CodeNetwork, err)
	}

	msg := err.Error()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg = gerr.Message
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		msg = string(rerr.Body)
	}

	if code := codeFor(msg); code != "" {
		return auth.Errorf(code, err)
	}
	return &service.Error{Kind: service.KindAuth, Err: err}
}

func codeFor(msg string) string {
	for _, ec := range errorCodes {
		if strings.Contains(msg, ec.token) {
			return ec.code
		}
	}
	return ""
}
