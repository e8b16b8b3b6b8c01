package auth

import (
	"errors"

	"cloudtodo/internal/service"
)

// Provider error codes. Backends classify their native errors into these.
const (
	CodeEmailInUse          = "email-already-in-use"
	CodeWeakPassword        = "weak-password"
	CodeInvalidEmail        = "invalid-email"
	CodeWrongCredentials    = "wrong-credentials"
	CodeTooManyRequests     = "too-many-requests"
	CodePopupBlocked        = "popup-blocked"
	CodePopupClosed         = "popup-closed-by-user"
	CodeCancelled           = "cancelled-popup-request"
	CodeNetwork             = "network-request-failed"
	CodeConfig              = "configuration-not-found"
	CodeOperationNotAllowed = "operation-not-allowed"
	CodeNotInitialized      = "not-initialized"
	CodeInvalidAPIKey       = "invalid-api-key"
	CodeSessionExpired      = "session-expired"
)

var messages = map[string]string{
	CodeEmailInUse:          "此電子郵件已被使用，請嘗試登錄或使用其他郵箱",
	CodeWeakPassword:        "密碼太弱，請使用更強的密碼（至少6個字符）",
	CodeInvalidEmail:        "無效的電子郵件格式",
	CodeWrongCredentials:    "電子郵件或密碼不正確",
	CodeTooManyRequests:     "登錄嘗試次數過多，請稍後重試",
	CodePopupBlocked:        "登錄彈窗被阻止，請允許彈窗後重試",
	CodePopupClosed:         "登錄過程中彈窗被關閉，請重試",
	CodeCancelled:           "登錄請求已取消，請重試",
	CodeNetwork:             "網絡連接失敗，請檢查您的網絡連接",
	CodeConfig:              "Firebase 認證未正確配置，請聯系管理員",
	CodeOperationNotAllowed: "電子郵件/密碼認證方法未在 Firebase 控制台啟用。請聯系管理員開啟此功能。",
	CodeNotInitialized:      "Firebase 認證服務未初始化，請聯系管理員",
	CodeInvalidAPIKey:       "Firebase API 密鑰無效",
	CodeSessionExpired:      "登入已過期，請重新登入",
}

// Validation messages for the sign-in and registration forms.
const (
	MsgRequiredFields = "請填寫所有必填欄位"
	MsgDisplayName    = "請填寫顯示名稱"
	msgLoginFailed    = "登入失敗，請重試"
)

// Errorf returns a KindAuth error carrying code.
func Errorf(code string, err error) error {
	return &service.Error{Kind: service.KindAuth, Code: code, Err: err}
}

// Message maps err to the text shown to the user: the localized message
// for a known code, the validation message, or the raw error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *service.Error
	if errors.As(err, &e) {
		if msg, ok := messages[e.Code]; ok {
			return msg
		}
		if e.Kind == service.KindValidation && e.Message != "" {
			return e.Message
		}
	}
	if s := err.Error(); s != "" {
		return s
	}
	return msgLoginFailed
}

// GoogleMessage is Message for the federated sign-in path, where a
// configuration error suggests falling back to email sign-in.
func GoogleMessage(err error) string {
	if service.CodeOf(err) == CodeConfig {
		return "Google 登錄未正確配置，請使用電子郵件登錄"
	}
	return Message(err)
}

func validation(msg string) error {
	return &service.Error{Kind: service.KindValidation, Message: msg}
}
