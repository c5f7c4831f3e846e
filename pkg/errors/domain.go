package errors

func sentinel(code int, message string) *Error {
	return &Error{Code: code, Message: message, generic: true}
}

// 领域哨兵错误，errors.Is 按错误码匹配，Wrap/WithContext 之后仍然成立
var (
	// ErrNoContacts 没有配置紧急联系人，告警流程在分发前终止
	ErrNoContacts = sentinel(CodeNoContacts, "no emergency contacts configured")
	// ErrLocationUnavailable 定位失败或超时，告警以 "Location unavailable" 继续
	ErrLocationUnavailable = sentinel(CodeLocationUnavailable, "location unavailable")
	// ErrDispatchFailed 单个联系人的消息意图无法发出
	ErrDispatchFailed = sentinel(CodeDispatchFailed, "dispatch failed")
	// ErrInvalidGeofence 围栏半径非正或名称为空
	ErrInvalidGeofence = sentinel(CodeInvalidGeofence, "invalid geofence")
	// ErrPlatformUnsupported 平台能力缺失，功能隐藏
	ErrPlatformUnsupported = sentinel(CodePlatformUnsupported, "platform unsupported")
	ErrInvalidInput        = sentinel(CodeInvalidInput, "invalid input")
	ErrNotFound            = sentinel(CodeNotFound, "not found")
)
