package domain

import "errors"

// 业务错误类型；上层用 errors.Is 判断并映射为 HTTP 状态码
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoCopiesAvailable  = errors.New("no copies available")
	ErrConflict           = errors.New("concurrent modification")
	ErrPersistence        = errors.New("persistence error")
)
