package utils

import "github.com/google/uuid"

// NewID 返回 UUIDv7 字符串，按生成时间单调递增，可直接用于排序
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
