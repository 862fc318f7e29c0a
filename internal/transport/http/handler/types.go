package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Count 表单里的数字可能以字符串提交（"5"）
type Count int

func (n *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = Count(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Count(v)
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04", // <input type="datetime-local">
	time.DateOnly,      // <input type="date">
}

// Timestamp 接受 RFC3339 / datetime-local / date，空串视为未提供
type Timestamp struct {
	time.Time
	Set bool
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string")
	}
	if s = strings.TrimSpace(s); s == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{Time: v.UTC(), Set: true}
			return nil
		}
	}
	return fmt.Errorf("invalid time %q", s)
}

// Ptr 未提供时返回 nil
func (t Timestamp) Ptr() *time.Time {
	if !t.Set {
		return nil
	}
	v := t.Time
	return &v
}
