package services

import (
	"time"
)

// Helper functions to safely get values from query result rows.

func getString(row map[string]interface{}, key string) string {
	if val, ok := row[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
		if sp, ok := val.(*string); ok && sp != nil {
			return *sp
		}
	}
	return ""
}

func getInt64(row map[string]interface{}, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func getBool(row map[string]interface{}, key string) bool {
	if v, ok := row[key].(bool); ok {
		return v
	}
	return false
}

func getTime(row map[string]interface{}, key string) time.Time {
	if t := getTimePtr(row, key); t != nil {
		return *t
	}
	return time.Time{}
}

func getTimePtr(row map[string]interface{}, key string) *time.Time {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return &v
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		return v
	case string:
		layouts := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
