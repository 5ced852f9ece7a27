package repository

import (
	"encoding/json"
	"time"
)

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
