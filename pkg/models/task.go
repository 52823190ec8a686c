package models

import "encoding/json"

// ConduitResponse is the envelope every Phabricator Conduit call returns
type ConduitResponse struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode *string         `json:"error_code"`
	ErrorInfo *string         `json:"error_info"`
}

// SearchResult is the "result" of a *.search Conduit method
type SearchResult[T any] struct {
	Data   []T `json:"data"`
	Cursor struct {
		Limit  int     `json:"limit"`
		After  *string `json:"after"`
		Before *string `json:"before"`
	} `json:"cursor"`
}

// Task represents a Maniphest task
type Task struct {
	ID     int    `json:"id"`
	PHID   string `json:"phid"`
	Fields struct {
		Name         string `json:"name"`
		DateModified int64  `json:"dateModified"`
	} `json:"fields"`
}

// User represents a Phabricator user from user.search
type User struct {
	ID     int    `json:"id"`
	PHID   string `json:"phid"`
	Fields struct {
		Username string `json:"username"`
		RealName string `json:"realName"`
	} `json:"fields"`
}
