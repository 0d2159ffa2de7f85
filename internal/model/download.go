package model

import "time"

// Download records one successful package download. UserID is empty for anonymous downloads.
type Download struct {
	ID        string    `json:"id"`
	AppID     string    `json:"appId"`
	UserID    string    `json:"userId,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
