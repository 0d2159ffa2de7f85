package model

import "time"

// DefaultVersion is applied when an upload omits the version field.
const DefaultVersion = "1.0.0"

// Application is a published listing together with the URLs of its stored assets.
// Asset URLs are relative to the static prefix, e.g. /apps/<title>/icon.png.
type Application struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	Version       string        `json:"version"`
	IsFree        bool          `json:"isFree"`
	Price         float64       `json:"price"`
	IconURL       string        `json:"iconUrl,omitempty"`
	APKURL        string        `json:"apkUrl,omitempty"`
	Screenshots   []string      `json:"screenshots"`
	DeveloperID   string        `json:"developerId"`
	Developer     *DeveloperRef `json:"developer,omitempty"`
	DownloadCount int           `json:"downloadCount"`
	Downloads     []Download    `json:"downloads,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// DeveloperRef is the public face of an application's owner.
type DeveloperRef struct {
	Name string `json:"name"`
}

// ApplicationSummary is the list projection; it omits the description and the download rows.
type ApplicationSummary struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Category      string        `json:"category"`
	Version       string        `json:"version"`
	IsFree        bool          `json:"isFree"`
	Price         float64       `json:"price"`
	IconURL       string        `json:"iconUrl,omitempty"`
	DeveloperID   string        `json:"developerId"`
	Developer     *DeveloperRef `json:"developer,omitempty"`
	DownloadCount int           `json:"downloadCount"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// DeveloperStats aggregates a developer's catalog.
type DeveloperStats struct {
	TotalApps      int     `json:"totalApps"`
	TotalDownloads int     `json:"totalDownloads"`
	TotalEarnings  float64 `json:"totalEarnings"`
}
