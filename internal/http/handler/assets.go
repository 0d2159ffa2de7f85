package handler

import (
	"strings"

	"appstore/internal/model"
)

// AssetURLs renders stored asset URLs for responses. With an empty Base they stay relative.
type AssetURLs struct {
	Base string
}

func (u AssetURLs) resolve(rel string) string {
	if u.Base == "" || !strings.HasPrefix(rel, "/") {
		return rel
	}
	return strings.TrimRight(u.Base, "/") + rel
}

func (u AssetURLs) app(a *model.Application) {
	if a == nil {
		return
	}
	a.IconURL = u.resolve(a.IconURL)
	a.APKURL = u.resolve(a.APKURL)
	for i, s := range a.Screenshots {
		a.Screenshots[i] = u.resolve(s)
	}
}

func (u AssetURLs) summary(s *model.ApplicationSummary) {
	s.IconURL = u.resolve(s.IconURL)
}
