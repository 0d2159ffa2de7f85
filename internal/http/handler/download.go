package handler

import (
	"errors"
	"io"
	"net/url"
	"path"

	"github.com/gofiber/fiber/v2"

	"appstore/internal/http/middleware"
	"appstore/internal/service"
	"appstore/internal/storage"
)

// DownloadAsset streams a stored file as an attachment. Package downloads of known applications
// are recorded, attributed to the caller when a valid bearer token is sent.
//
// @Summary Download an asset
// @Tags downloads
// @Produce octet-stream
// @Param path path string true "Path below /apps in the form <title>/<file>, e.g. MyApp/myapp.apk"
// @Success 200 {file} binary
// @Failure 404 {object} errorPayload
// @Router /app/download/{path} [get]
func DownloadAsset(svc service.DownloadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rel, err := url.PathUnescape(c.Params("*"))
		if err != nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}

		who := service.Downloader{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
		if u := middleware.CurrentUser(c); u != nil {
			who.UserID = u.ID
		}

		rc, info, err := svc.Open(c.UserContext(), rel, who)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Attachment(path.Base(path.Clean("/" + rel)))
		return sendObject(c, rc, info)
	}
}

// ServeAssets serves the asset tree from a storage backend that has no local directory.
func ServeAssets(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rel, err := url.PathUnescape(c.Params("*"))
		if err != nil {
			return fiber.ErrNotFound
		}
		key, err := storage.ResolveAssetKey(rel)
		if err != nil {
			return fiber.ErrNotFound
		}
		rc, info, err := store.Get(c.UserContext(), key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
				return fiber.ErrNotFound
			}
			return err
		}
		c.Type(path.Ext(key))
		return sendObject(c, rc, info)
	}
}

func sendObject(c *fiber.Ctx, rc io.ReadCloser, info storage.ObjectInfo) error {
	if info.ContentType != "" {
		c.Set(fiber.HeaderContentType, info.ContentType)
	}
	if info.Size > 0 {
		return c.SendStream(rc, int(info.Size))
	}
	return c.SendStream(rc)
}
