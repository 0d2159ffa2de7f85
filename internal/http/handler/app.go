package handler

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"appstore/internal/http/middleware"
	"appstore/internal/service"
)

// UploadApp accepts a multipart listing: metadata fields plus apk, icon and screenshots files.
//
// @Summary Upload an application
// @Tags apps
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Unique title, used as the asset folder name"
// @Param description formData string false "Description"
// @Param category formData string false "Category"
// @Param version formData string false "Version (default 1.0.0)"
// @Param isFree formData boolean false "Free listing (default true)"
// @Param price formData number false "Price (default 0)"
// @Param apk formData file false "Android package (.apk or .aab)"
// @Param icon formData file false "Icon image"
// @Param screenshots formData file false "Screenshot images"
// @Success 201 {object} model.Application
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Router /app/upload [post]
func UploadApp(svc service.ApplicationService, urls AssetURLs) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := middleware.CurrentUser(c)
		if user == nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORM", "multipart/form-data body required")
		}

		files, err := assetFiles(form)
		if err != nil {
			return writeServiceError(c, err)
		}
		meta := service.AppMetadata{
			Title:       formValue(form, "title"),
			Description: formValue(form, "description"),
			Category:    formValue(form, "category"),
			Version:     formValue(form, "version"),
			IsFree:      formValue(form, "isFree"),
			Price:       formValue(form, "price"),
		}

		app, err := svc.Upload(c.UserContext(), user.ID, meta, files)
		if err != nil {
			return writeServiceError(c, err)
		}
		urls.app(app)
		return c.Status(fiber.StatusCreated).JSON(app)
	}
}

// ListApps returns the public catalog, newest first.
//
// @Summary List applications
// @Tags apps
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Param category query string false "Only this category"
// @Success 200 {object} service.ApplicationListResult
// @Failure 400 {object} errorPayload
// @Router /app [get]
func ListApps(svc service.ApplicationService, urls AssetURLs) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "20"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), service.ListParams{
			Limit:    limit,
			Offset:   offset,
			Category: c.Query("category"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		for i := range res.Items {
			urls.summary(&res.Items[i])
		}
		return c.JSON(res)
	}
}

// GetApp returns one listing with its developer and downloads.
//
// @Summary Get an application
// @Tags apps
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} model.Application
// @Failure 404 {object} errorPayload
// @Router /app/get/{id} [get]
func GetApp(svc service.ApplicationService, urls AssetURLs) fiber.Handler {
	return func(c *fiber.Ctx) error {
		app, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		urls.app(app)
		return c.JSON(app)
	}
}

// MyApps lists the caller's applications.
//
// @Summary My applications
// @Tags apps
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Application
// @Failure 401 {object} errorPayload
// @Router /app/my-apps [get]
func MyApps(svc service.ApplicationService, urls AssetURLs) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apps, err := svc.ListForDeveloper(c.UserContext(), middleware.CurrentUser(c).ID)
		if err != nil {
			return writeServiceError(c, err)
		}
		for i := range apps {
			urls.app(&apps[i])
		}
		return c.JSON(apps)
	}
}

// DeveloperStats summarises the caller's catalog.
//
// @Summary Developer statistics
// @Tags apps
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.DeveloperStats
// @Failure 401 {object} errorPayload
// @Router /app/stats [get]
func DeveloperStats(svc service.ApplicationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.DeveloperStats(c.UserContext(), middleware.CurrentUser(c).ID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(stats)
	}
}

// DeleteApp removes one of the caller's applications and its assets.
//
// @Summary Delete an application
// @Tags apps
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /app/delete/{id} [delete]
func DeleteApp(svc service.ApplicationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id"), middleware.CurrentUser(c).ID); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func assetFiles(form *multipart.Form) (service.AssetFiles, error) {
	var files service.AssetFiles
	var err error
	if files.Package, err = singleFile(form, "apk"); err != nil {
		return files, err
	}
	if files.Icon, err = singleFile(form, "icon"); err != nil {
		return files, err
	}
	for _, key := range []string{"screenshots", "screenshots[]"} {
		for _, fh := range form.File[key] {
			files.Screenshots = append(files.Screenshots, fileUpload(fh))
		}
	}
	return files, nil
}

func singleFile(form *multipart.Form, field string) (*service.FileUpload, error) {
	switch fhs := form.File[field]; len(fhs) {
	case 0:
		return nil, nil
	case 1:
		f := fileUpload(fhs[0])
		return &f, nil
	default:
		return nil, &service.ValidationError{Field: field, Message: "only one file allowed"}
	}
}

func fileUpload(fh *multipart.FileHeader) service.FileUpload {
	return service.FileUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
