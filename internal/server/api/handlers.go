package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"droplink/internal/server/database"
	"droplink/internal/server/service"
)

// Handler contains the HTTP handlers for the droplink API.
type Handler struct {
	svc *service.ShareService
	db  *database.DB
}

// NewHandler creates a new handler with the given service dependency.
func NewHandler(svc *service.ShareService, db *database.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

// HandleUpload handles POST /api/links.
// Accepts a multipart form with a "file" field and optional "password",
// "download_limit" and "expiry_hours" fields.
func (h *Handler) HandleUpload(c echo.Context) error {
	ownerID := ownerFromContext(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "validation_failed",
			"file is required (use form field 'file')")
	}

	opts := service.UploadOptions{
		Password: c.FormValue("password"),
	}

	if raw := c.FormValue("download_limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed",
				"download_limit must be an integer")
		}
		opts.DownloadLimit = &limit
	}

	if raw := c.FormValue("expiry_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed",
				"expiry_hours must be an integer")
		}
		opts.ExpiryHours = &hours
	}

	src, err := fileHeader.Open()
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "internal_error",
			"failed to read uploaded file")
	}
	defer src.Close()

	result, err := h.svc.Upload(
		c.Request().Context(),
		ownerID,
		fileHeader.Filename,
		src,
		fileHeader.Size,
		opts,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleDownload handles GET and POST /d/:id.
// The password, when one is set on the link, arrives as a query parameter or
// form field. A GET without the password on a protected link answers
// password_required without consuming a download attempt, so a client can
// render a prompt and retry.
func (h *Handler) HandleDownload(c echo.Context) error {
	id := c.Param("id")
	password := c.FormValue("password")
	if password == "" {
		password = c.QueryParam("password")
	}

	dl, err := h.svc.Download(c.Request().Context(), id, password, service.ClientInfo{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	defer dl.Content.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", dl.Filename))
	c.Response().Header().Set(echo.HeaderContentLength,
		strconv.FormatInt(dl.ByteSize, 10))
	return c.Stream(http.StatusOK, dl.ContentType, dl.Content)
}

// HandleInfo handles GET /api/info/:id.
// Returns link metadata without consuming a download attempt; no password.
func (h *Handler) HandleInfo(c echo.Context) error {
	info, err := h.svc.Info(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleList handles GET /api/links.
func (h *Handler) HandleList(c echo.Context) error {
	infos, err := h.svc.List(c.Request().Context(), ownerFromContext(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"links": infos})
}

// HandleDelete handles DELETE /api/links/:id.
// Record and blob go together; if the blob lingers after the record is gone,
// the response says so instead of pretending full success.
func (h *Handler) HandleDelete(c echo.Context) error {
	blobDeleted, err := h.svc.Delete(c.Request().Context(), c.Param("id"), ownerFromContext(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	resp := echo.Map{"deleted": true}
	if !blobDeleted {
		resp["warning"] = "record deleted but stored file could not be removed"
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate server statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "internal_error",
			"failed to retrieve stats")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_links":        stats.TotalLinks,
		"active_links":       stats.ActiveLinks,
		"total_downloads":    stats.TotalDownloads,
		"storage_used_bytes": stats.StorageUsed,
		"storage_used_human": humanizeBytes(stats.StorageUsed),
	})
}

// mapServiceError translates service-layer errors into HTTP responses. Every
// terminal verdict gets its own machine-readable code; clients never have to
// parse messages.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "not_found", "share link not found")
	case errors.Is(err, service.ErrExpired):
		return errorJSON(c, http.StatusGone, "expired", "share link has expired")
	case errors.Is(err, service.ErrLimitReached):
		return errorJSON(c, http.StatusGone, "limit_reached", "download limit has been reached")
	case errors.Is(err, service.ErrPasswordRequired):
		return errorJSON(c, http.StatusUnauthorized, "password_required", "this link requires a password")
	case errors.Is(err, service.ErrPasswordIncorrect):
		return errorJSON(c, http.StatusForbidden, "password_incorrect", "incorrect password")
	case errors.Is(err, service.ErrForbidden):
		return errorJSON(c, http.StatusForbidden, "forbidden", "only the owner may do that")
	case errors.Is(err, service.ErrFileTooLarge):
		return errorJSON(c, http.StatusRequestEntityTooLarge, "validation_failed", err.Error())
	case errors.Is(err, service.ErrExtensionNotAllowed),
		errors.Is(err, service.ErrInvalidDownloadLimit),
		errors.Is(err, service.ErrInvalidExpiry):
		return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, service.ErrStorageMissing):
		return errorJSON(c, http.StatusInternalServerError, "storage_missing",
			"the stored file is missing from storage")
	case errors.Is(err, service.ErrDuplicateID):
		return errorJSON(c, http.StatusInternalServerError, "duplicate_id",
			"could not allocate a unique link id")
	case errors.Is(err, service.ErrStorageWrite):
		return errorJSON(c, http.StatusInternalServerError, "storage_write_failed",
			"failed to store the uploaded file")
	default:
		return errorJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"error": code, "message": message})
}

func ownerFromContext(c echo.Context) string {
	ownerID, _ := c.Get(ownerIDKey).(string)
	return ownerID
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
