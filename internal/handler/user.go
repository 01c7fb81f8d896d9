package handler

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/config"
	"github.com/iliyamo/fleet-usage-control/internal/model"
	"github.com/iliyamo/fleet-usage-control/internal/repository"
)

// UserHandler covers account administration and profile endpoints.
type UserHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u}
}

const maxAvatarBytes = 5 << 20 // 5 MiB

var avatarExtByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// List returns users with offset pagination. Staff only (router-gated).
func (h *UserHandler) List(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, offset, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, userPartFrom(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// Get returns one user by id.
func (h *UserHandler) Get(c echo.Context) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, userPartFrom(u))
}

type userUpdateReq struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Unit  *string `json:"unit"`
	Role  *string `json:"role"`
}

// Update applies a partial update to a user record. Admin only.
func (h *UserHandler) Update(c echo.Context) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Role != nil && !model.ValidRole(strings.ToLower(*req.Role)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	if req.Role != nil {
		low := strings.ToLower(*req.Role)
		req.Role = &low
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Users.Update(ctx, id, repository.UserPatch{
		Name:  req.Name,
		Phone: req.Phone,
		Unit:  req.Unit,
		Role:  req.Role,
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, userPartFrom(u))
}

// Activate moves an account to the active status. Admin only.
func (h *UserHandler) Activate(c echo.Context) error {
	return h.setStatus(c, model.AccountActive)
}

// Deactivate moves an account to the inactive status. Admin only.
func (h *UserHandler) Deactivate(c echo.Context) error {
	return h.setStatus(c, model.AccountInactive)
}

func (h *UserHandler) setStatus(c echo.Context, status string) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetStatus(ctx, id, status); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": status})
}

// Delete removes a user. Users with usage history are kept and answered
// with 409 so the audit trail survives.
func (h *UserHandler) Delete(c echo.Context) error {
	id := paramID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "user has usage history"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadAvatar stores an avatar image for the current user. The file is
// renamed to a random UUID so uploads never collide or leak the original
// filename.
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	uid := getUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar file required"})
	}
	if fh.Size > maxAvatarBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "avatar exceeds 5MB"})
	}
	mime := fh.Header.Get("Content-Type")
	ext, ok := avatarExtByMIME[mime]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar must be png or jpeg"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read upload failed"})
	}
	defer src.Close()

	if err := os.MkdirAll(h.Cfg.AvatarDir, 0o755); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}
	name := uuid.NewString() + ext
	fpath := filepath.Join(h.Cfg.AvatarDir, name)
	dst, err := os.Create(fpath)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}
	defer dst.Close()
	if _, err := io.Copy(dst, io.LimitReader(src, maxAvatarBytes+1)); err != nil {
		_ = os.Remove(fpath)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	link := "/avatar/" + name
	if err := h.Users.SetAvatar(ctx, uid, &link); err != nil {
		_ = os.Remove(fpath)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save avatar failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"avatar_link": link})
}

// DeleteAvatar clears the current user's avatar and removes the stored
// file. Removing a file that is already gone is not an error.
func (h *UserHandler) DeleteAvatar(c echo.Context) error {
	uid := getUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.AvatarLink == nil {
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.Users.SetAvatar(ctx, uid, nil); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear avatar failed"})
	}
	name := strings.TrimPrefix(*u.AvatarLink, "/avatar/")
	if name != "" && !strings.Contains(name, "/") {
		_ = os.Remove(filepath.Join(h.Cfg.AvatarDir, name))
	}
	return c.NoContent(http.StatusNoContent)
}
