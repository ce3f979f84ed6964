// Package httpapi exposes the link service over Fiber and owns the mapping
// from the service error taxonomy to HTTP statuses.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mvolkov/linkcut/internal/auth"
	"github.com/mvolkov/linkcut/internal/clicks"
	"github.com/mvolkov/linkcut/internal/shortener"
	"github.com/mvolkov/linkcut/internal/store"
)

// ClickPublisher ships per-redirect analytics events. A nil publisher
// disables the pipeline without affecting redirects.
type ClickPublisher interface {
	Publish(ctx context.Context, ev clicks.Event) error
}

// UserLookup resolves the optional username on shorten requests.
type UserLookup interface {
	FindUserByName(ctx context.Context, username string) (*store.User, error)
}

type Handler struct {
	svc       *shortener.Service
	auth      auth.Authenticator
	accounts  *auth.Service
	users     UserLookup
	publisher ClickPublisher
	appDomain string
}

func New(svc *shortener.Service, authn auth.Authenticator, accounts *auth.Service, users UserLookup, publisher ClickPublisher, appDomain string) *Handler {
	return &Handler{
		svc:       svc,
		auth:      authn,
		accounts:  accounts,
		users:     users,
		publisher: publisher,
		appDomain: appDomain,
	}
}

func (h *Handler) shortURL(code string) string {
	return fmt.Sprintf("%s/%s", h.appDomain, code)
}

func (h *Handler) handleRegister(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username and password are required"})
	}

	err := h.accounts.Register(c.UserContext(), req.Username, req.Password)
	if errors.Is(err, store.ErrUsernameTaken) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username already taken"})
	}
	if err != nil {
		return internalError(c, "register", err)
	}
	return c.JSON(fiber.Map{"message": "User registered successfully"})
}

func (h *Handler) handleShorten(c *fiber.Ctx) error {
	var req struct {
		URL         string     `json:"url"`
		CustomAlias string     `json:"custom_alias"`
		ExpiresAt   *time.Time `json:"expires_at"`
		Username    string     `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}
	if !validTargetURL(req.URL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid http(s) url is required"})
	}

	ctx := c.UserContext()

	var ownerID *int64
	if req.Username != "" {
		user, err := h.users.FindUserByName(ctx, req.Username)
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		if err != nil {
			return internalError(c, "lookup user", err)
		}
		ownerID = &user.ID
	}

	res, err := h.svc.Shorten(ctx, req.URL, req.CustomAlias, req.ExpiresAt, ownerID)
	if errors.Is(err, store.ErrAliasTaken) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Alias already taken"})
	}
	if err != nil {
		return internalError(c, "shorten", err)
	}

	if res.Created != nil {
		return c.JSON(fiber.Map{"short_url": h.shortURL(res.Created.ShortCode)})
	}
	out := make([]fiber.Map, 0, len(res.Existing))
	for _, link := range res.Existing {
		out = append(out, fiber.Map{
			"original_url": link.OriginalURL,
			"short_url":    h.shortURL(link.ShortCode),
		})
	}
	return c.JSON(out)
}

func (h *Handler) handleRedirect(c *fiber.Ctx) error {
	shortCode := c.Params("short_code")
	ctx := c.UserContext()

	target, err := h.svc.Resolve(ctx, shortCode, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "URL not found"})
	}
	if errors.Is(err, shortener.ErrExpired) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "URL expired"})
	}
	if err != nil {
		return internalError(c, "resolve", err)
	}

	userAgent := c.Get("User-Agent")
	if userAgent == "" {
		userAgent = "Unknown"
	}
	go h.publishClick(shortCode, userAgent)

	return c.Redirect(target, fiber.StatusFound)
}

func (h *Handler) handleStats(c *fiber.Ctx) error {
	link, err := h.svc.Stats(c.UserContext(), c.Params("short_code"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "URL not found"})
	}
	if err != nil {
		return internalError(c, "stats", err)
	}
	return c.JSON(fiber.Map{
		"original_url":  link.OriginalURL,
		"created_at":    link.CreatedAt,
		"visit_count":   link.VisitCount,
		"last_accessed": link.LastAccessed,
		"expires_at":    link.ExpiresAt,
	})
}

func (h *Handler) handleSearch(c *fiber.Ctx) error {
	originalURL := c.Query("original_url")
	if originalURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "original_url query parameter is required"})
	}

	links, err := h.svc.Search(c.UserContext(), originalURL)
	if err != nil {
		return internalError(c, "search", err)
	}
	out := make([]fiber.Map, 0, len(links))
	for _, link := range links {
		out = append(out, fiber.Map{
			"short_code":    link.ShortCode,
			"created_at":    link.CreatedAt,
			"visit_count":   link.VisitCount,
			"last_accessed": link.LastAccessed,
			"expires_at":    link.ExpiresAt,
		})
	}
	return c.JSON(out)
}

func (h *Handler) handleUpdate(c *fiber.Ctx) error {
	var req struct {
		NewURL string `json:"new_url"`
	}
	if err := c.BodyParser(&req); err != nil || !validTargetURL(req.NewURL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid http(s) new_url is required"})
	}

	identity := requesterFrom(c)
	err := h.svc.Update(c.UserContext(), c.Params("short_code"), req.NewURL, identity.ID)
	if err != nil {
		return mutationError(c, err, "update")
	}
	return c.JSON(fiber.Map{"message": "URL has been updated successfully"})
}

func (h *Handler) handleDelete(c *fiber.Ctx) error {
	shortCode := c.Params("short_code")
	identity := requesterFrom(c)

	err := h.svc.Delete(c.UserContext(), shortCode, identity.ID)
	if err != nil {
		return mutationError(c, err, "delete")
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("Code %s has been deleted successfully", shortCode)})
}

func mutationError(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "URL not found"})
	case errors.Is(err, shortener.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't have permission to modify this link"})
	default:
		return internalError(c, op, err)
	}
}

func internalError(c *fiber.Ctx, op string, err error) error {
	slog.Error("request failed", "op", op, "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func (h *Handler) publishClick(shortCode, userAgent string) {
	if h.publisher == nil {
		return
	}
	ev := clicks.Event{
		ShortCode: shortCode,
		Timestamp: time.Now().UTC(),
		UserAgent: userAgent,
	}
	if err := h.publisher.Publish(context.Background(), ev); err != nil {
		slog.Warn("click event not published", "short_code", shortCode, "err", err)
	}
}

func validTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
