package wsoauth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// SessionResolver looks up the session store bound to a request, usually
// from a cookie-backed session middleware.
type SessionResolver func(c *fiber.Ctx) (SessionStore, error)

// IdentityResolver looks up the authenticated identity bound to a request.
// Used by the logout route; may return nil when nobody is signed in.
type IdentityResolver func(c *fiber.Ctx) Identity

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/oauth")
	PathPrefix string

	// SuccessRedirect is where the browser goes after the callback
	// completes (default: "/")
	SuccessRedirect string

	// ErrorRedirect, when set, turns error responses into redirects
	// carrying an error query parameter.
	ErrorRedirect string

	// JSONIdentity makes the callback respond with the verified identity
	// as JSON instead of redirecting.
	JSONIdentity bool
}

// HTTPController exposes the login, callback and logout routes on a fiber
// application.
type HTTPController struct {
	auth     *Authenticator
	sessions SessionResolver
	identity IdentityResolver
	config   HTTPConfig
	logger   Logger
}

// HTTPControllerOption configures the HTTP controller.
type HTTPControllerOption func(*HTTPController)

// WithIdentityResolver wires the identity lookup used by the logout route.
func WithIdentityResolver(resolve IdentityResolver) HTTPControllerOption {
	return func(c *HTTPController) {
		if resolve != nil {
			c.identity = resolve
		}
	}
}

// WithHTTPLogger sets the controller logger.
func WithHTTPLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPController creates the HTTP bridge for an authenticator.
func NewHTTPController(auth *Authenticator, sessions SessionResolver, cfg HTTPConfig, opts ...HTTPControllerOption) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/oauth"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}

	controller := &HTTPController{
		auth:     auth,
		sessions: sessions,
		config:   cfg,
		identity: func(c *fiber.Ctx) Identity { return nil },
		logger:   defLogger{},
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// RegisterRoutes mounts the OAuth routes on the application.
func (c *HTTPController) RegisterRoutes(app *fiber.App) {
	group := app.Group(c.config.PathPrefix)
	group.Get("/providers", c.ListProviders)
	group.Get("/login", c.Login)
	group.Get("/callback", c.Callback)
	group.Post("/logout", c.Logout)
}

// ListProviders returns the provider names available for login.
func (c *HTTPController) ListProviders(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"providers": c.auth.ListProviders(),
	})
}

// Login starts the handshake and redirects the browser to the remote
// provider.
func (c *HTTPController) Login(ctx *fiber.Ctx) error {
	session, err := c.sessions(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	outcome, err := c.auth.Authenticate(ctx.UserContext(), &AuthRequest{Session: session})
	if err != nil {
		return c.handleError(ctx, err)
	}
	if outcome.Redirect == nil {
		return c.handleError(ctx, ErrLoginInitFailed)
	}

	return ctx.Redirect(outcome.Redirect.URL, http.StatusTemporaryRedirect)
}

// Callback finishes the handshake using the query parameters the remote
// provider sent back.
func (c *HTTPController) Callback(ctx *fiber.Ctx) error {
	session, err := c.sessions(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	callback := queryValues(ctx)
	outcome, err := c.auth.Authenticate(ctx.UserContext(), &AuthRequest{
		Session:  session,
		Callback: callback,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	if outcome.Redirect != nil {
		return ctx.Redirect(outcome.Redirect.URL, http.StatusTemporaryRedirect)
	}

	if c.config.JSONIdentity {
		return ctx.JSON(outcome.Identity)
	}
	return ctx.Redirect(c.config.SuccessRedirect, http.StatusTemporaryRedirect)
}

// Logout notifies the remote provider and records the event. The local
// session teardown stays with the host's session middleware.
func (c *HTTPController) Logout(ctx *fiber.Ctx) error {
	user := c.identity(ctx)
	if user == nil {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	c.auth.Deauthenticate(ctx.UserContext(), user)
	return ctx.JSON(fiber.Map{"logged_out": true})
}

func (c *HTTPController) handleError(ctx *fiber.Ctx, err error) error {
	status := statusFor(err)
	c.logger.Error("oauth http error: status=%d err=%v", status, err)

	if c.config.ErrorRedirect != "" {
		return ctx.Redirect(c.config.ErrorRedirect, http.StatusTemporaryRedirect)
	}

	message := "authentication failed"
	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.TextCode != "" {
		message = rich.TextCode
	}

	return ctx.Status(status).JSON(fiber.Map{"error": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidProvider):
		return http.StatusConflict
	case errors.Is(err, ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidUserID):
		return http.StatusBadRequest
	case errors.Is(err, ErrLoginInitFailed), errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func queryValues(ctx *fiber.Ctx) map[string][]string {
	values := map[string][]string{}
	ctx.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		values[k] = append(values[k], string(value))
	})
	return values
}
