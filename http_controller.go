package cms

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-cms/repository"
)

// ControllerRoutes are the route paths relative to the API prefix
type ControllerRoutes struct {
	Register    string
	Login       string
	Refresh     string
	Me          string
	ChangeUser  string
	Categories  string
	Posts       string
	HealthCheck string
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker func(ctx context.Context) error

type Controller struct {
	Env        string
	Version    string
	Logger     Logger
	Routes     *ControllerRoutes
	Users      *UserService
	Categories *CategoryService
	Posts      *PostService
	Guard      *Guard
	Auther     *RouteAuthenticator
	Health     HealthChecker
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithEnvironment(env, version string) ControllerOption {
	return func(c *Controller) *Controller {
		c.Env = env
		c.Version = version
		return c
	}
}

func WithServices(users *UserService, categories *CategoryService, posts *PostService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Users = users
		c.Categories = categories
		c.Posts = posts
		return c
	}
}

func WithGuard(guard *Guard, auther *RouteAuthenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Guard = guard
		c.Auther = auther
		return c
	}
}

func WithHealthCheck(check HealthChecker) ControllerOption {
	return func(c *Controller) *Controller {
		c.Health = check
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Env:     "local",
		Version: "0.1.0",
		Logger:  defLogger(),
		Routes: &ControllerRoutes{
			Register:    "/auth/register",
			Login:       "/auth/login",
			Refresh:     "/auth/refresh",
			Me:          "/users/me",
			ChangeUser:  "/users/change",
			Categories:  "/categories",
			Posts:       "/posts",
			HealthCheck: "/utils/health-check",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Users == nil || c.Categories == nil || c.Posts == nil {
		panic("Missing services in cms controller...")
	}

	if c.Guard == nil || c.Auther == nil {
		panic("Missing Guard in cms controller...")
	}

	return c
}

// Register mounts every route on router
func (h *Controller) Register(router fiber.Router) {
	admin := h.Auther.ProtectedRoute(RoleAdmin)
	member := h.Auther.ProtectedRoute()

	router.Post(h.Routes.Register, h.RegisterUser).Name("auth.register")
	router.Post(h.Routes.Login, h.Login).Name("auth.login")
	router.Post(h.Routes.Refresh, h.RefreshToken).Name("auth.refresh")

	router.Get(h.Routes.Me, member, h.Me).Name("users.me.get")
	router.Put(h.Routes.Me, member, h.UpdateMe).Name("users.me.put")
	router.Post(h.Routes.ChangeUser, admin, h.ChangeUser).Name("users.change")

	categories := h.Routes.Categories
	router.Get(categories, h.ListCategories).Name("categories.list")
	router.Get(categories+"/:slug/posts", h.ListCategoryPosts).Name("categories.posts")
	router.Post(categories, admin, h.CreateCategory).Name("categories.create")
	router.Get(categories+"/:identifier", admin, h.GetCategory).Name("categories.get")
	router.Put(categories+"/:identifier", admin, h.UpdateCategory).Name("categories.update")
	router.Delete(categories+"/:identifier", admin, h.DeleteCategory).Name("categories.delete")

	posts := h.Routes.Posts
	router.Get(posts, h.ListPosts).Name("posts.list")
	router.Get(posts+"/:slug", h.GetPost).Name("posts.get")
	router.Post(posts, admin, h.CreatePost).Name("posts.create")
	router.Put(posts+"/:identifier", admin, h.UpdatePost).Name("posts.update")
	router.Delete(posts+"/:identifier", admin, h.DeletePost).Name("posts.delete")

	router.Get(h.Routes.HealthCheck, h.HealthCheck).Name("utils.health")
}

// auth

func (h *Controller) RegisterUser(c *fiber.Ctx) error {
	var payload UserCreate
	if err := parseBody(c, &payload, "invalid registration payload"); err != nil {
		return err
	}

	user, err := h.Users.Create(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(NewUserPublic(user))
}

// Login accepts form encoded (username, password) or JSON credentials
func (h *Controller) Login(c *fiber.Ctx) error {
	var payload LoginPayload
	if err := parseBody(c, &payload, "invalid login payload"); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	user, err := h.Users.Authenticate(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return err
	}

	pair, err := h.Guard.Login(user)
	if err != nil {
		return err
	}

	h.Logger.Info("user logged in", "user_id", user.ID)
	return c.JSON(pair)
}

func (h *Controller) RefreshToken(c *fiber.Ctx) error {
	var payload RefreshRequest
	if err := parseBody(c, &payload, "invalid refresh payload"); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	pair, err := h.Guard.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

// users

func (h *Controller) Me(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthorized
	}
	return c.JSON(NewUserPublic(user))
}

func (h *Controller) UpdateMe(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthorized
	}

	var payload UserUpdate
	if err := parseBody(c, &payload, "invalid profile payload"); err != nil {
		return err
	}

	updated, err := h.Users.UpdateProfile(c.UserContext(), user, payload)
	if err != nil {
		return err
	}

	return c.JSON(NewUserPublic(updated))
}

// ChangeUser lets admins change role and status of the user given by the
// email query parameter
func (h *Controller) ChangeUser(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return goerrors.NewValidation("email is required", goerrors.FieldError{
			Field:   "email",
			Message: "cannot be blank",
		})
	}

	var payload AdminUserUpdate
	if err := parseBody(c, &payload, "invalid user update payload"); err != nil {
		return err
	}

	user, err := h.Users.AdminUpdate(c.UserContext(), email, payload)
	if err != nil {
		return err
	}

	return c.JSON(NewUserPublic(user))
}

// categories

func (h *Controller) ListCategories(c *fiber.Ctx) error {
	req, err := pageRequest(c)
	if err != nil {
		return err
	}

	page, err := h.Categories.List(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.JSON(repository.MapPage(page, NewCategoryPublic))
}

func (h *Controller) ListCategoryPosts(c *fiber.Ctx) error {
	req, err := pageRequest(c)
	if err != nil {
		return err
	}

	category, err := h.Categories.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}

	page, err := h.Posts.ListByCategory(c.UserContext(), category, req)
	if err != nil {
		return err
	}

	return c.JSON(repository.MapPage(page, NewPostPublic))
}

func (h *Controller) CreateCategory(c *fiber.Ctx) error {
	var payload CategoryCreate
	if err := parseBody(c, &payload, "invalid category payload"); err != nil {
		return err
	}

	category, err := h.Categories.Create(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(NewCategoryPublic(category))
}

func (h *Controller) GetCategory(c *fiber.Ctx) error {
	category, err := h.Categories.Resolve(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return err
	}
	return c.JSON(NewCategoryPublic(category))
}

func (h *Controller) UpdateCategory(c *fiber.Ctx) error {
	var payload CategoryUpdate
	if err := parseBody(c, &payload, "invalid category payload"); err != nil {
		return err
	}

	category, err := h.Categories.Resolve(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return err
	}

	updated, err := h.Categories.Update(c.UserContext(), category, payload)
	if err != nil {
		return err
	}

	return c.JSON(NewCategoryPublic(updated))
}

func (h *Controller) DeleteCategory(c *fiber.Ctx) error {
	category, err := h.Categories.Resolve(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return err
	}

	deleted, err := h.Categories.Remove(c.UserContext(), category.ID)
	if err != nil {
		return err
	}

	return c.JSON(NewCategoryPublic(deleted))
}

// posts

func (h *Controller) ListPosts(c *fiber.Ctx) error {
	req, err := pageRequest(c)
	if err != nil {
		return err
	}

	page, err := h.Posts.List(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.JSON(repository.MapPage(page, NewPostPublic))
}

func (h *Controller) GetPost(c *fiber.Ctx) error {
	post, err := h.Posts.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(NewPostContent(post))
}

func (h *Controller) CreatePost(c *fiber.Ctx) error {
	var payload PostCreate
	if err := parseBody(c, &payload, "invalid post payload"); err != nil {
		return err
	}

	post, err := h.Posts.Create(c.UserContext(), payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(NewPostContent(post))
}

func (h *Controller) UpdatePost(c *fiber.Ctx) error {
	var payload PostUpdate
	if err := parseBody(c, &payload, "invalid post payload"); err != nil {
		return err
	}

	post, err := h.Posts.Resolve(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return err
	}

	updated, err := h.Posts.Update(c.UserContext(), post, payload)
	if err != nil {
		return err
	}

	return c.JSON(NewPostContent(updated))
}

func (h *Controller) DeletePost(c *fiber.Ctx) error {
	post, err := h.Posts.Resolve(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return err
	}

	deleted, err := h.Posts.Remove(c.UserContext(), post.ID)
	if err != nil {
		return err
	}

	return c.JSON(NewPostContent(deleted))
}

// utils

func (h *Controller) HealthCheck(c *fiber.Ctx) error {
	status := HealthStatus{
		Status:  "ok",
		Env:     h.Env,
		Version: h.Version,
	}

	if h.Health != nil {
		if err := h.Health(c.UserContext()); err != nil {
			h.Logger.Warn("health check failed", "error", err)
			status.Status = "unavailable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
	}

	return c.JSON(status)
}

// pageRequest reads page, size, order_by and order_dir from the query
// string. Missing values keep their defaults.
func pageRequest(c *fiber.Ctx) (repository.PageRequest, error) {
	req := repository.NewPageRequest()
	var fields []goerrors.FieldError

	for key, dst := range map[string]*int{"page": &req.Page, "size": &req.Size} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, goerrors.FieldError{Field: key, Message: "must be an integer"})
			continue
		}
		*dst = v
	}

	if orderBy := strings.TrimSpace(c.Query("order_by")); orderBy != "" {
		req.OrderBy = orderBy
	}

	if orderDir := strings.TrimSpace(c.Query("order_dir")); orderDir != "" {
		req.OrderDir = strings.ToLower(orderDir)
	}

	if len(fields) > 0 {
		return req, goerrors.NewValidation("invalid page request", fields...)
	}

	return req, nil
}
