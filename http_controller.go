package auth

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// AuthAPI is the surface the controller drives. *Accounts satisfies it.
type AuthAPI interface {
	Register(ctx context.Context, msg RegisterUserMessage) (*User, error)
	VerifyEmail(ctx context.Context, msg VerifyEmailMessage) (*VerifyResult, error)
	Login(ctx context.Context, msg LoginMessage) (*LoginResult, error)
	Profile(ctx context.Context, identifier string) (*User, error)
	VerificationStatus(ctx context.Context, email string) (*VerificationStatus, error)
}

type AuthControllerRoutes struct {
	Register           string
	VerifyEmail        string
	VerificationStatus string
	Login              string
	Logout             string
	Profile            string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Accounts AuthAPI
	Sessions *SessionManager
	Routes   *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:           "/register",
			VerifyEmail:        "/verify/email",
			VerificationStatus: "/verify/email/:email",
			Login:              "/login",
			Logout:             "/logout",
			Profile:            "/profile/:id",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil {
		panic("Missing Accounts in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in auth controller...")
	}

	return c
}

func WithControllerAccounts(accounts AuthAPI) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Accounts = accounts
		return c
	}
}

func WithControllerSessions(sessions *SessionManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sessions = sessions
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegisterAuthRoutes mounts the authentication endpoints: the JSON API
// under /api/v1/user plus the top level logout redirect.
func RegisterAuthRoutes(app *fiber.App, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	api := app.Group("/api/v1/user")
	api.Post(controller.Routes.Register, controller.RegistrationCreate)
	api.Post(controller.Routes.VerifyEmail, controller.VerifyEmailPost)
	api.Get(controller.Routes.VerificationStatus, controller.VerificationStatusGet)
	api.Post(controller.Routes.Login, controller.LoginPost)
	api.Get(controller.Routes.Profile, controller.Sessions.RequireSession(), controller.ProfileGet)

	app.Get(controller.Routes.Logout, controller.LogOut)

	return controller
}

// RegistrationCreatePayload is the registration body.
type RegistrationCreatePayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload: %s", err)
		return badRequestBody(c)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %s", err)
		return validationFailed(c, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	msg := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
	}

	user, err := a.Accounts.Register(c.Context(), msg)
	if err != nil {
		a.Logger.Error("register user: %s", err)
		return a.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "An OTP has been sent to your email address. Please verify your email to continue.",
		"user": fiber.Map{
			"id":    user.ID.String(),
			"email": user.Email,
		},
	})
}

// VerifyEmailPayload is the OTP submission body. Identifier takes the user
// id or the email address.
type VerifyEmailPayload struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

// Validate will validate the payload
func (r VerifyEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.By(validateIdentifier)),
		validation.Field(&r.OTP, validation.Required, validation.Length(4, 4), is.Digit),
	)
}

func validateIdentifier(value any) error {
	s, _ := value.(string)
	if _, err := uuid.Parse(s); err == nil {
		return nil
	}
	return is.Email.Validate(s)
}

func (a *AuthController) VerifyEmailPost(c *fiber.Ctx) error {
	payload := new(VerifyEmailPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("verify email parse payload: %s", err)
		return badRequestBody(c)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("verify email validate payload: %s", err)
		return validationFailed(c, err)
	}

	result, err := a.Accounts.VerifyEmail(c.Context(), VerifyEmailMessage{
		Identifier: payload.Identifier,
		OTP:        payload.OTP,
	})
	if err != nil {
		a.Logger.Error("verify email: %s", err)
		return a.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Email verified successfully.",
		"redirect": result.Redirect,
	})
}

func (a *AuthController) VerificationStatusGet(c *fiber.Ctx) error {
	email := c.Params("email")
	if err := is.Email.Validate(email); err != nil {
		return validationFailed(c, err)
	}

	status, err := a.Accounts.VerificationStatus(c.Context(), email)
	if err != nil {
		a.Logger.Error("verification status: %s", err)
		return a.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"email":             status.Email,
		"challenge_pending": status.ChallengePending,
	})
}

// LoginPayload is the login body.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %s", err)
		return badRequestBody(c)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("login validate payload: %s", err)
		return validationFailed(c, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload.Email))
		fmt.Println("=========================")
	}

	result, err := a.Accounts.Login(c.Context(), LoginMessage{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Error("login: %s", err)
		// Every login failure answers 401 with its own message so the
		// client can distinguish pending verification from bad
		// credentials.
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.Category != goerrors.CategoryInternal && rich.Category != goerrors.CategoryExternal {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": rich.Message,
			})
		}
		return internalError(c)
	}

	a.Sessions.SetSessionCookie(c, result.Token)

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Logged in successfully.",
		"redirect": result.Redirect,
	})
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	a.Sessions.ClearSessionCookie(c)
	return c.Redirect("/", fiber.StatusFound)
}

func (a *AuthController) ProfileGet(c *fiber.Ctx) error {
	user, err := a.Accounts.Profile(c.Context(), c.Params("id"))
	if err != nil {
		a.Logger.Error("profile: %s", err)
		return a.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// respondError translates a typed failure into the wire shape the
// clients expect.
func (a *AuthController) respondError(c *fiber.Ctx, err error) error {
	status := statusFromError(err)
	if status == fiber.StatusInternalServerError {
		return internalError(c)
	}

	message := "Something went wrong. Please try again later."
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		message = rich.Message
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

func badRequestBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   true,
		"message": "Failed to parse request body.",
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	var detail any = err.Error()
	if verr, ok := err.(validation.Errors); ok {
		detail = verr
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":      true,
		"message":    "Validation failed.",
		"validation": detail,
	})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   true,
		"message": "Something went wrong. Please try again later.",
	})
}
