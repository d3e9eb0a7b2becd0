// Package api contains the HTTP handlers of the gateway.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/logging"
	"solflow/backend/internal/services"
	"solflow/backend/internal/solana"
)

// Dialer opens an RPC client for the endpoint named in a request body.
type Dialer func(endpoint string) (*solana.Client, error)

// Server holds the dependencies of the HTTP API.
type Server struct {
	Workflows *services.WorkflowService
	Payments  *services.PaymentService
	Bags      *services.BagsService
	AI        *services.AIService
	Dial      Dialer
	Logger    *logging.Logger

	started time.Time
}

// NewServer creates a new Server.
func NewServer(workflows *services.WorkflowService, payments *services.PaymentService, bags *services.BagsService,
	ai *services.AIService, dial Dialer, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		Workflows: workflows,
		Payments:  payments,
		Bags:      bags,
		AI:        ai,
		Dial:      dial,
		Logger:    logger,
		started:   time.Now(),
	}
}

// Register mounts every route under /api.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/api")

	g.GET("/health", s.HandleHealth)
	g.GET("/health/ready", s.HandleReady)

	RegisterHandlersWithBaseURL(e, s, "/api")

	s.registerRPC(g.Group("/rpc"))
	s.registerPrograms(g.Group("/programs"))
	s.registerTokens(g.Group("/tokens"))
	s.registerTransactions(g.Group("/transactions"))
	s.registerNFTs(g.Group("/nft"))
	s.registerPayments(g.Group("/payments"))
	s.registerBags(g.Group("/bags"))
	s.registerAI(g.Group("/ai"))
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Seconds(),
	})
}

// HandleReady reports whether the workflow store is reachable.
func (s *Server) HandleReady(c echo.Context) error {
	if err := s.Workflows.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthStatus{
			Status:    "not ready",
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthStatus{Status: "ready", Timestamp: time.Now().UTC()})
}

// ErrorBody is the uniform error response.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload describes one failed request.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// NewErrorHandler returns an echo error handler writing ErrorBody responses.
// Stacks are only included when production is false.
func NewErrorHandler(production bool, logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, payload := classify(err)
		if production {
			payload.Stack = ""
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		} else {
			logger.Debug("request rejected", "method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, ErrorBody{Error: payload})
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}

func classify(err error) (int, ErrorPayload) {
	if appErr, ok := apperror.As(err); ok {
		payload := ErrorPayload{Message: appErr.Message, Code: appErr.Code, Details: appErr.Details, Stack: appErr.Stack()}
		if appErr.Code == apperror.CodeRemote {
			payload.Message = appErr.Error()
		}
		return appErr.Status, payload
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, ErrorPayload{Message: msg, Code: httpErrorCode(he.Code)}
	}

	return http.StatusInternalServerError, ErrorPayload{
		Message: "Internal server error",
		Code:    apperror.CodeInternal,
		Stack:   fmt.Sprintf("%+v", err),
	}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusNotFound:
		return apperror.CodeNotFound
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	}
	if status >= http.StatusInternalServerError {
		return apperror.CodeInternal
	}
	return "HTTP_ERROR"
}

// bind decodes the JSON body into v and runs its validate tags. Failures
// become validation errors carrying message.
func bind(c echo.Context, v any, message string) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return bindFailure(err)
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return services.ValidationError(c.Validate(v), message)
}

// bindFailure maps a body decoding error to a validation error. Non-400
// binder errors, such as 413 or 415, pass through unchanged.
func bindFailure(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code != http.StatusBadRequest {
		return err
	}
	return apperror.Validation("Invalid request body", apperror.FieldError{Path: "body", Message: bindMessage(err)})
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			return he.Internal.Error()
		}
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}

// dial opens an RPC client, reporting a bad endpoint as a validation error.
func (s *Server) dial(endpoint string) (*solana.Client, error) {
	client, err := s.Dial(endpoint)
	if err != nil {
		return nil, apperror.Validation("Invalid RPC endpoint", apperror.FieldError{Path: "endpoint", Message: err.Error()})
	}
	return client, nil
}

// requireKey checks a base58 public key field.
func requireKey(path, value string) error {
	if _, err := solana.ParsePublicKey(value); err != nil {
		return apperror.Validation("Invalid public key", apperror.FieldError{Path: path, Message: err.Error()})
	}
	return nil
}

// Validator adapts a go-playground validator to echo.
type Validator struct {
	validate interface{ Struct(any) error }
}

// NewValidator wraps v for use as echo.Echo.Validator.
func NewValidator() *Validator {
	return &Validator{validate: services.NewValidator()}
}

// Validate runs the struct tags of i.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}
