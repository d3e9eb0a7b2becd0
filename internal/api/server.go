package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// OwnerHeader carries the client-asserted wallet address. It is not authenticated.
const OwnerHeader = "x-wallet-address"

// ListWorkflowsParams defines parameters for ListWorkflows.
type ListWorkflowsParams struct {
	XWalletAddress *string
}

// CreateWorkflowParams defines parameters for CreateWorkflow.
type CreateWorkflowParams struct {
	XWalletAddress *string
}

// UpdateWorkflowParams defines parameters for UpdateWorkflow.
type UpdateWorkflowParams struct {
	XWalletAddress *string
}

// DeleteWorkflowParams defines parameters for DeleteWorkflow.
type DeleteWorkflowParams struct {
	XWalletAddress *string
}

// ServerInterface represents all workflow server handlers.
type ServerInterface interface {
	// (GET /workflows)
	ListWorkflows(ctx echo.Context, params ListWorkflowsParams) error
	// (POST /workflows)
	CreateWorkflow(ctx echo.Context, params CreateWorkflowParams) error
	// (POST /workflows/validate)
	ValidateWorkflow(ctx echo.Context) error
	// (GET /workflows/{id})
	GetWorkflow(ctx echo.Context, id string) error
	// (PUT /workflows/{id})
	UpdateWorkflow(ctx echo.Context, id string, params UpdateWorkflowParams) error
	// (DELETE /workflows/{id})
	DeleteWorkflow(ctx echo.Context, id string, params DeleteWorkflowParams) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

// ListWorkflows converts echo context to params.
func (w *ServerInterfaceWrapper) ListWorkflows(ctx echo.Context) error {
	var params ListWorkflowsParams
	owner, err := bindOwner(ctx)
	if err != nil {
		return err
	}
	params.XWalletAddress = owner
	return w.Handler.ListWorkflows(ctx, params)
}

// CreateWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) CreateWorkflow(ctx echo.Context) error {
	var params CreateWorkflowParams
	owner, err := bindOwner(ctx)
	if err != nil {
		return err
	}
	params.XWalletAddress = owner
	return w.Handler.CreateWorkflow(ctx, params)
}

// ValidateWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) ValidateWorkflow(ctx echo.Context) error {
	return w.Handler.ValidateWorkflow(ctx)
}

// GetWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) GetWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetWorkflow(ctx, id)
}

// UpdateWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) UpdateWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	var params UpdateWorkflowParams
	if params.XWalletAddress, err = bindOwner(ctx); err != nil {
		return err
	}
	return w.Handler.UpdateWorkflow(ctx, id, params)
}

// DeleteWorkflow converts echo context to params.
func (w *ServerInterfaceWrapper) DeleteWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	var params DeleteWorkflowParams
	if params.XWalletAddress, err = bindOwner(ctx); err != nil {
		return err
	}
	return w.Handler.DeleteWorkflow(ctx, id, params)
}

func bindID(ctx echo.Context) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", ctx.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter id: %s", err))
	}
	return id, nil
}

// bindOwner reads the optional owner header; nil means the header was absent.
func bindOwner(ctx echo.Context) (*string, error) {
	valueList, found := ctx.Request().Header[http.CanonicalHeaderKey(OwnerHeader)]
	if !found {
		return nil, nil
	}
	if n := len(valueList); n != 1 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Expected one value for %s, got %d", OwnerHeader, n))
	}
	var owner string
	err := runtime.BindStyledParameterWithOptions("simple", OwnerHeader, valueList[0], &owner,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationHeader, Explode: false, Required: false})
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", OwnerHeader, err))
	}
	return &owner, nil
}

// EchoRouter is the subset of echo.Echo and echo.Group used for registration.
type EchoRouter interface {
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlersWithBaseURL registers handlers, and prepends BaseURL to the
// paths, so that the paths can be served under a prefix.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.GET(baseURL+"/workflows", wrapper.ListWorkflows)
	router.POST(baseURL+"/workflows", wrapper.CreateWorkflow)
	router.POST(baseURL+"/workflows/validate", wrapper.ValidateWorkflow)
	router.GET(baseURL+"/workflows/:id", wrapper.GetWorkflow)
	router.PUT(baseURL+"/workflows/:id", wrapper.UpdateWorkflow)
	router.DELETE(baseURL+"/workflows/:id", wrapper.DeleteWorkflow)
}
