package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/shopverse/category_service/apperrors"
	"github.com/shopverse/category_service/handlers"
	"github.com/shopverse/category_service/models"
)

const (
	treePath    = "/api/admin/categories/tree"
	reorderPath = "/api/admin/categories/reorder"
)

// Handler serves the read and reorder endpoints behind API Gateway
type Handler struct {
	svc handlers.CategoryService
	log *zap.SugaredLogger
}

// NewHandler creates a new Handler on top of svc
func NewHandler(svc handlers.CategoryService, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, log: log}
}

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case request.HTTPMethod == http.MethodGet && request.Path == treePath:
		return h.handleGetTree(ctx)
	case request.HTTPMethod == http.MethodPost && request.Path == reorderPath:
		return h.handleReorder(ctx, request)
	default:
		return h.errorResponse(request, apperrors.ErrNotFound), nil
	}
}

func (h *Handler) handleGetTree(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	nodes, err := h.svc.Tree(ctx)
	if err != nil {
		return h.errorResponse(events.APIGatewayProxyRequest{Path: treePath}, err), nil
	}
	return h.jsonResponse(http.StatusOK, nodes), nil
}

func (h *Handler) handleReorder(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.ReorderRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		invalid := apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidInput, "Request body must be valid JSON"), err)
		return h.errorResponse(request, invalid), nil
	}
	if err := h.svc.Reorder(ctx, req); err != nil {
		return h.errorResponse(request, err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}

func (h *Handler) errorResponse(request events.APIGatewayProxyRequest, err error) events.APIGatewayProxyResponse {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		h.log.Errorw("unexpected error", "error", err.Error(), "path", request.Path)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		h.log.Errorw("app error", "code", appErr.Code, "internal", appErr.Internal.Error(), "path", request.Path)
	}
	return h.jsonResponse(appErr.StatusCode, handlers.ErrorBody(appErr))
}

func (h *Handler) jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Errorw("failed to marshal response", "error", err.Error())
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"An internal error occurred"}}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
