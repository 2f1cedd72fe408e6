package lambda

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopverse/category_service/models"
	"github.com/shopverse/category_service/repository"
	"github.com/shopverse/category_service/service"
)

func setup(t *testing.T) (*Handler, *service.CategoryService) {
	t.Helper()
	svc := service.NewCategoryService(repository.NewMockRepository(), nil, nil)
	return NewHandler(svc, nil), svc
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return env.Error.Code
}

func TestHandleGetTree(t *testing.T) {
	h, svc := setup(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, models.CategoryRequest{Name: "Garden"})
	require.NoError(t, err)

	resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: treePath})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	var nodes []*models.CategoryNode
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "Garden", nodes[0].Name)
}

func TestHandleReorder(t *testing.T) {
	h, svc := setup(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, models.CategoryRequest{Name: "First"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, models.CategoryRequest{Name: "Second"})
	require.NoError(t, err)

	body, err := json.Marshal(models.ReorderRequest{OrderedCategoryIDs: []string{second.ID, first.ID}})
	require.NoError(t, err)
	resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: reorderPath, Body: string(body)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	nodes, err := svc.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Second", nodes[0].Name)

	resp, err = h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: reorderPath, Body: `{"orderedCategoryIds":["` + first.ID + `"]}`})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REORDER", errorCode(t, resp.Body))

	resp, err = h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: reorderPath, Body: "not json"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, resp.Body))
}

func TestHandleUnknownRoute(t *testing.T) {
	h, _ := setup(t)

	for _, req := range []events.APIGatewayProxyRequest{
		{HTTPMethod: http.MethodDelete, Path: treePath},
		{HTTPMethod: http.MethodGet, Path: "/api/tree"},
	} {
		resp, err := h.Handle(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", errorCode(t, resp.Body))
	}
}
