package handler_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/folio-go-api/internal/config"
	"github.com/noah-isme/folio-go-api/internal/dto"
	"github.com/noah-isme/folio-go-api/internal/handler"
	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/repository"
	"github.com/noah-isme/folio-go-api/internal/router"
	"github.com/noah-isme/folio-go-api/internal/service"
)

type lifecycleServiceStub struct {
	submitErr   error
	approveErr  error
	revisionErr error
	reopenErr   error
	response    dto.DocumentResponse
}

func (s *lifecycleServiceStub) Submit(_ context.Context, _ uint, _ service.Actor) (dto.DocumentResponse, error) {
	return s.response, s.submitErr
}

func (s *lifecycleServiceStub) Approve(_ context.Context, _ uint, _ service.Actor, _ dto.ApproveRequest) (dto.DocumentResponse, error) {
	return s.response, s.approveErr
}

func (s *lifecycleServiceStub) RequestRevision(_ context.Context, _ uint, _ service.Actor, _ dto.RevisionRequest) (dto.DocumentResponse, error) {
	return s.response, s.revisionErr
}

func (s *lifecycleServiceStub) Reopen(_ context.Context, _ uint, _ service.Actor) (dto.DocumentResponse, error) {
	return s.response, s.reopenErr
}

func setupLifecycleApp(t *testing.T, stub *lifecycleServiceStub) *fiber.App {
	t.Helper()

	logger := zerolog.New(io.Discard)
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		DocumentHandler:  handler.NewDocumentHandler(nil, logger),
		LifecycleHandler: handler.NewLifecycleHandler(stub, logger),
		JWTMiddleware:    testAuth(),
	})

	return app
}

func TestLifecycleHandlerSubmit(t *testing.T) {
	stub := &lifecycleServiceStub{response: dto.DocumentResponse{ID: 1, Status: models.StatusSubmitted}}
	app := setupLifecycleApp(t, stub)

	resp, envelope := doJSON(t, app, http.MethodPost, "/api/v1/documents/1/submit", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	require.Equal(t, "document submitted", envelope.Message)
}

func TestLifecycleHandlerIncompleteSubmission(t *testing.T) {
	stub := &lifecycleServiceStub{
		submitErr: &service.IncompleteDocumentError{Missing: map[string]string{
			"reflection":  "Reflection",
			"attachments": "At least one file or external link",
		}},
	}
	app := setupLifecycleApp(t, stub)

	resp, envelope := doJSON(t, app, http.MethodPost, "/api/v1/documents/1/submit", nil, nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Fields, "reflection")
	require.Contains(t, envelope.Fields, "attachments")
}

func TestLifecycleHandlerStatusConflict(t *testing.T) {
	stub := &lifecycleServiceStub{submitErr: repository.ErrStatusConflict}
	app := setupLifecycleApp(t, stub)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/documents/1/submit", nil, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestLifecycleHandlerApproveRequiresTeacherRole(t *testing.T) {
	stub := &lifecycleServiceStub{response: dto.DocumentResponse{ID: 1, Status: models.StatusApproved}}
	app := setupLifecycleApp(t, stub)

	payload := fiber.Map{"skills": []string{"planning"}, "justification": "well executed"}

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/documents/1/approve", payload, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	teacher := map[string]string{"X-User-Role": models.RoleTeacher}
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/documents/1/approve", payload, teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLifecycleHandlerRevisionFeedbackRequired(t *testing.T) {
	stub := &lifecycleServiceStub{revisionErr: service.ErrFeedbackRequired}
	app := setupLifecycleApp(t, stub)

	teacher := map[string]string{"X-User-Role": models.RoleTeacher}
	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/documents/1/request-revision", fiber.Map{"feedback": " "}, teacher)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLifecycleHandlerReopenNotFound(t *testing.T) {
	stub := &lifecycleServiceStub{reopenErr: service.ErrDocumentNotFound}
	app := setupLifecycleApp(t, stub)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/documents/1/reopen", nil, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLifecycleHandlerInvalidID(t *testing.T) {
	app := setupLifecycleApp(t, &lifecycleServiceStub{})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/documents/abc/submit", nil, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
