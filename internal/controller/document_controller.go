package controller

import (
	"context"
	"os"
	"path/filepath"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/rag/response"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Analyze(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{
		documentService: documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Post("upload", c.Upload)
	h.Post("analyze", c.Analyze)
	h.Post("chat", c.Chat)
	h.Delete("session/:id", c.DeleteSession)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return apperror.New(apperror.KindInvalidRequest, "multipart field \"file\" is required")
	}

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(file.Filename))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := ctx.SaveFile(file, tmpPath); err != nil {
		return err
	}

	res, err := c.documentService.Upload(ctx.UserContext(), filepath.Base(file.Filename), tmpPath)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Document processed", res))
}

func (c *documentController) Analyze(ctx *fiber.Ctx) error {
	var req dto.AnalyzeDocumentRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	streamCtx, cancel := detachedContext(ctx)
	events, err := c.documentService.Analyze(streamCtx, &req)
	if err != nil {
		cancel()
		return err
	}

	return serverutils.StreamEvents(ctx, cancel, events, analyzeFrames)
}

func (c *documentController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatDocumentRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	streamCtx, cancel := detachedContext(ctx)
	events, err := c.documentService.Chat(streamCtx, &req)
	if err != nil {
		cancel()
		return err
	}

	return serverutils.StreamEvents(ctx, cancel, events, chatFrames)
}

func (c *documentController) DeleteSession(ctx *fiber.Ctx) error {
	if err := c.documentService.DeleteSession(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session deleted", nil))
}

// detachedContext outlives the handler: the body stream writer runs after the
// handler returns, and is the one that cancels.
func detachedContext(ctx *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(ctx.UserContext()))
}

func parseBody(ctx *fiber.Ctx, req interface{}) error {
	if err := ctx.BodyParser(req); err != nil {
		return apperror.Wrap(apperror.KindInvalidRequest, err, "malformed request body")
	}
	return serverutils.ValidateRequest(req)
}

func chatFrames(ev response.Event) []serverutils.SSEFrame {
	switch ev.Type {
	case response.EventToken:
		return []serverutils.SSEFrame{serverutils.JSONFrame("", dto.TokenFrame{Token: ev.Token})}
	case response.EventEnd:
		return []serverutils.SSEFrame{{Data: "[DONE]"}}
	case response.EventError:
		return []serverutils.SSEFrame{serverutils.ErrorFrame(ev.Err)}
	default:
		return nil
	}
}

// analyzeFrames has no end marker; the stream closes after the last field.
func analyzeFrames(ev response.Event) []serverutils.SSEFrame {
	switch ev.Type {
	case response.EventField:
		return []serverutils.SSEFrame{serverutils.JSONFrame("", dto.FieldFrame{Key: ev.Key, Value: ev.Value})}
	case response.EventError:
		return []serverutils.SSEFrame{serverutils.ErrorFrame(ev.Err)}
	default:
		return nil
	}
}
