package controller

import (
	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	documentService service.IDocumentService
	corpusService   service.ICorpusService
	backend         string
	collection      string
}

func NewHealthController(documentService service.IDocumentService, corpusService service.ICorpusService, backend, collection string) IHealthController {
	return &healthController{
		documentService: documentService,
		corpusService:   corpusService,
		backend:         backend,
		collection:      collection,
	}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

// Health reports "degraded" rather than failing when the index cannot be counted.
func (c *healthController) Health(ctx *fiber.Ctx) error {
	res := dto.HealthResponse{
		Status:       "ok",
		Sessions:     c.documentService.SessionCount(),
		IndexBackend: c.backend,
		Collection:   c.collection,
	}

	count, err := c.corpusService.IndexedChunks(ctx.UserContext())
	if err != nil {
		res.Status = "degraded"
	} else {
		res.IndexedChunks = count
	}

	return ctx.JSON(serverutils.SuccessResponse("Healthy", res))
}
