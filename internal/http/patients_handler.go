package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"care-relay/internal/repository"
)

const demoPatientsLimit = 10

// PatientsHandler expone la lista pública de pacientes de demostración.
type PatientsHandler struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewPatientsHandler(logger *zap.Logger, users repository.UserRepository) *PatientsHandler {
	return &PatientsHandler{logger: logger, users: users}
}

// DemoPatients maneja GET /public/demo-patients.
func (h *PatientsHandler) DemoPatients(c *gin.Context) {
	patients, err := h.users.ListPatients(c.Request.Context(), demoPatientsLimit)
	if err != nil {
		h.logger.Error("list demo patients", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list patients"})
		return
	}

	type item struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	out := make([]item, 0, len(patients))
	for _, p := range patients {
		out = append(out, item{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	c.JSON(http.StatusOK, out)
}
