package handlers

import (
	"net/http"

	"github.com/openclaw/model-router/models"
)

// ModelLister exposes the model catalog the handlers need
type ModelLister interface {
	List() []*models.ModelDescriptor
}

// ModelsResponse wraps the model catalog listing
type ModelsResponse struct {
	Models []*models.ModelDescriptor `json:"models"`
}

// ModelsHandler lists the model registry
func ModelsHandler(reg ModelLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, ModelsResponse{Models: reg.List()})
	}
}
