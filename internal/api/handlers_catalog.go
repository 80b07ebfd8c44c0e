// handlers_catalog.go - Catalog handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/models"
)

// CatalogHandlerImpl implements the CatalogHandler interface
type CatalogHandlerImpl struct {
	catalog *catalog.Catalog
	gate    bool
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(cat *catalog.Catalog, gate bool) CatalogHandler {
	return &CatalogHandlerImpl{catalog: cat, gate: gate}
}

type catalogParameter struct {
	catalog.ParameterSpec
	UnitOptions []string `json:"unitOptions"`
}

type catalogLocation struct {
	Name       string             `json:"name"`
	Parameters []catalogParameter `json:"parameters"`
}

type catalogResponse struct {
	Variant       models.Variant    `json:"variant"`
	LocationLabel string            `json:"locationLabel"`
	Flow          string            `json:"flow"`
	GateOnRange   bool              `json:"gateOnRange"`
	Locations     []catalogLocation `json:"locations"`
}

// HandleGetCatalog returns locations in display order with their
// parameters, ranges and selectable units.
func (h *CatalogHandlerImpl) HandleGetCatalog(c echo.Context) error {
	variant := h.catalog.Variant()
	resp := catalogResponse{
		Variant:       variant,
		LocationLabel: variant.LocationLabel(),
		Flow:          "direct",
		GateOnRange:   h.gate,
	}
	if variant == models.VariantArea {
		resp.Flow = "wizard"
	}

	for _, loc := range h.catalog.Locations() {
		out := catalogLocation{Name: loc.Name, Parameters: make([]catalogParameter, 0, len(loc.Parameters))}
		for _, p := range loc.Parameters {
			units, err := h.catalog.UnitOptions(loc.Name, p.Name)
			if err != nil {
				return FromDomainError(err)
			}
			out.Parameters = append(out.Parameters, catalogParameter{ParameterSpec: p, UnitOptions: units})
		}
		resp.Locations = append(resp.Locations, out)
	}

	return c.JSON(http.StatusOK, resp)
}
