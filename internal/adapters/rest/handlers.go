package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
	usecases_port "listing-aggregator-service/internal/core/port/usecases"
)

// PresetSource отдает именованные критерии поиска
type PresetSource interface {
	Preset(name string) (domain.SearchCriteria, bool)
	Names() []string
}

// SweepHandlers - внутренние триггеры планировщика
type SweepHandlers struct {
	entryPoints usecases_port.SweepEntryPointsPort
	presets     PresetSource
}

func NewSweepHandlers(entryPoints usecases_port.SweepEntryPointsPort, presets PresetSource) *SweepHandlers {
	return &SweepHandlers{entryPoints: entryPoints, presets: presets}
}

func (h *SweepHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListPresets - GET /api/v1/presets
func (h *SweepHandlers) HandleListPresets(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string][]string{"presets": h.presets.Names()})
}

// HandleRunIngestion - POST /api/v1/sweeps/ingestion
func (h *SweepHandlers) HandleRunIngestion(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleRunIngestion"})

	var reqDTO IngestionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		if errors.Is(err, io.EOF) {
			WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	criteria, status, err := h.resolveCriteria(reqDTO)
	if err != nil {
		logger.Warn("Rejected ingestion request", port.Fields{"error": err.Error(), "preset": reqDTO.Preset})
		WriteJSONError(w, status, err.Error())
		return
	}

	runID := h.entryPoints.RunIngestionSweep(r.Context(), criteria)
	logger.Info("Ingestion sweep started", port.Fields{"run_id": runID, "preset": reqDTO.Preset})
	RespondWithJSON(w, http.StatusAccepted, SweepStartedDTO{RunID: runID})
}

// HandleRunLiveness - POST /api/v1/sweeps/liveness
func (h *SweepHandlers) HandleRunLiveness(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "HandleRunLiveness"})

	runID := h.entryPoints.RunLivenessSweep(r.Context())
	logger.Info("Liveness sweep started", port.Fields{"run_id": runID})
	RespondWithJSON(w, http.StatusAccepted, SweepStartedDTO{RunID: runID})
}

func (h *SweepHandlers) resolveCriteria(reqDTO IngestionRequestDTO) (domain.SearchCriteria, int, error) {
	var criteria domain.SearchCriteria
	switch {
	case reqDTO.Preset != "" && reqDTO.Criteria != nil:
		return criteria, http.StatusBadRequest, errors.New("fields 'preset' and 'criteria' are mutually exclusive")
	case reqDTO.Preset != "":
		preset, ok := h.presets.Preset(reqDTO.Preset)
		if !ok {
			return criteria, http.StatusNotFound, fmt.Errorf("search preset %q not found", reqDTO.Preset)
		}
		criteria = preset
	case reqDTO.Criteria != nil:
		criteria = toCriteria(*reqDTO.Criteria)
	default:
		return criteria, http.StatusBadRequest, errors.New("field 'preset' or 'criteria' is required")
	}

	criteria = criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return domain.SearchCriteria{}, http.StatusBadRequest, err
	}
	return criteria, http.StatusOK, nil
}

func toCriteria(dto CriteriaDTO) domain.SearchCriteria {
	criteria := domain.SearchCriteria{
		MinPrice:       dto.MinPrice,
		MaxPrice:       dto.MaxPrice,
		RentOrSale:     domain.RentOrSale(dto.RentOrSale),
		Municipalities: dto.Municipalities,
		Structures:     dto.Structures,
	}
	for _, f := range dto.Furnished {
		criteria.Furnished = append(criteria.Furnished, domain.ParseFurnished(f))
	}
	return criteria
}
