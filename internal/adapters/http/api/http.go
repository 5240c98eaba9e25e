// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/raceseries/internal/adapters/graph"
	service "github.com/okian/raceseries/internal/app"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/internal/domain/series"
	"github.com/okian/raceseries/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AddPerson(ctx context.Context, name string, sex model.Sex) (model.Person, bool, error)
	Persons(ctx context.Context) ([]model.Person, error)
	Person(ctx context.Context, id string) (model.Person, error)
	PersonResults(ctx context.Context, id string) ([]model.RaceResult, error)
	RemovePerson(ctx context.Context, id string) (bool, error)
	RenamePerson(ctx context.Context, id, name string) (bool, error)
	SetPersonSex(ctx context.Context, id string, sex model.Sex) error
	SetPersonCategory(ctx context.Context, id, categoryID string) error

	AddCategory(ctx context.Context, name string, seq int) (model.Category, bool, error)
	Categories(ctx context.Context) ([]model.Category, error)
	RemoveCategory(ctx context.Context, id string) (bool, error)

	AddOrganization(ctx context.Context, in series.OrgInput) (model.Organization, bool, error)
	Organizations(ctx context.Context) ([]model.Organization, error)
	SetOrganizationKind(ctx context.Context, id string, kind model.OrgKind) error
	RemoveOrganization(ctx context.Context, id string) (bool, error)
	EditOrganization(ctx context.Context, id string, in series.OrgInput) (bool, error)
	Locations(ctx context.Context) ([]model.Location, error)

	AddRace(ctx context.Context, orgID, name string, main bool) (model.Race, bool, error)
	Races(ctx context.Context, orgID string) ([]model.Race, error)
	SetRaceKind(ctx context.Context, id string, kind model.RaceKind) error
	RemoveRace(ctx context.Context, id string) (bool, error)
	RenameRace(ctx context.Context, id, name string) (bool, error)

	AddArrival(ctx context.Context, raceID, personID string, after chain.After) (model.Participant, error)
	Arrivals(ctx context.Context, raceID string) ([]model.Participant, error)
	NextCandidates(ctx context.Context, raceID string) ([]model.Person, error)
	EditParticipant(ctx context.Context, id string, props map[string]string) error
	RemoveParticipant(ctx context.Context, id string) error

	Standings(ctx context.Context, sex model.Sex, limit int) ([]Entry, error)
	Recalculate(ctx context.Context) (int, error)
	Sweep(ctx context.Context) (int, error)
}

// Entry mirrors the read shape returned by standings queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	series        *seriesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		series:        &seriesHandler{deps: deps},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	h := s.series
	routes := []struct {
		pattern  string
		endpoint string
		handler  http.HandlerFunc
	}{
		{"GET /healthz", "healthz", s.healthHandler.HandleHealth},
		{"GET /metrics", "metrics", s.healthHandler.HandleMetrics},
		{"GET /stats", "stats", s.statsHandler.HandleStats},

		{"GET /persons", "persons", h.listPersons},
		{"POST /persons", "persons", h.addPerson},
		{"GET /persons/{id}", "person", h.getPerson},
		{"PUT /persons/{id}", "person", h.renamePerson},
		{"PUT /persons/{id}/sex", "person_sex", h.setPersonSex},
		{"PUT /persons/{id}/category", "person_category", h.setPersonCategory},
		{"DELETE /persons/{id}", "person", h.removePerson},
		{"GET /persons/{id}/results", "person_results", h.personResults},

		{"GET /categories", "categories", h.listCategories},
		{"POST /categories", "categories", h.addCategory},
		{"DELETE /categories/{id}", "category", h.removeCategory},

		{"GET /organizations", "organizations", h.listOrganizations},
		{"POST /organizations", "organizations", h.addOrganization},
		{"PUT /organizations/{id}/kind", "organization_kind", h.setOrganizationKind},
		{"PUT /organizations/{id}", "organization", h.editOrganization},
		{"DELETE /organizations/{id}", "organization", h.removeOrganization},
		{"GET /organizations/{id}/races", "races", h.listRaces},
		{"POST /organizations/{id}/races", "races", h.addRace},

		{"GET /locations", "locations", h.listLocations},

		{"PUT /races/{id}", "race", h.renameRace},
		{"PUT /races/{id}/kind", "race_kind", h.setRaceKind},
		{"DELETE /races/{id}", "race", h.removeRace},
		{"GET /races/{id}/arrivals", "arrivals", h.listArrivals},
		{"POST /races/{id}/arrivals", "arrivals", h.addArrival},
		{"GET /races/{id}/candidates", "candidates", h.candidates},

		{"PATCH /participants/{id}", "participant", h.editParticipant},
		{"DELETE /participants/{id}", "participant", h.removeParticipant},

		{"GET /standings/{sex}", "standings", h.standings},
		{"POST /recalculate", "recalculate", h.recalculate},
		{"POST /sweep", "sweep", h.sweep},
	}
	for _, r := range routes {
		mux.HandleFunc(r.pattern, MetricsMiddleware(r.handler, r.endpoint))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if ec, ok := w.(errorCoder); ok {
		ec.setErrorCode(code)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, series.ErrInvalidInput),
		errors.Is(err, series.ErrCalculatedProperty),
		errors.Is(err, graph.ErrInvalidProperty):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, ErrDeletionBlocked):
		writeError(w, http.StatusConflict, "deletion_blocked", err)
	case errors.Is(err, series.ErrKindNotAllowed),
		errors.Is(err, chain.ErrAlreadyInRace),
		errors.Is(err, chain.ErrNotInRace):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, chain.ErrIntegrity):
		writeError(w, http.StatusInternalServerError, "integrity", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decode(r *http.Request, op string, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return wrapKind(op, ErrBadRequest, err)
	}
	return nil
}
