package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/internal/domain/series"
)

type seriesHandler struct {
	deps Dependencies
}

type personRequest struct {
	Name string `json:"name"`
	Sex  string `json:"sex"`
}

type organizationRequest struct {
	Name string `json:"name"`
	City string `json:"city"`
	Date string `json:"date"`
	Kind string `json:"kind"`
}

func (o organizationRequest) input() (series.OrgInput, error) {
	in := series.OrgInput{Name: o.Name, City: o.City, Kind: model.OrgKind(o.Kind)}
	date, err := time.Parse(model.DayLayout, strings.TrimSpace(o.Date))
	if err != nil {
		return in, errors.New("invalid date; must be YYYY-MM-DD")
	}
	in.Date = date
	return in, nil
}

type nameRequest struct {
	Name string `json:"name"`
}

type sexRequest struct {
	Sex string `json:"sex"`
}

type categoryRequest struct {
	CategoryID string `json:"category_id"`
}

type newCategoryRequest struct {
	Name string `json:"name"`
	Seq  int    `json:"seq"`
}

type kindRequest struct {
	Kind string `json:"kind"`
}

type raceRequest struct {
	Name string `json:"name"`
	Main bool   `json:"main"`
}

type arrivalRequest struct {
	PersonID string `json:"person_id"`
	// After is the person the new arrival follows; empty or "-1" means first.
	After string `json:"after"`
}

type removedResponse struct {
	Removed bool `json:"removed"`
}

func (h *seriesHandler) listPersons(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Persons(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) addPerson(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_person"
	var req personRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sex := model.SexUnknown
	if strings.TrimSpace(req.Sex) != "" {
		s, err := model.ParseSex(req.Sex)
		if err != nil {
			writeDomainError(w, wrapKind(op, ErrBadRequest, err))
			return
		}
		sex = s
	}
	p, created, err := h.deps.AddPerson(r.Context(), req.Name, sex)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !created {
		writeDomainError(w, wrapKind(op, ErrDuplicate, nil))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *seriesHandler) getPerson(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Person(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *seriesHandler) personResults(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.PersonResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) renamePerson(w http.ResponseWriter, r *http.Request) {
	const op = "api.rename_person"
	var req nameRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	ok, err := h.deps.RenamePerson(r.Context(), r.PathValue("id"), req.Name)
	h.writeEdited(w, op, ok, err)
}

func (h *seriesHandler) setPersonSex(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_person_sex"
	var req sexRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sex, err := model.ParseSex(req.Sex)
	if err != nil {
		writeDomainError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetPersonSex(r.Context(), r.PathValue("id"), sex); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *seriesHandler) setPersonCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, "api.set_person_category", &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.SetPersonCategory(r.Context(), r.PathValue("id"), req.CategoryID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *seriesHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Categories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) addCategory(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_category"
	var req newCategoryRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c, created, err := h.deps.AddCategory(r.Context(), req.Name, req.Seq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !created {
		writeDomainError(w, wrapKind(op, ErrDuplicate, nil))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *seriesHandler) removeCategory(w http.ResponseWriter, r *http.Request) {
	removed, err := h.deps.RemoveCategory(r.Context(), r.PathValue("id"))
	h.writeRemoved(w, "api.remove_category", removed, err)
}

func (h *seriesHandler) removePerson(w http.ResponseWriter, r *http.Request) {
	removed, err := h.deps.RemovePerson(r.Context(), r.PathValue("id"))
	h.writeRemoved(w, "api.remove_person", removed, err)
}

func (h *seriesHandler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Organizations(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) addOrganization(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_organization"
	var req organizationRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeDomainError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	org, created, err := h.deps.AddOrganization(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !created {
		writeDomainError(w, wrapKind(op, ErrDuplicate, nil))
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (h *seriesHandler) editOrganization(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_organization"
	var req organizationRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeDomainError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	ok, err := h.deps.EditOrganization(r.Context(), r.PathValue("id"), in)
	h.writeEdited(w, op, ok, err)
}

func (h *seriesHandler) listLocations(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Locations(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) setOrganizationKind(w http.ResponseWriter, r *http.Request) {
	var req kindRequest
	if err := decode(r, "api.set_organization_kind", &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.SetOrganizationKind(r.Context(), r.PathValue("id"), model.OrgKind(req.Kind)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *seriesHandler) removeOrganization(w http.ResponseWriter, r *http.Request) {
	removed, err := h.deps.RemoveOrganization(r.Context(), r.PathValue("id"))
	h.writeRemoved(w, "api.remove_organization", removed, err)
}

func (h *seriesHandler) listRaces(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Races(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) addRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_race"
	var req raceRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	race, created, err := h.deps.AddRace(r.Context(), r.PathValue("id"), req.Name, req.Main)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !created {
		writeDomainError(w, wrapKind(op, ErrDuplicate, nil))
		return
	}
	writeJSON(w, http.StatusCreated, race)
}

func (h *seriesHandler) renameRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.rename_race"
	var req nameRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	ok, err := h.deps.RenameRace(r.Context(), r.PathValue("id"), req.Name)
	h.writeEdited(w, op, ok, err)
}

func (h *seriesHandler) setRaceKind(w http.ResponseWriter, r *http.Request) {
	var req kindRequest
	if err := decode(r, "api.set_race_kind", &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.SetRaceKind(r.Context(), r.PathValue("id"), model.RaceKind(req.Kind)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *seriesHandler) removeRace(w http.ResponseWriter, r *http.Request) {
	removed, err := h.deps.RemoveRace(r.Context(), r.PathValue("id"))
	h.writeRemoved(w, "api.remove_race", removed, err)
}

func (h *seriesHandler) listArrivals(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Arrivals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) addArrival(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_arrival"
	var req arrivalRequest
	if err := decode(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.TrimSpace(req.PersonID) == "" {
		writeDomainError(w, wrapKind(op, ErrBadRequest, errors.New("missing person_id")))
		return
	}
	after := chain.First
	if req.After != "" {
		after = chain.After(req.After)
	}
	p, err := h.deps.AddArrival(r.Context(), r.PathValue("id"), req.PersonID, after)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *seriesHandler) candidates(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.NextCandidates(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) editParticipant(w http.ResponseWriter, r *http.Request) {
	var props map[string]string
	if err := decode(r, "api.edit_participant", &props); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.EditParticipant(r.Context(), r.PathValue("id"), props); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *seriesHandler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RemoveParticipant(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// standings handles GET /standings/{sex}?limit=N.
func (h *seriesHandler) standings(w http.ResponseWriter, r *http.Request) {
	const op = "api.standings"
	sex, err := model.ParseSex(r.PathValue("sex"))
	if err != nil {
		writeDomainError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			writeDomainError(w, wrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
	}
	out, err := h.deps.Standings(r.Context(), sex, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *seriesHandler) recalculate(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Recalculate(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"races": n})
}

func (h *seriesHandler) sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Sweep(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// writeEdited answers 204, or 409 when the edit collided with an existing entity.
func (h *seriesHandler) writeEdited(w http.ResponseWriter, op string, ok bool, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeDomainError(w, wrapKind(op, ErrDuplicate, nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *seriesHandler) writeRemoved(w http.ResponseWriter, op string, removed bool, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeDomainError(w, wrapKind(op, ErrDeletionBlocked, nil))
		return
	}
	writeJSON(w, http.StatusOK, removedResponse{Removed: true})
}
