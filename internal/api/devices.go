package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fhz2mqtt/internal/device"
	"github.com/nerrad567/fhz2mqtt/internal/fht"
)

// CommandInfo describes one entry of the command table.
type CommandInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Writable bool   `json:"writable"`
}

// SetCommandRequest is the body of PUT /devices/{houseCode}/commands/{command}.
type SetCommandRequest struct {
	Value string `json:"value"`
}

// handleListCommands returns the command table.
func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	cmds := fht.DefaultRegistry().Commands()
	out := make([]CommandInfo, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, CommandInfo{ID: c.ID.String(), Name: c.Name, Writable: c.Writable()})
	}
	respond(w, http.StatusOK, map[string]any{"commands": out, "count": len(out)})
}

// handleListDevices returns every known thermostat ordered by house code.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		fail(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "device inventory is disabled")
		return
	}
	thermostats := s.devices.ListThermostats(r.Context())
	respond(w, http.StatusOK, map[string]any{"devices": thermostats, "count": len(thermostats)})
}

// handleGetDevice returns one thermostat.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		fail(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "device inventory is disabled")
		return
	}

	houseCode := chi.URLParam(r, "houseCode")
	if err := device.ValidateHouseCode(houseCode); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	t, err := s.devices.GetThermostat(r.Context(), houseCode)
	if err != nil {
		if errors.Is(err, device.ErrThermostatNotFound) {
			fail(w, r, http.StatusNotFound, ErrCodeNotFound, "thermostat "+houseCode+" not found")
			return
		}
		s.logger.Error("failed to get thermostat", "house_code", houseCode, "error", err)
		fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to get thermostat")
		return
	}
	respond(w, http.StatusOK, t)
}

// handleSetCommand sends one command to a thermostat.
//
// Responses:
//   - 202 with the SetResult when the frame was written
//   - 400 for a malformed house code, value or command
//   - 503 when the transceiver is disconnected
//   - 502 when writing to the port failed
func (s *Server) handleSetCommand(w http.ResponseWriter, r *http.Request) {
	var req SetCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	houseCode := chi.URLParam(r, "houseCode")
	command := chi.URLParam(r, "command")

	result, err := s.bridge.Set(r.Context(), houseCode, command, req.Value)
	if err != nil {
		failSet(w, r, err, result)
		return
	}
	respond(w, http.StatusAccepted, result)
}
