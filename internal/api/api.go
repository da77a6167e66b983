package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/model"
	"github.com/thatsimonsguy/pool-controller/internal/programs"
	"github.com/thatsimonsguy/pool-controller/internal/surface"
)

type Server struct {
	surface  *surface.Surface
	programs *programs.Store
	registry *prometheus.Registry
}

type StateResponse struct {
	Connected   bool              `json:"connected"`
	Pump        string            `json:"pump"`
	Valve       int               `json:"valve"`
	Timer       *model.TimerState `json:"timer,omitempty"`
	Wifi        *model.WifiState  `json:"wifi,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	Countdown   int               `json:"countdown_seconds"`
	Scheduler   string            `json:"scheduler"`
	Program     string            `json:"program,omitempty"`
}

type PumpRequest struct {
	Command string `json:"command"`
}

type ValveRequest struct {
	Command string `json:"command"`
}

type TimerRequest struct {
	Mode     int `json:"mode"`
	Duration int `json:"duration"`
}

type ProgramRequest struct {
	Name     string                             `json:"name"`
	Enabled  bool                               `json:"enabled"`
	Schedule map[time.Weekday]model.DaySchedule `json:"schedule"`
}

type ProgramEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(agent *surface.Surface, store *programs.Store, registry *prometheus.Registry) *Server {
	return &Server{
		surface:  agent,
		programs: store,
		registry: registry,
	}
}

func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Add CORS middleware
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/pump", s.handlePump)
	mux.HandleFunc("/api/valve", s.handleValve)
	mux.HandleFunc("/api/timer", s.handleTimer)
	mux.HandleFunc("/api/wifi/clear", s.handleWifiClear)
	mux.HandleFunc("/api/programs", s.handlePrograms)
	mux.HandleFunc("/api/programs/", s.handleProgramOperations)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")

	return http.ListenAndServe(addr, corsHandler)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.surface.Snapshot()
	response := StateResponse{
		Connected:   snap.Connected,
		Pump:        string(snap.Pump),
		Valve:       int(snap.Valve),
		Timer:       snap.Timer,
		Wifi:        snap.Wifi,
		Temperature: snap.Temperature,
		Countdown:   snap.CountdownRemaining,
		Scheduler:   snap.SchedulerState.String(),
	}
	if snap.Execution != nil {
		response.Program = snap.Execution.Program
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var err error
	switch strings.ToUpper(strings.TrimSpace(req.Command)) {
	case "ON", "1":
		err = s.surface.SetPump(true)
	case "OFF", "0":
		err = s.surface.SetPump(false)
	case "TOGGLE":
		err = s.surface.TogglePump()
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid pump command. Valid commands: ON, OFF, TOGGLE")
		return
	}
	s.finishCommand(w, err, "pump", req.Command)
}

func (s *Server) handleValve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ValveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	command := strings.ToUpper(strings.TrimSpace(req.Command))
	var err error
	if command == "TOGGLE" {
		err = s.surface.ToggleValve()
	} else {
		mode, parseErr := model.ParseValveMode(command)
		if parseErr != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid valve command. Valid commands: 1, 2, TOGGLE")
			return
		}
		err = s.surface.SetValve(mode)
	}
	s.finishCommand(w, err, "valve", req.Command)
}

func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req TimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var err error
	if req.Duration == 0 {
		err = s.surface.StopTimer()
	} else {
		err = s.surface.StartTimer(model.ValveMode(req.Mode), req.Duration)
	}
	if err != nil && err != surface.ErrDisconnected {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.finishCommand(w, err, "timer", fmt.Sprintf("mode=%d duration=%d", req.Mode, req.Duration))
}

func (s *Server) handleWifiClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.finishCommand(w, s.surface.ClearWifi(), "wifi_clear", "")
}

func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/api/programs" {
		s.getPrograms(w, r)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleProgramOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/programs/")
	parts := strings.Split(path, "/")

	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "Program slot required")
		return
	}

	slot, err := strconv.Atoi(parts[0])
	if err != nil || slot < 0 || slot >= model.MaxProgramSlots {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Invalid program slot. Valid slots: 0-%d", model.MaxProgramSlots-1))
		return
	}

	if len(parts) == 1 {
		// /api/programs/{slot}
		switch r.Method {
		case http.MethodGet:
			s.getProgram(w, r, slot)
		case http.MethodPut:
			s.putProgram(w, r, slot)
		case http.MethodDelete:
			s.deleteProgram(w, r, slot)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	} else if len(parts) == 2 && parts[1] == "enabled" {
		if r.Method == http.MethodPut {
			s.setProgramEnabled(w, r, slot)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	} else {
		s.writeError(w, http.StatusNotFound, "Invalid path")
	}
}

func (s *Server) getPrograms(w http.ResponseWriter, r *http.Request) {
	slots, err := s.programs.List()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list programs")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, slots)
}

func (s *Server) getProgram(w http.ResponseWriter, r *http.Request, slot int) {
	program, err := s.programs.Get(slot)
	if err != nil {
		log.Error().Err(err).Int("slot", slot).Msg("Failed to get program")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if program == nil {
		s.writeError(w, http.StatusNotFound, "Program not found")
		return
	}
	s.writeJSON(w, http.StatusOK, program)
}

func (s *Server) putProgram(w http.ResponseWriter, r *http.Request, slot int) {
	var req ProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	program := model.Program{Name: req.Name, Enabled: req.Enabled, Schedule: req.Schedule}
	if err := s.programs.Save(slot, program); err != nil {
		log.Error().Err(err).Int("slot", slot).Msg("Failed to save program")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info().Int("slot", slot).Str("name", req.Name).Msg("Program saved via API")
	s.surface.Evaluate()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteProgram(w http.ResponseWriter, r *http.Request, slot int) {
	if err := s.programs.Delete(slot); err != nil {
		log.Error().Err(err).Int("slot", slot).Msg("Failed to delete program")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Int("slot", slot).Msg("Program deleted via API")
	s.surface.Evaluate()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setProgramEnabled(w http.ResponseWriter, r *http.Request, slot int) {
	var req ProgramEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := s.programs.SetEnabled(slot, req.Enabled); err != nil {
		log.Error().Err(err).Int("slot", slot).Msg("Failed to toggle program")
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	log.Info().Int("slot", slot).Bool("enabled", req.Enabled).Msg("Program toggled via API")
	s.surface.Evaluate()
	w.WriteHeader(http.StatusOK)
}

// finishCommand maps command outcomes to HTTP statuses. A disconnected
// broker is 503; the command never left the building.
func (s *Server) finishCommand(w http.ResponseWriter, err error, channel, detail string) {
	if err == surface.ErrDisconnected {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Info().Str("channel", channel).Str("command", detail).Msg("Command accepted via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
