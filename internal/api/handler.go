package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

const maxBodySize = 1 << 20

// Hub is the part of the hub the push API drives
type Hub interface {
	domain.Dispatcher

	SendOrderUpdate(kitchenID int64, data any) int
	SendBatchUpdate(kitchenID int64, data any) int
	SendCapacityUpdate(kitchenID int64, data any) int
	SendNotification(userID int64, data any) int

	Connection(connectionID string) (domain.ConnectionInfo, bool)
	Disconnect(connectionID string) bool
	Stats() domain.HubStats
}

// Options configures the push API
type Options struct {
	APIKey string
	Logger *logging.Logger
	Clock  clockwork.Clock
}

// Handler serves /api/v1
type Handler struct {
	hub    Hub
	logger *logging.Logger
	clock  clockwork.Clock
	errors errors.Handler
}

// New creates the push API router. Everything but /health requires the API
// key when one is set.
func New(hub Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.New(logging.Config{Level: "info", Format: "text"})
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	logger := opts.Logger.WithFields(map[string]any{"component": "api"})
	h := &Handler{
		hub:    hub,
		logger: logger,
		clock:  opts.Clock,
		errors: errors.NewDefaultHandler(logger.Logger),
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Group(func(r chi.Router) {
			r.Use(RequireAPIKey(opts.APIKey))

			r.Get("/stats", h.stats)
			r.Get("/connections/{connectionID}", h.getConnection)
			r.Delete("/connections/{connectionID}", h.deleteConnection)

			r.Route("/kitchens/{kitchenID}", func(r chi.Router) {
				r.Post("/orders", h.kitchenPush(hub.SendOrderUpdate))
				r.Post("/batches", h.kitchenPush(hub.SendBatchUpdate))
				r.Post("/capacity", h.kitchenPush(hub.SendCapacityUpdate))
				r.Post("/messages", h.kitchenMessage)
			})

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Post("/notifications", h.userNotification)
				r.Post("/messages", h.userMessage)
			})

			r.Post("/broadcast", h.broadcast)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: h.hub.Stats().TotalConnections,
	})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.hub.Stats())
}

func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	info, ok := h.hub.Connection(chi.URLParam(r, "connectionID"))
	if !ok {
		h.fail(w, r, errors.New(errors.ErrorTypeNotFound, "CONNECTION_NOT_FOUND", "connection not found"))
		return
	}
	jsonResp(w, http.StatusOK, info)
}

func (h *Handler) deleteConnection(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Disconnect(chi.URLParam(r, "connectionID")) {
		h.fail(w, r, errors.New(errors.ErrorTypeNotFound, "CONNECTION_NOT_FOUND", "connection not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) kitchenPush(send func(kitchenID int64, data any) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kitchenID, err := pathID(r, "kitchenID")
		if err != nil {
			h.fail(w, r, err)
			return
		}

		data, err := readData(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		jsonResp(w, http.StatusOK, DeliveryResponse{Delivered: send(kitchenID, data)})
	}
}

func (h *Handler) kitchenMessage(w http.ResponseWriter, r *http.Request) {
	kitchenID, err := pathID(r, "kitchenID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msg, err := h.readMessage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jsonResp(w, http.StatusOK, DeliveryResponse{Delivered: h.hub.SendToKitchen(kitchenID, msg)})
}

func (h *Handler) userNotification(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data, err := readData(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jsonResp(w, http.StatusOK, DeliveryResponse{Delivered: h.hub.SendNotification(userID, data)})
}

func (h *Handler) userMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msg, err := h.readMessage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jsonResp(w, http.StatusOK, DeliveryResponse{Delivered: h.hub.SendToUser(userID, msg)})
}

func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request) {
	msg, err := h.readMessage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	jsonResp(w, http.StatusOK, DeliveryResponse{Delivered: h.hub.Broadcast(msg)})
}

func (h *Handler) readMessage(r *http.Request) (domain.Message, error) {
	var req MessageRequest
	body, err := readBody(r)
	if err != nil {
		return domain.Message{}, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.Message{}, errors.Wrap(err, errors.ErrorTypeValidation, "INVALID_BODY", "body is not a message")
	}
	if req.Type == "" {
		return domain.Message{}, errors.New(errors.ErrorTypeValidation, "TYPE_REQUIRED", "message type is required")
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	return domain.NewMessage(req.Type, data, h.clock.Now()), nil
}

// fail maps an error to a status code and logs it by type
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.errors.Handle(r.Context(), err)

	status := http.StatusInternalServerError
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeProtocol:
		status = http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrorTypeUnauthorized:
		status = http.StatusUnauthorized
	}

	code := ""
	msg := http.StatusText(status)
	if e, ok := errors.As(err); ok {
		code = e.Code
		msg = e.Message
	}
	jsonErr(w, status, code, msg)
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, "INVALID_ID", "id must be an integer").
			WithDetails(param + "=" + raw)
	}
	return id, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "UNREADABLE_BODY", "failed to read body")
	}
	if len(body) > maxBodySize {
		return nil, errors.New(errors.ErrorTypeValidation, "BODY_TOO_LARGE", "body exceeds 1MiB")
	}
	return body, nil
}

// readData returns the body as raw JSON, or nil for an empty body
func readData(r *http.Request) (any, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.New(errors.ErrorTypeValidation, "INVALID_BODY", "body must be JSON")
	}
	return json.RawMessage(body), nil
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, errCode, msg string) {
	jsonResp(w, code, errorResponse{Error: msg, Code: errCode})
}
