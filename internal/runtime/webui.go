package runtime

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
)

const maxPostBodyBytes = 4 << 20

// ServiceStatus is the body of GET /api/status.
type ServiceStatus struct {
	Sockets         int          `json:"sockets"`
	Capacity        int          `json:"capacity"`
	UpdateFrequency uint32       `json:"update_frequency"`
	Transport       string       `json:"transport,omitempty"`
	Uptime          string       `json:"uptime"`
	Process         ProcessUsage `json:"process"`
}

// PostRequest is the body of POST /api/sockets/{name}/messages. Message, Path
// and Fragment are hashed the same way in-process callers hash them; MessageID
// is used as is when Message is empty. Descriptor must name a descriptor the
// service resolves. Payload is base64 in JSON.
type PostRequest struct {
	MessageID  uint64 `json:"message_id,omitempty"`
	Message    string `json:"message,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
	Path       string `json:"path,omitempty"`
	Fragment   string `json:"fragment,omitempty"`
	Payload    []byte `json:"payload,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Service) registerWebUI() {
	port := s.Conf.WebUIPort
	if port == 0 {
		port = 8081
	}
	s.RegisterHTTPHandler(port, "/api/sockets", s.withCORS("GET, OPTIONS", s.handleGetSockets))
	s.RegisterHTTPHandler(port, "/api/status", s.withCORS("GET, OPTIONS", s.handleGetStatus))
	s.RegisterHTTPHandler(port, "/api/sockets/{name}/messages", s.withCORS("POST, OPTIONS", s.handlePostMessage))
}

func (s *Service) withCORS(methods string, next http.HandlerFunc) http.Handler {
	accepted := strings.Split(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.Conf.WebUICORSAllowedOrigins) > 0 {
			if allowed := s.getAllowedCORSOrigin(r.Header.Get("Origin")); allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !slices.Contains(accepted, r.Method) {
			w.Header().Set("Allow", methods)
			s.writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
			return
		}
		next(w, r)
	})
}

func (s *Service) handleGetSockets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Sockets())
}

func (s *Service) handleGetStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Status())
}

// Status summarises the registry and the process hosting it.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{
		Sockets:         s.registry.Len(),
		Capacity:        s.registry.Capacity(),
		UpdateFrequency: s.UpdateFrequency(),
		Transport:       s.transportCaps.Name,
		Uptime:          time.Since(s.startedAt).Round(time.Second).String(),
		Process:         s.sampler.Snapshot(),
	}
}

func (s *Service) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	h, ok := s.registry.GetSocket(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, apiError{Error: "socket not found: " + name})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPostBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: "request body too large"})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, apiError{Error: "unreadable request body"})
		return
	}
	var req PostRequest
	if err := jsoncodec.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}

	id := req.MessageID
	if req.Message != "" {
		id = s.reverse.Hash64(req.Message)
	}
	opts := []PostOption{WithReceiver(s.hashOptional(req.Path), s.hashOptional(req.Fragment))}
	if req.Descriptor != "" {
		d, ok := s.resolveDescriptor(req.Descriptor)
		if !ok {
			s.writeJSON(w, http.StatusBadRequest, apiError{Error: errspkg.ErrUnknownDescriptor.Error() + ": " + req.Descriptor})
			return
		}
		opts = append(opts, WithDescriptor(d))
	}
	err = s.registry.Post(h, id, req.Payload, opts...)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, errspkg.ErrSocketNotFound):
		s.writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
	case errors.Is(err, errspkg.ErrPayloadTooLarge):
		s.writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: err.Error()})
	case errors.Is(err, errspkg.ErrRegistryClosed):
		s.writeJSON(w, http.StatusServiceUnavailable, apiError{Error: err.Error()})
	default:
		s.writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
	}
}

func (s *Service) resolveDescriptor(name string) (Descriptor, bool) {
	if s.descriptors == nil {
		return nil, false
	}
	d, ok := s.descriptors(name)
	return d, ok && d != nil
}

func (s *Service) hashOptional(v string) uint64 {
	if v == "" {
		return 0
	}
	return s.reverse.Hash64(v)
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	if err := jsoncodec.WriteJSON(w, status, v); err != nil {
		s.Logger.Error("Failed to write response", err, loggingpkg.LogFields{"status": status})
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the appropriate
// Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range s.Conf.WebUICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
