package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/reglet-dev/classrunner/internal/application/dto"
	apperrors "github.com/reglet-dev/classrunner/internal/application/errors"
	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// Runner executes one run request.
type Runner interface {
	Execute(ctx context.Context, store ports.SelectionStore, req dto.RunRequest) (*dto.RunResponse, error)
}

// ProfileLister answers profile queries.
type ProfileLister interface {
	List(ctx context.Context, baseURL string) ([]dto.ProfileSummary, error)
	Packages(ctx context.Context, req dto.PackagesRequest) (*entities.PackageSet, error)
}

// Query parameters with a fixed meaning. Every other parameter of a run
// request is handed to the unit as an argument.
const (
	ParamUnit           = "unit"
	ParamDocument       = "document"
	ParamParser         = "parser"
	ParamOutput         = "output"
	ParamBaseURL        = "baseURL"
	ParamDefaultProfile = "defaultProfile"
)

// HandlerOptions configures the HTTP handler.
type HandlerOptions struct {
	// Key names both the profile parameter and the override cookie.
	Key  string
	Wiki string
}

// Handler serves run and profile requests.
type Handler struct {
	runner   Runner
	profiles ProfileLister
	opts     HandlerOptions
	logger   *slog.Logger
}

// NewHandler creates a handler.
func NewHandler(runner Runner, profiles ProfileLister, opts HandlerOptions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, profiles: profiles, opts: opts, logger: logger}
}

// Routes returns the handler's mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /run", h.handleRun)
	mux.HandleFunc("GET /profiles", h.handleProfiles)
	mux.HandleFunc("GET /profiles/{profile}/packages", h.handlePackages)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	req, err := h.runRequest(r, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.runner.Execute(r.Context(), NewCookieStore(w, r), req)
	if err != nil {
		var runErr *apperrors.RunError
		if errors.As(err, &runErr) {
			w.Header().Set("X-Invocation-Id", runErr.InvocationID)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Invocation-Id", resp.Metadata.InvocationID)
	if _, err := w.Write([]byte(resp.Output)); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

func (h *Handler) runRequest(r *http.Request, id Identity) (dto.RunRequest, error) {
	q := r.URL.Query()

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req := dto.RunRequest{
		Unit:          q.Get(ParamUnit),
		Document:      ParseDocument(q.Get(ParamDocument), h.opts.Wiki),
		Parser:        q.Get(ParamParser),
		DiscardOutput: strings.EqualFold(q.Get(ParamOutput), "false"),
		Requester:     dto.Requester{Identity: id.Subject, Elevated: id.Elevated},
		Args:          units.Args{},
		Context:       units.Context{"user": id.Subject, "request_id": requestID},
		Metadata:      dto.RequestMetadata{RequestID: requestID},
	}
	if req.Unit == "" && req.Document.Name == "" {
		return req, apperrors.NewValidationError(ParamUnit, "either unit or document is required")
	}

	if q.Has(h.opts.Key) {
		v := q.Get(h.opts.Key)
		req.Profile = &v
	}

	// Base URL and caller default choose where code is loaded from.
	if id.Elevated {
		req.BaseURL = q.Get(ParamBaseURL)
		req.DefaultProfile = q.Get(ParamDefaultProfile)
	}

	for name, vals := range q {
		if h.reserved(name) {
			continue
		}
		for _, v := range vals {
			req.Args.Add(name, v)
		}
	}
	return req, nil
}

func (h *Handler) reserved(name string) bool {
	switch name {
	case ParamUnit, ParamDocument, ParamParser, ParamOutput, ParamBaseURL, ParamDefaultProfile, h.opts.Key:
		return true
	}
	return false
}

type profileJSON struct {
	Profile  string       `json:"profile"`
	Packages *packageJSON `json:"packages,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type packageJSON struct {
	Stable   []string `json:"stable"`
	Snapshot []string `json:"snapshot"`
	GroupIDs []string `json:"groupIds"`
}

func toPackageJSON(set *entities.PackageSet) *packageJSON {
	if set == nil {
		return nil
	}
	return &packageJSON{Stable: set.Stable, Snapshot: set.Snapshot, GroupIDs: set.GroupIDs}
}

func (h *Handler) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !IdentityFromContext(r.Context()).Elevated {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	summaries, err := h.profiles.List(r.Context(), r.URL.Query().Get(ParamBaseURL))
	if err != nil {
		h.logger.Error("failed to list profiles", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]profileJSON, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, profileJSON{Profile: s.Ref.String(), Packages: toPackageJSON(s.Packages), Error: s.Error})
	}
	h.writeJSON(w, out)
}

func (h *Handler) handlePackages(w http.ResponseWriter, r *http.Request) {
	if !IdentityFromContext(r.Context()).Elevated {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	profile := r.PathValue("profile")
	set, err := h.profiles.Packages(r.Context(), dto.PackagesRequest{
		Profile: profile,
		BaseURL: r.URL.Query().Get(ParamBaseURL),
	})
	if err != nil {
		status := http.StatusInternalServerError
		var missing *entities.ProfileMissingError
		if errors.As(err, &missing) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.writeJSON(w, profileJSON{Profile: values.ParseProfileRef(profile).String(), Packages: toPackageJSON(set)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// ParseDocument reads a [wiki:]Space.Name document reference. The wiki
// defaults to wiki.
func ParseDocument(s, wiki string) values.DocumentRef {
	doc := values.DocumentRef{Wiki: wiki}
	if s == "" {
		return doc
	}
	if w, rest, ok := strings.Cut(s, ":"); ok {
		doc.Wiki = w
		s = rest
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		doc.Space = s[:i]
		s = s[i+1:]
	}
	doc.Name = s
	return doc
}
