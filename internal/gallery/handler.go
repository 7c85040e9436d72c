package gallery

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"media-wall/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
)

const (
	homePage     = "home.html"
	notFoundPage = "not_found.html"
)

// Options configures the file locations and limits used by Handler.
type Options struct {
	StaticDir      string
	MediaDir       string
	MaxUploadBytes int64
}

// Handler exposes the upload pipeline and its pages over HTTP.
type Handler struct {
	svc     *Service
	doc     *Document
	opts    Options
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. Metrics may be nil to disable metric recording
// (e.g. in tests).
func NewHandler(svc *Service, doc *Document, opts Options, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, doc: doc, opts: opts, log: log, metrics: m}
}

// Register mounts the handler's routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Method(http.MethodGet, "/", gzhttp.GzipHandler(http.HandlerFunc(h.GetDocument)))
	r.Method(http.MethodGet, "/home", gzhttp.GzipHandler(http.HandlerFunc(h.GetHome)))
	r.Post("/media", h.PostMedia)
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(filesOnly{http.Dir(h.opts.MediaDir)})))
	r.Handle("/css/*", http.FileServer(filesOnly{http.Dir(h.opts.StaticDir)}))
	r.Post("/users", h.CreateUser)
	r.NotFound(h.NotFound)
}

// PostMedia handles POST /media with a multipart body carrying a "media" file.
func (h *Handler) PostMedia(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		h.log.Debug("upload is not multipart", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.svc.ReceiveUpload(mr)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	h.log.Info("media received",
		slog.String("name", res.Name),
		slog.Int64("size", res.Size),
		slog.String("blake3", res.Checksum),
		slog.String("fragment_id", string(res.FragmentID)),
		slog.Int("pending", h.svc.Pending()))
	if h.metrics != nil {
		h.metrics.IncUploads()
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.log.Info("upload rejected", slog.String("error", err.Error()))
		http.Error(w, ErrUploadTooLarge.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrMissingMedia),
		errors.Is(err, ErrMissingFilename),
		errors.Is(err, ErrDuplicateMedia),
		errors.Is(err, ErrInvalidMediaName),
		errors.Is(err, ErrMalformedUpload):
		h.log.Info("upload rejected", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error("upload failed", slog.String("error", err.Error()))
		http.Error(w, "upload failed", http.StatusInternalServerError)
	}
}

// GetDocument handles GET / by serving the document file from disk.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, h.doc.Path())
}

// GetHome handles GET /home.
func (h *Handler) GetHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.opts.StaticDir, homePage))
}

// NotFound serves the static not-found page with status 404.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	page, err := os.ReadFile(filepath.Join(h.opts.StaticDir, notFoundPage))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write(page)
}

// CreateUser handles POST /users. Body: { "username": "ferris" }.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid user body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	user, err := h.svc.CreateUser(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// filesOnly serves regular files only. Directories and any path element
// starting with a dot (including staged uploads) report not-exist, so
// http.FileServer answers 404 instead of listing or leaking them.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	for _, elem := range strings.Split(name, "/") {
		if strings.HasPrefix(elem, ".") {
			return nil, fs.ErrNotExist
		}
	}

	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
