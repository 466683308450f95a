// =============================================================================
// Commission Report - HTTP Server
// =============================================================================
//
// ROUTES:
//   GET  /          upload form
//   POST /upload    process an uploaded export (multipart field "file", or
//                   the raw request body)
//   GET  /download  summary workbook of ?job=<id>, or of the latest job
//   GET  /healthz   liveness probe
//
// Any other method on these paths is answered with 405.
//
// Every upload runs as its own job under uploads/<job>/ and outputs/<job>/.
// The only state shared between requests is the id of the most recent
// successful job, guarded by a mutex.
//
// =============================================================================

package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/logging"
	"github.com/ginjaninja78/commission-report/internal/money"
	"github.com/ginjaninja78/commission-report/internal/pipeline"
	"github.com/ginjaninja78/commission-report/pkg/utils"
	"github.com/gorilla/mux"
)

// MaxUploadBytes bounds the size of an uploaded export.
const MaxUploadBytes = 32 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server serves the upload and download endpoints.
type Server struct {
	http.Server

	config    *config.MainConfig
	files     *utils.FileManager
	pipeline  *pipeline.Pipeline
	formatter money.Formatter
	logger    logging.Logger
	retention time.Duration

	mu        sync.RWMutex
	latestJob string
}

// NewServer wires the routes. A nil logger discards output.
func NewServer(cfg *config.MainConfig, files *utils.FileManager, p *pipeline.Pipeline, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	retention, err := cfg.Retention()
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:    cfg,
		files:     files,
		pipeline:  p,
		formatter: money.Formatter{Symbol: cfg.CurrencySymbol},
		logger:    logger,
		retention: retention,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.Use(s.logRequests)

	s.Server = http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// LatestJob returns the id of the most recent successful job, or "".
func (s *Server) LatestJob() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestJob
}

func (s *Server) setLatestJob(id string) {
	s.mu.Lock()
	s.latestJob = id
	s.mu.Unlock()
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "index", nil); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.sweepOldJobs()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	body, name, err := uploadedFile(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer body.Close()

	jobID := utils.NewJobID()
	inputPath, n, err := s.files.SaveUpload(jobID, name, body)
	if err != nil {
		s.discardJob(jobID)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error("failed to save upload", "job", jobID, "error", err)
		http.Error(w, "failed to save upload", http.StatusInternalServerError)
		return
	}
	if n == 0 {
		s.discardJob(jobID)
		http.Error(w, "empty upload", http.StatusBadRequest)
		return
	}

	result := s.pipeline.Run(pipeline.Options{
		InputPath: inputPath,
		OutputDir: s.files.JobOutputDir(jobID),
		RunID:     jobID,
	})
	if !result.Success {
		status := http.StatusInternalServerError
		if pipeline.IsInvalidInput(result.Error) {
			status = http.StatusUnprocessableEntity
		}
		s.discardJob(jobID)
		http.Error(w, result.Error.Error(), status)
		return
	}

	s.setLatestJob(jobID)
	s.logger.Info("job complete", "job", jobID, "rows", result.Stats.RowsRead, "groups", result.Stats.Groups)

	page := resultPage{
		JobID:       jobID,
		FileName:    s.config.Labels.SummaryFile,
		RowsRead:    result.Stats.RowsRead,
		Skipped:     len(result.Stats.Skipped),
		GrandOrders: result.Grand.Orders,
		GrandTotal:  s.formatter.Format(result.Grand.Total),
		Labels: labelSet{
			PrimaryKey:  s.config.Labels.PrimaryKey,
			TotalOrders: s.config.Labels.TotalOrders,
			TotalAmount: s.config.Labels.TotalAmount,
			GrandTotal:  s.config.Labels.GrandTotal,
		},
	}
	for _, row := range result.Rows {
		page.Rows = append(page.Rows, resultRow{Key: row.Key, Orders: row.Orders, Total: s.formatter.Format(row.Total)})
	}

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "result", page); err != nil {
		s.logger.Error("failed to render result", "job", jobID, "error", err)
		http.Error(w, "failed to render result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job")
	if jobID != "" {
		parsed, err := utils.ParseJobID(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		jobID = parsed
	} else {
		jobID = s.LatestJob()
	}
	if jobID == "" {
		http.Error(w, "no report has been generated yet", http.StatusNotFound)
		return
	}

	name := s.config.Labels.SummaryFile
	file, err := os.Open(filepath.Join(s.files.JobOutputDir(jobID), name))
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to open report", "job", jobID, "error", err)
		http.Error(w, "failed to open report", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "failed to open report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

// =============================================================================
// HELPERS
// =============================================================================

// uploadedFile returns the multipart "file" part, or the raw body for any
// other content type.
func uploadedFile(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, r.Header.Get("X-Filename"), nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("missing upload field %q", "file")
	}
	return file, header.Filename, nil
}

// sweepOldJobs removes expired job directories.
func (s *Server) sweepOldJobs() {
	removed, err := s.files.CleanOldJobs(s.retention)
	if err != nil {
		s.logger.Warn("failed to clean old jobs", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("removed expired jobs", "count", removed)
	}
}

// discardJob removes the upload and any partial output of a failed job.
func (s *Server) discardJob(jobID string) {
	for _, dir := range []string{s.files.JobUploadDir(jobID), s.files.JobOutputDir(jobID)} {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove job directory", "job", jobID, "dir", dir, "error", err)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
