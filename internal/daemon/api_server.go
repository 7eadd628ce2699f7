package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"strata/internal/api"
	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/placement"
	"strata/internal/predictor"
	"strata/internal/services"
	"strata/internal/store"
	"strata/internal/tier"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	service *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc *api.Service, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		service: svc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/objects", srv.handleListObjects)
	mux.HandleFunc("POST /api/objects", srv.handleCreateObject)
	mux.HandleFunc("GET /api/objects/{id}", srv.handleGetObject)
	mux.HandleFunc("POST /api/objects/{id}/access", srv.handleRecordAccess)
	mux.HandleFunc("GET /api/objects/{id}/evaluate", srv.handleEvaluate)
	mux.HandleFunc("POST /api/objects/{id}/predict", srv.handlePredict)
	mux.HandleFunc("GET /api/objects/{id}/history", srv.handleHistory)
	mux.HandleFunc("GET /api/evaluate", srv.handleEvaluateAll)
	mux.HandleFunc("POST /api/train", srv.handleTrain)
	mux.HandleFunc("GET /api/migrations", srv.handleListTasks)
	mux.HandleFunc("POST /api/migrations", srv.handleSubmitMigration)
	mux.HandleFunc("GET /api/migrations/{id}", srv.handleGetTask)
	mux.HandleFunc("POST /api/migrations/{id}/retry", srv.handleRetryTask)

	srv.server = &http.Server{
		Handler:           srv.withRequestID(authMiddleware(cfg.Paths.APIToken, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// addr reports the bound listen address, useful when the port was 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrModelNotTrained),
		errors.Is(err, services.ErrInsufficientData),
		errors.Is(err, services.ErrNotRetryable):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "api-server", "parse-id", "invalid id in path", err)
	}
	return id, nil
}

type objectPayload struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SizeBytes   int64   `json:"size_bytes"`
	Tier        string  `json:"tier"`
	Location    string  `json:"location"`
	AccessCount int64   `json:"access_count"`
	MonthlyCost float64 `json:"monthly_cost"`
	ContentType string  `json:"content_type,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func renderObject(obj *store.DataObject) objectPayload {
	return objectPayload{
		ID:          obj.ID,
		Name:        obj.Name,
		SizeBytes:   obj.SizeBytes,
		Tier:        string(obj.CurrentTier),
		Location:    obj.Location,
		AccessCount: obj.AccessCount,
		MonthlyCost: obj.MonthlyCost,
		ContentType: obj.ContentType,
		CreatedAt:   obj.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   obj.UpdatedAt.Format(time.RFC3339),
	}
}

type taskPayload struct {
	ID              int64   `json:"id"`
	ObjectID        int64   `json:"object_id"`
	SourceTier      string  `json:"source_tier"`
	TargetTier      string  `json:"target_tier"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	RetryCount      int     `json:"retry_count"`
	LastError       string  `json:"last_error,omitempty"`
	CreatedAt       string  `json:"created_at"`
	StartedAt       string  `json:"started_at,omitempty"`
	CompletedAt     string  `json:"completed_at,omitempty"`
}

func renderTask(task *store.Task) taskPayload {
	payload := taskPayload{
		ID:              task.ID,
		ObjectID:        task.ObjectID,
		SourceTier:      string(task.SourceTier),
		TargetTier:      string(task.TargetTier),
		Status:          string(task.Status),
		ProgressPercent: task.ProgressPercent,
		RetryCount:      task.RetryCount,
		LastError:       task.LastError,
		CreatedAt:       task.CreatedAt.Format(time.RFC3339),
	}
	if task.StartedAt != nil {
		payload.StartedAt = task.StartedAt.Format(time.RFC3339)
	}
	if task.CompletedAt != nil {
		payload.CompletedAt = task.CompletedAt.Format(time.RFC3339)
	}
	return payload
}

type recommendationPayload struct {
	ObjectID        int64   `json:"object_id"`
	ObjectName      string  `json:"object_name"`
	CurrentTier     string  `json:"current_tier"`
	RecommendedTier string  `json:"recommended_tier"`
	Score           float64 `json:"score"`
	MonthlySavings  float64 `json:"monthly_savings"`
	ShouldMigrate   bool    `json:"should_migrate"`
	Reasoning       string  `json:"reasoning"`
}

func renderRecommendation(rec *placement.Recommendation) recommendationPayload {
	return recommendationPayload{
		ObjectID:        rec.ObjectID,
		ObjectName:      rec.ObjectName,
		CurrentTier:     string(rec.CurrentTier),
		RecommendedTier: string(rec.RecommendedTier),
		Score:           rec.Score,
		MonthlySavings:  rec.MonthlySavings,
		ShouldMigrate:   rec.ShouldMigrate,
		Reasoning:       rec.Reasoning,
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	body := map[string]any{
		"objects":            status.Objects,
		"objects_by_tier":    status.ObjectsByTier,
		"total_monthly_cost": status.TotalMonthlyCost,
		"queue": map[string]int{
			"total":       status.Queue.Total,
			"pending":     status.Queue.Pending,
			"in_progress": status.Queue.InProgress,
			"completed":   status.Queue.Completed,
			"failed":      status.Queue.Failed,
		},
		"predictor_trained": status.PredictorTrained,
	}
	if status.LastTraining != nil {
		body["last_training"] = renderTraining(status.LastTraining)
	}
	s.writeJSON(w, http.StatusOK, body)
}

func renderTraining(report *predictor.TrainingReport) map[string]any {
	return map[string]any{
		"model_version":  report.ModelVersion,
		"trained_at":     report.TrainedAt.Format(time.RFC3339),
		"train_samples":  report.TrainSamples,
		"test_samples":   report.TestSamples,
		"train_accuracy": report.TrainAccuracy,
		"test_accuracy":  report.TestAccuracy,
	}
}

func (s *apiServer) handleListObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := s.service.ListObjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]objectPayload, 0, len(objects))
	for _, obj := range objects {
		payloads = append(payloads, renderObject(obj))
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *apiServer) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		SizeBytes   int64  `json:"size_bytes"`
		Tier        string `json:"tier"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api-server", "create-object", "invalid request body", err))
		return
	}
	obj, err := s.service.CreateObject(r.Context(), api.CreateObjectParams{
		Name:        req.Name,
		SizeBytes:   req.SizeBytes,
		Tier:        req.Tier,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, renderObject(obj))
}

func (s *apiServer) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	obj, err := s.service.GetObject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderObject(obj))
}

func (s *apiServer) handleRecordAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Kind      string  `json:"kind"`
		LatencyMS float64 `json:"latency_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api-server", "record-access", "invalid request body", err))
		return
	}
	if req.Kind == "" {
		req.Kind = string(store.AccessRead)
	}
	if err := s.service.RecordAccess(r.Context(), id, store.AccessKind(req.Kind), req.LatencyMS); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *apiServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.service.Evaluate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderRecommendation(rec))
}

func (s *apiServer) handleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.EvaluateAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]recommendationPayload, 0, len(recs))
	for _, rec := range recs {
		payloads = append(payloads, renderRecommendation(rec))
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *apiServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	prediction, err := s.service.Predict(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"object_id":       prediction.ObjectID,
		"predicted_tier":  string(prediction.PredictedTier),
		"confidence_hot":  prediction.ConfidenceHot,
		"confidence_warm": prediction.ConfidenceWarm,
		"confidence_cold": prediction.ConfidenceCold,
		"model_version":   prediction.ModelVersion,
		"reasoning":       prediction.Reasoning,
	})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, services.Wrap(services.ErrValidation, "api-server", "history", "invalid limit", err))
			return
		}
		limit = parsed
	}
	tasks, err := s.service.MigrationHistory(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]taskPayload, 0, len(tasks))
	for _, task := range tasks {
		payloads = append(payloads, renderTask(task))
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *apiServer) handleTrain(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Train(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderTraining(report))
}

func (s *apiServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []store.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := store.ParseStatus(raw)
		if !ok {
			s.writeError(w, services.Wrap(services.ErrValidation, "api-server", "list-tasks",
				fmt.Sprintf("unknown status %q", raw), nil))
			return
		}
		statuses = append(statuses, status)
	}
	tasks, err := s.service.ListTasks(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payloads := make([]taskPayload, 0, len(tasks))
	for _, task := range tasks {
		payloads = append(payloads, renderTask(task))
	}
	s.writeJSON(w, http.StatusOK, payloads)
}

func (s *apiServer) handleSubmitMigration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectID   int64  `json:"object_id"`
		TargetTier string `json:"target_tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api-server", "submit", "invalid request body", err))
		return
	}
	target, err := tier.Parse(req.TargetTier)
	if err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api-server", "submit", "invalid target tier", err))
		return
	}
	task, err := s.service.SubmitMigration(r.Context(), req.ObjectID, target)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, renderTask(task))
}

func (s *apiServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	task, err := s.service.GetTask(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderTask(task))
}

func (s *apiServer) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	task, err := s.service.RetryTask(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, renderTask(task))
}
