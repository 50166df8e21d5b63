package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"taskBoard/internal/assist"
	"taskBoard/internal/board"
	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	"taskBoard/internal/service"
	"taskBoard/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TaskHandler struct {
	Board  Board
	Tasks  TaskReader
	Parser assist.Parser
	Now    func() time.Time
}

func NewTaskHandler(b Board, tasks TaskReader, parser assist.Parser) *TaskHandler {
	return &TaskHandler{
		Board:  b,
		Tasks:  tasks,
		Parser: parser,
		Now:    time.Now,
	}
}

func (s *TaskHandler) Register(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.ListTasks)           // GET /tasks
		r.Post("/", s.PostTask)           // POST /tasks
		r.Get("/summary", s.Summary)      // GET /tasks/summary
		r.Post("/suggest", s.SuggestTask) // POST /tasks/suggest

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTaskByID)           // GET /tasks/{id}
			r.Put("/", s.UpdateTaskByID)        // PUT /tasks/{id}
			r.Delete("/", s.DeleteTaskByID)     // DELETE /tasks/{id}
			r.Post("/toggle", s.ToggleTaskByID) // POST /tasks/{id}/toggle
		})
	})

	r.Get("/health", s.HealthCheck)
}

func (s *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	query := r.URL.Query()

	filter, err := view.ParseFilter(query.Get("filter"))
	if err != nil {
		logger.Warn("HTTP: Неверное значение параметра",
			zap.String("query", "filter"),
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sortKey, err := view.ParseSort(query.Get("sort"))
	if err != nil {
		logger.Warn("HTTP: Неверное значение параметра",
			zap.String("query", "sort"),
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks := s.Board.View(view.Query{
		Search: query.Get("search"),
		Filter: filter,
		Sort:   sortKey,
	})

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, dto.FromTaskList(tasks, s.Now()))
}

func (s *TaskHandler) Summary(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	responseWithData(w, http.StatusOK, s.Board.Summary())
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	fields, err := request.Form().Fields()
	if err != nil {
		handleError(w, r, service.NewValidationError("task", err.Error()))
		return
	}

	logger.Info("HTTP: Вызов доски для создания задачи")
	outcome := s.Board.Create(r.Context(), fields)
	if !outcome.Ok() {
		handleError(w, r, outcome.Err)
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", outcome.TaskID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithData(w, http.StatusCreated, dto.FromTask(*outcome.Task, s.Now()))
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.Tasks.HealthCheck(r.Context()); err != nil {
		logger.Warn("HTTP: Хранилище недоступно", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("error", err.Error()))
		return
	}

	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	found, err := s.Tasks.GetTaskByID(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", found.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, dto.FromTask(*found, s.Now()))
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var request dto.UpdateTaskRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}

	options, err := updateOptions(request)
	if err != nil {
		handleError(w, r, err)
		return
	}

	outcome := s.Board.Edit(r.Context(), id, options...)
	if !outcome.Ok() {
		handleError(w, r, outcome.Err)
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, dto.FromTask(*outcome.Task, s.Now()))
}

func (s *TaskHandler) ToggleTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	outcome := s.Board.Toggle(r.Context(), id)
	if !outcome.Ok() {
		handleError(w, r, outcome.Err)
		return
	}

	logger.Info("HTTP_OUT: Статус задачи изменён",
		zap.String("task_id", id),
		zap.Bool("completed", outcome.Task.Completed),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, dto.FromTask(*outcome.Task, s.Now()))
}

// DeleteTaskByID требует ?confirm=true, иначе 428
func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var gate board.Confirmer
	if strings.EqualFold(r.URL.Query().Get("confirm"), "true") {
		gate = board.Always
	}

	outcome := s.Board.Delete(r.Context(), id, gate)
	if !outcome.Ok() {
		handleError(w, r, outcome.Err)
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

// SuggestTask отвечает 204, если подсказку получить не удалось
func (s *TaskHandler) SuggestTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	suggestion, ok := assist.Suggest(r.Context(), s.Parser, request.Text)
	if !ok {
		logger.Info("HTTP_OUT: Подсказка не получена", zap.Duration("ms", time.Since(start)))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	responseWithData(w, http.StatusOK, dto.FromSuggestion(suggestion))
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return "", false
	}
	return id, true
}

func updateOptions(request dto.UpdateTaskRequest) ([]task.TaskOption, error) {
	var options []task.TaskOption

	if request.Version != nil {
		options = append(options, task.WithVersion(*request.Version))
	}
	if request.Title != nil {
		options = append(options, task.WithTitle(*request.Title))
	}
	if request.Description != nil {
		options = append(options, task.WithDescription(*request.Description))
	}
	if request.Priority != nil {
		p, err := task.ParsePriority(*request.Priority)
		if err != nil {
			return nil, service.NewValidationError("priority", err.Error())
		}
		options = append(options, task.WithPriority(p))
	}
	if request.DueDate != nil {
		due, err := task.ParseDueDate(*request.DueDate)
		if err != nil {
			return nil, service.NewValidationError("dueDate", err.Error())
		}
		options = append(options, task.WithDueDate(due))
	}
	if request.Completed != nil {
		options = append(options, task.WithCompleted(*request.Completed))
	}

	return options, nil
}
