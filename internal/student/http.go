package student

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"student-registry/internal/apperr"
	"student-registry/internal/httputil"
	"student-registry/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/students", func(r chi.Router) {
		r.Post("/", h.CreateStudent)
		r.Post("/batch", h.CreateStudentsBatch)
		r.Get("/", h.GetAllStudents)
		r.Get("/page", h.GetStudentsPage)
		r.Get("/count", h.GetStudentCount)
		r.Get("/count/class/{className}", h.GetStudentCountByClass)
		r.Get("/count/major/{major}", h.GetStudentCountByMajor)
		r.Get("/email-exists", h.CheckEmailExists)
		r.Get("/email/{email}", h.GetStudentByEmail)
		r.Get("/class/{className}", h.GetStudentsByClass)
		r.Get("/class/{className}/roster", h.GetClassRoster)
		r.Get("/major/{major}", h.GetStudentsByMajor)
		r.Get("/major/{major}/oldest", h.GetOldestStudentsByMajor)
		r.Get("/gender/{gender}", h.GetStudentsByGender)
		r.Get("/age-range", h.GetStudentsByAgeRange)
		r.Get("/search", h.SearchStudents)
		r.Get("/stats/majors", h.GetMajorStats)
		r.Get("/created-range", h.GetStudentsCreatedInRange)
		r.Get("/{id}", h.GetStudent)
		r.Put("/{id}", h.UpdateStudent)
		r.Delete("/batch", h.DeleteStudentsBatch)
		r.Delete("/{id}", h.DeleteStudent)
	})
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var student Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("invalid request body"))
		return
	}

	h.logger.InfoContext(r.Context(), "creating student", "email", student.Email)
	created, err := h.service.CreateStudent(r.Context(), &student)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordStudentCreated(r.Context())

	httputil.RespondWithSuccess(w, http.StatusCreated, "student created successfully", created)
}

func (h *Handler) CreateStudentsBatch(w http.ResponseWriter, r *http.Request) {
	var students []Student
	if err := json.NewDecoder(r.Body).Decode(&students); err != nil {
		httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("invalid request body"))
		return
	}

	h.logger.InfoContext(r.Context(), "creating students batch", "count", len(students))
	created, err := h.service.CreateStudents(r.Context(), students)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	for range created {
		h.metrics.RecordStudentCreated(r.Context())
	}

	message := fmt.Sprintf("batch create succeeded, %d students added", len(created))
	httputil.RespondWithSuccess(w, http.StatusCreated, message, created)
}

func (h *Handler) GetAllStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.GetAllStudents(r.Context())
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "students retrieved successfully", students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	student, err := h.service.GetStudentByID(r.Context(), id)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordStudentViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "student retrieved successfully", student)
}

func (h *Handler) GetStudentsPage(w http.ResponseWriter, r *http.Request) {
	req := PageRequest{
		Page:          0,
		Size:          10,
		SortBy:        "id",
		SortDirection: "ASC",
	}

	var err error
	if v := r.URL.Query().Get("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("invalid page %q", v))
			return
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		if req.Size, err = strconv.Atoi(v); err != nil {
			httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("invalid size %q", v))
			return
		}
	}
	if v := r.URL.Query().Get("sortBy"); v != "" {
		req.SortBy = v
	}
	if v := r.URL.Query().Get("sortDirection"); v != "" {
		req.SortDirection = v
	}

	page, err := h.service.GetStudentsPage(r.Context(), req)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "paged query succeeded", page)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("invalid request body"))
		return
	}

	h.logger.InfoContext(r.Context(), "updating student", "id", id)
	updated, err := h.service.UpdateStudent(r.Context(), id, req)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordStudentUpdated(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "student updated successfully", updated)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "deleting student", "id", id)
	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordStudentDeleted(r.Context(), 1)

	httputil.RespondWithSuccess(w, http.StatusOK, "student deleted successfully", nil)
}

func (h *Handler) DeleteStudentsBatch(w http.ResponseWriter, r *http.Request) {
	var ids []int
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("invalid request body"))
		return
	}

	h.logger.InfoContext(r.Context(), "deleting students batch", "count", len(ids))
	deleted, err := h.service.DeleteStudents(r.Context(), ids)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordStudentDeleted(r.Context(), int64(deleted))

	message := fmt.Sprintf("batch delete succeeded, %d students removed", deleted)
	httputil.RespondWithSuccess(w, http.StatusOK, message, map[string]int{"deletedCount": deleted})
}

func (h *Handler) GetStudentByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	student, err := h.service.GetStudentByEmail(r.Context(), email)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordStudentViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "student found by email", student)
}

func (h *Handler) GetStudentsByClass(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")

	students, err := h.service.GetStudentsByClassName(r.Context(), className)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	message := fmt.Sprintf("found %d students in class %s", len(students), className)
	httputil.RespondWithSuccess(w, http.StatusOK, message, students)
}

func (h *Handler) GetClassRoster(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")

	students, err := h.service.GetClassRoster(r.Context(), className)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "class roster retrieved successfully", students)
}

func (h *Handler) GetStudentsByMajor(w http.ResponseWriter, r *http.Request) {
	major := chi.URLParam(r, "major")

	students, err := h.service.GetStudentsByMajor(r.Context(), major)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	message := fmt.Sprintf("found %d students in major %s", len(students), major)
	httputil.RespondWithSuccess(w, http.StatusOK, message, students)
}

func (h *Handler) GetOldestStudentsByMajor(w http.ResponseWriter, r *http.Request) {
	major := chi.URLParam(r, "major")

	students, err := h.service.GetOldestStudentsByMajor(r.Context(), major)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "oldest students retrieved successfully", students)
}

func (h *Handler) GetStudentsByGender(w http.ResponseWriter, r *http.Request) {
	gender, err := ParseGender(chi.URLParam(r, "gender"))
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	students, err := h.service.GetStudentsByGender(r.Context(), gender)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	message := fmt.Sprintf("found %d %s students", len(students), gender)
	httputil.RespondWithSuccess(w, http.StatusOK, message, students)
}

func (h *Handler) GetStudentsByAgeRange(w http.ResponseWriter, r *http.Request) {
	minAge, err := requiredIntParam(r, "minAge")
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}
	maxAge, err := requiredIntParam(r, "maxAge")
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	students, err := h.service.GetStudentsByAgeRange(r.Context(), minAge, maxAge)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	message := fmt.Sprintf("found %d students aged %d-%d", len(students), minAge, maxAge)
	httputil.RespondWithSuccess(w, http.StatusOK, message, students)
}

func (h *Handler) SearchStudents(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("keyword is required"))
		return
	}

	students, err := h.service.SearchStudentsByKeyword(r.Context(), keyword)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordSearch(r.Context())

	message := fmt.Sprintf("search succeeded, %d students found", len(students))
	httputil.RespondWithSuccess(w, http.StatusOK, message, students)
}

func (h *Handler) GetMajorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetMajorStats(r.Context())
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "major statistics retrieved successfully", stats)
}

func (h *Handler) GetStudentsCreatedInRange(w http.ResponseWriter, r *http.Request) {
	start, err := requiredDateParam(r, "start")
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}
	end, err := requiredDateParam(r, "end")
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}
	// end date is inclusive
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	students, err := h.service.GetStudentsCreatedBetween(r.Context(), start, end)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	h.metrics.RecordListViewed(r.Context())

	httputil.RespondWithSuccess(w, http.StatusOK, "students retrieved successfully", students)
}

func (h *Handler) GetStudentCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountStudents(r.Context())
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	httputil.RespondWithSuccess(w, http.StatusOK, "student count retrieved successfully", count)
}

func (h *Handler) GetStudentCountByClass(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")

	count, err := h.service.CountStudentsByClassName(r.Context(), className)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	message := fmt.Sprintf("class %s has %d students", className, count)
	httputil.RespondWithSuccess(w, http.StatusOK, message, count)
}

func (h *Handler) GetStudentCountByMajor(w http.ResponseWriter, r *http.Request) {
	major := chi.URLParam(r, "major")

	count, err := h.service.CountStudentsByMajor(r.Context(), major)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	message := fmt.Sprintf("major %s has %d students", major, count)
	httputil.RespondWithSuccess(w, http.StatusOK, message, count)
}

func (h *Handler) CheckEmailExists(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httputil.RespondWithAppError(w, h.logger, apperr.BadArgument("email is required"))
		return
	}

	exists, err := h.service.EmailExists(r.Context(), email)
	if err != nil {
		httputil.RespondWithAppError(w, h.logger, err)
		return
	}

	httputil.RespondWithSuccess(w, http.StatusOK, "email existence checked", exists)
}

func parseID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, apperr.BadArgument("invalid student id %q", raw)
	}
	return id, nil
}

func requiredIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperr.BadArgument("%s is required", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadArgument("invalid %s %q", name, raw)
	}
	return value, nil
}

func requiredDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperr.BadArgument("%s is required", name)
	}
	value, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.BadArgument("invalid %s %q, expected yyyy-mm-dd", name, raw)
	}
	return value, nil
}
