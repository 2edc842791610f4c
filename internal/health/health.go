package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Status — состояние компонента или сервиса в целом.
type Status string

const (
	// StatusHealthy — компонент работает в полном объёме.
	StatusHealthy Status = "healthy"
	// StatusDegraded — компонент работает в ограниченном режиме;
	// сервис остаётся ready.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy — компонент неработоспособен, сервис not ready.
	StatusUnhealthy Status = "unhealthy"
)

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — агрегированный ответ /health.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker оценивает состояние одного компонента.
type Checker interface {
	Check() Check
}

// StatusFunc адаптирует функцию до Checker для компонентов, которые сами
// знают свой статус, включая degraded.
type StatusFunc func() Check

func (f StatusFunc) Check() Check { return f() }

// Handler прогоняет зарегистрированные проверки и отвечает на health-запросы.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startTime time.Time
}

// NewHandler создаёт handler без проверок; компоненты регистрируются по
// мере сборки зависимостей.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterChecker добавляет проверку компонента под уникальным именем.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// runChecks выполняет все проверки на копии реестра и возвращает
// результаты вместе с худшим из статусов.
func (h *Handler) runChecks() (map[string]Check, Status) {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	checks := make(map[string]Check, len(checkers))
	overall := StatusHealthy
	for name, checker := range checkers {
		check := checker.Check()
		checks[name] = check

		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return checks, overall
}

// ServeHTTP отдаёт полный отчёт по компонентам; 503 только при unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks, overall := h.runChecks()

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        overall,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// ReadinessHandler — readiness probe: degraded не мешает принимать трафик,
// unhealthy выводит инстанс из балансировки.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if _, overall := h.runChecks(); overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler — liveness probe, всегда 200: процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// SimpleChecker — бинарная проверка поверх функции: ошибка означает
// unhealthy, иначе healthy.
type SimpleChecker struct {
	name    string
	checkFn func() error
}

// NewSimpleChecker создаёт проверку компонента из функции.
func NewSimpleChecker(name string, checkFn func() error) *SimpleChecker {
	return &SimpleChecker{name: name, checkFn: checkFn}
}

func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.checkFn()
	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// BacklogChecker следит за очередью отложенной работы: очередь в пределах
// порога — healthy, выше — degraded (работа копится, но сервис жив),
// недоступная очередь — unhealthy.
type BacklogChecker struct {
	name      string
	threshold int
	pendingFn func() (int, error)
}

// NewBacklogChecker создаёт проверку backlog. pendingFn возвращает текущий
// размер очереди.
func NewBacklogChecker(name string, threshold int, pendingFn func() (int, error)) *BacklogChecker {
	return &BacklogChecker{name: name, threshold: threshold, pendingFn: pendingFn}
}

func (c *BacklogChecker) Check() Check {
	start := time.Now()
	pending, err := c.pendingFn()
	check := Check{
		Name:       c.name,
		DurationMs: time.Since(start).Milliseconds(),
	}

	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	case pending > c.threshold:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("backlog %d exceeds threshold %d", pending, c.threshold)
	default:
		check.Status = StatusHealthy
		check.Message = fmt.Sprintf("backlog %d", pending)
	}
	return check
}

var (
	_ Checker = (*SimpleChecker)(nil)
	_ Checker = (*BacklogChecker)(nil)
	_ Checker = (StatusFunc)(nil)
)
