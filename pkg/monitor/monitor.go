package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus health of one component
type HealthStatus struct {
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Message     string    `json:"message,omitempty"`
}

// AlertFunc called when a component moves to a non-healthy status
type AlertFunc func(component, status, message string)

// Monitor component health registry
type Monitor struct {
	components map[string]*HealthStatus
	mutex      sync.RWMutex
	alertFunc  AlertFunc
	now        func() time.Time
}

// NewMonitor creates a monitor; a nil alertFunc disables alerts
func NewMonitor(alertFunc AlertFunc) *Monitor {
	return &Monitor{
		components: make(map[string]*HealthStatus),
		alertFunc:  alertFunc,
		now:        time.Now,
	}
}

// LogAlerts alert function writing to the logger
func LogAlerts(logger arbor.ILogger) AlertFunc {
	return func(component, status, message string) {
		logger.Warn().Str("component", component).Str("status", status).Msg(message)
	}
}

// RegisterComponent adds a component in unknown state
func (m *Monitor) RegisterComponent(component string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.components[component] = &HealthStatus{
		Component:   component,
		Status:      StatusUnknown,
		LastChecked: m.now(),
	}
}

// UpdateStatus records a component status
func (m *Monitor) UpdateStatus(component, status, message string) {
	m.mutex.Lock()
	current, exists := m.components[component]
	if !exists {
		current = &HealthStatus{Component: component}
		m.components[component] = current
	}

	oldStatus := current.Status
	current.Status = status
	current.LastChecked = m.now()
	current.Message = message
	alert := oldStatus != status && status != StatusHealthy && m.alertFunc != nil
	m.mutex.Unlock()

	if alert {
		m.alertFunc(component, status, message)
	}
}

// GetStatus copy of a component status, nil if unknown
func (m *Monitor) GetStatus(component string) *HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if status, exists := m.components[component]; exists {
		s := *status
		return &s
	}
	return nil
}

// GetAllStatus every component sorted by name
func (m *Monitor) GetAllStatus() []HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statuses := make([]HealthStatus, 0, len(m.components))
	for _, status := range m.components {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Component < statuses[j].Component
	})
	return statuses
}

// Overall worst known status across components
func (m *Monitor) Overall() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	overall := StatusHealthy
	for _, status := range m.components {
		switch status.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}
