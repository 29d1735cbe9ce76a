// Package logging provides a chainable structured-field builder on top of
// zap, mirroring the field-builder pattern used throughout hazengine's
// calculator, store, and task-manager packages.
package logging

import "time"

// Fields is a chainable set of structured log fields.
type Fields map[string]interface{}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// DatabaseFields builds the standard field set for a store operation.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds the standard field set for an HTTP exchange.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields builds the standard field set for a workflow operation.
func WorkflowFields(operation, workflowID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowID)
}

// HazardFields builds the standard field set for a hazard-calculator step.
func HazardFields(operation, trtModelID string) Fields {
	return NewFields().Component("hazard").Operation(operation).Resource("trt_model", trtModelID)
}

// TaskFields builds the standard field set for a task-manager step.
func TaskFields(operation, taskName string) Fields {
	return NewFields().Component("taskmgr").Operation(operation).Resource("task", taskName)
}

// StoreFields builds the standard field set for a store key access.
func StoreFields(operation, key string) Fields {
	return NewFields().Component("store").Operation(operation).Resource("key", key)
}

// RiskFields builds the standard field set for a risk-calculator step.
func RiskFields(operation, lossType string) Fields {
	return NewFields().Component("risk").Operation(operation).Resource("loss_type", lossType)
}

// MetricsFields builds the standard field set for a recorded metric.
func MetricsFields(operation, metricName string, value float64) Fields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}

// PerformanceFields builds the standard field set for a timed operation's
// outcome.
func PerformanceFields(operation string, duration time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).Duration(duration).Custom("success", success)
}
