package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestOperationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name: "full error",
			err: &OperationError{
				Operation: "filter sources by tile distance",
				Component: "srcmgr",
				Resource:  "trt-0",
				Cause:     fmt.Errorf("tile bounds unavailable"),
			},
			expected: "failed to filter sources by tile distance, component: srcmgr, resource: trt-0, cause: tile bounds unavailable",
		},
		{
			name: "minimal error",
			err: &OperationError{
				Operation: "parse job.ini",
				Cause:     fmt.Errorf("invalid key"),
			},
			expected: "failed to parse job.ini, cause: invalid key",
		},
		{
			name: "no cause",
			err: &OperationError{
				Operation: "validate realization weights",
				Component: "logictree",
			},
			expected: "failed to validate realization weights, component: logictree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("OperationError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &OperationError{Operation: "test", Cause: cause}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := &OperationError{Operation: "test"}
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() with no cause = %v, want nil", unwrapped)
	}
}

func TestFailedTo(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		cause    error
		expected string
	}{
		{
			name:     "with cause",
			action:   "open datastore",
			cause:    fmt.Errorf("permission denied"),
			expected: "failed to open datastore: permission denied",
		},
		{
			name:     "without cause",
			action:   "start worker pool",
			cause:    nil,
			expected: "failed to start worker pool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FailedTo(tt.action, tt.cause)
			if err.Error() != tt.expected {
				t.Errorf("FailedTo() = %q, want %q", err.Error(), tt.expected)
			}
		})
	}
}

func TestFailedToWithDetails(t *testing.T) {
	cause := fmt.Errorf("timeout")
	err := FailedToWithDetails("compute hazard curve", "hazard", "trt-0", cause)

	opErr, ok := err.(*OperationError)
	if !ok {
		t.Fatalf("FailedToWithDetails() should return *OperationError, got %T", err)
	}
	if opErr.Operation != "compute hazard curve" {
		t.Errorf("Operation = %q", opErr.Operation)
	}
	if opErr.Component != "hazard" {
		t.Errorf("Component = %q", opErr.Component)
	}
	if opErr.Resource != "trt-0" {
		t.Errorf("Resource = %q", opErr.Resource)
	}
	if opErr.Cause != cause {
		t.Errorf("Cause = %v, want %v", opErr.Cause, cause)
	}
}

func TestWrapf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		format   string
		args     []interface{}
		expected string
	}{
		{
			name:     "wrap with message",
			err:      fmt.Errorf("original error"),
			format:   "additional context: %s",
			args:     []interface{}{"test"},
			expected: "additional context: test: original error",
		},
		{
			name:     "nil error",
			err:      nil,
			format:   "should not wrap",
			args:     nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrapf(tt.err, tt.format, tt.args...)
			if tt.err == nil {
				if result != nil {
					t.Errorf("Wrapf(nil, ...) = %v, want nil", result)
				}
				return
			}
			if result.Error() != tt.expected {
				t.Errorf("Wrapf() = %q, want %q", result.Error(), tt.expected)
			}
		})
	}
}

func TestDatabaseError(t *testing.T) {
	err := DatabaseError("write poes", fmt.Errorf("disk full"))
	if !strings.Contains(err.Error(), "failed to write poes") {
		t.Errorf("DatabaseError should contain operation, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("DatabaseError should contain component, got %q", err.Error())
	}
}

func TestNetworkError(t *testing.T) {
	err := NetworkError("connect", "https://api.example.com", fmt.Errorf("timeout"))
	if !strings.Contains(err.Error(), "failed to connect") {
		t.Errorf("NetworkError should contain operation, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "https://api.example.com") {
		t.Errorf("NetworkError should contain endpoint, got %q", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("maximum_distance", "must be positive")
	expected := "validation failed for field maximum_distance: must be positive"
	if err.Error() != expected {
		t.Errorf("ValidationError() = %q, want %q", err.Error(), expected)
	}
}

func TestConfigurationError(t *testing.T) {
	err := ConfigurationError("concurrent_tasks", "value is required")
	expected := "configuration error for setting concurrent_tasks: value is required"
	if err.Error() != expected {
		t.Errorf("ConfigurationError() = %q, want %q", err.Error(), expected)
	}
}

func TestTimeoutError(t *testing.T) {
	err := TimeoutError("waiting for task reduction", "30s")
	expected := "timeout while waiting for task reduction after 30s"
	if err.Error() != expected {
		t.Errorf("TimeoutError() = %q, want %q", err.Error(), expected)
	}
}

func TestParseError(t *testing.T) {
	err := ParseError("gsim_logic_tree.xml", "NRML", fmt.Errorf("unexpected element"))
	if !strings.Contains(err.Error(), "parse gsim_logic_tree.xml as NRML") {
		t.Errorf("ParseError should contain parse operation, got %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "timeout error", err: fmt.Errorf("request timeout"), expected: true},
		{name: "connection refused", err: fmt.Errorf("connection refused by worker"), expected: true},
		{name: "unavailable", err: fmt.Errorf("service unavailable"), expected: true},
		{name: "permanent error", err: fmt.Errorf("invalid syntax"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestChain(t *testing.T) {
	tests := []struct {
		name     string
		errors   []error
		expected string
		isNil    bool
	}{
		{name: "no errors", errors: []error{nil, nil}, isNil: true},
		{name: "single error", errors: []error{fmt.Errorf("single error"), nil}, expected: "single error"},
		{
			name:     "multiple errors",
			errors:   []error{fmt.Errorf("error 1"), fmt.Errorf("error 2"), nil, fmt.Errorf("error 3")},
			expected: "multiple errors: error 1; error 2; error 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Chain(tt.errors...)
			if tt.isNil {
				if result != nil {
					t.Errorf("Chain() = %v, want nil", result)
				}
				return
			}
			if result.Error() != tt.expected {
				t.Errorf("Chain() = %q, want %q", result.Error(), tt.expected)
			}
		})
	}
}

func TestKindedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"config", NewConfigError("maximum_distance", fmt.Errorf("missing default")), KindConfigError},
		{"parse", NewParseError("source_model.xml", 42, fmt.Errorf("bad tag")), KindParseError},
		{"duplicate source", NewDuplicateSourceID("sm1", "src-1"), KindDuplicateSourceID},
		{"asset site", NewAssetSiteAssociationError("asset-1", 10.0), KindAssetSiteAssociationError},
		{"imt mismatch", NewIMTMismatch([]string{"SA(0.2)"}, []string{"PGA"}), KindIMTMismatch},
		{"invalid hazard", NewInvalidHazard("asset-1"), KindInvalidHazard},
		{"task error", NewTaskError("classical-block-3", "traceback..."), KindTaskError},
		{"oom", NewOutOfMemory("worker-7", 92.5), KindOutOfMemory},
		{"not found", NewNotFound("poes/0001"), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ke, ok := tt.err.(*KindedError)
			if !ok {
				t.Fatalf("expected *KindedError, got %T", tt.err)
			}
			if ke.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", ke.Kind, tt.kind)
			}
			if ke.Error() == "" {
				t.Error("Error() should not be empty")
			}
		})
	}
}
