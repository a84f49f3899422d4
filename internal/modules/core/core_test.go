package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func Test_Error_Is_Matches_By_Code(t *testing.T) {
	// Arrange
	err := fmt.Errorf("join: %w", Errorf(CodeDuplicateMembership, "address %s already joined", "alice"))

	// Assert
	require.ErrorIs(t, err, ErrDuplicateMembership)
	require.NotErrorIs(t, err, ErrCapacityExceeded)
}

func Test_CommandErrorFrom_Maps_Code_To_Status(t *testing.T) {
	cases := map[Code]int{
		CodeRecordNotFound:       http.StatusNotFound,
		CodeUnauthorizedCaller:   http.StatusForbidden,
		CodeStaleVersion:         http.StatusConflict,
		CodeInvalidDepositAmount: http.StatusUnprocessableEntity,
		CodeInvariantViolation:   http.StatusInternalServerError,
		CodeInvalidArgument:      http.StatusBadRequest,
	}

	for code, status := range cases {
		commandErr := CommandErrorFrom(Errorf(code, "failed"))

		require.Equal(t, status, commandErr.StatusCode, code)
		require.NotNil(t, commandErr.Reason)
		require.Equal(t, string(code), *commandErr.Reason)
	}
}

func Test_CommandErrorFrom_Returns_500_When_Error_Is_Unclassified(t *testing.T) {
	// Act
	commandErr := CommandErrorFrom(errors.New("boom"))

	// Assert
	require.Equal(t, http.StatusInternalServerError, commandErr.StatusCode)
	require.Nil(t, commandErr.Reason)
}

func Test_CommandErrorFrom_Keeps_Existing_CommandError(t *testing.T) {
	// Arrange
	original := NewCommandError(http.StatusBadRequest, errors.New("bad"), WithReason("validation"))

	// Act
	commandErr := CommandErrorFrom(fmt.Errorf("wrapped: %w", original))

	// Assert
	require.Equal(t, http.StatusBadRequest, commandErr.StatusCode)
	require.Equal(t, "validation", *commandErr.Reason)
}

func Test_WriteCommandError_Writes_Json_Body(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	// Act
	WriteCommandError(w, r, Errorf(CodeEntryLocked, "session is closed for joins"))

	// Assert
	require.Equal(t, http.StatusConflict, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, string(CodeEntryLocked), body["reason"])
	require.Contains(t, body["message"], "session is closed for joins")
}

func Test_CallerHTTPMiddleware_Rejects_Request_Without_Caller(t *testing.T) {
	// Arrange
	called := false
	h := CallerHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	// Act
	h.ServeHTTP(w, r)

	// Assert
	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func Test_CallerHTTPMiddleware_Puts_Caller_On_Context(t *testing.T) {
	// Arrange
	var caller Address
	h := CallerHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = Caller(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(CallerHeader, "alice")

	// Act
	h.ServeHTTP(w, r)

	// Assert
	require.Equal(t, Address("alice"), caller)
}

func Test_RequestMetricsBehavior_Counts_Outcomes(t *testing.T) {
	// Arrange
	registry := prometheus.NewRegistry()
	b, err := NewRequestMetricsBehavior(registry)
	require.NoError(t, err)

	failing := func(ctx context.Context, request interface{}) (interface{}, error) {
		return nil, ErrStaleVersion
	}
	succeeding := func(ctx context.Context, request interface{}) (interface{}, error) {
		return Unit{}, nil
	}

	// Act
	_, _ = b.Handle(context.Background(), Unit{}, failing)
	_, _ = b.Handle(context.Background(), Unit{}, succeeding)
	_, _ = b.Handle(context.Background(), Unit{}, succeeding)

	// Assert
	require.Equal(t, float64(1), testutil.ToFloat64(b.requests.WithLabelValues("core.Unit", string(CodeStaleVersion))))
	require.Equal(t, float64(2), testutil.ToFloat64(b.requests.WithLabelValues("core.Unit", "ok")))
}

func Test_Map_Preserves_Order(t *testing.T) {
	// Act
	addresses := Map([]string{"alice", "bob"}, func(s string) Address { return Address(s) })

	// Assert
	require.Equal(t, []Address{"alice", "bob"}, addresses)
}
