package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAccessLog_IncludesRequestIDStatusAndSubject(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	t.Cleanup(restore)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSubject(r.Context(), "uid-123")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	handler := RequestContextMiddleware(AccessLogMiddleware("test", inner))

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("X-Request-Id", "req-fixed")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "req-fixed", rr.Header().Get("X-Request-Id"))

	var event map[string]any
	line := strings.TrimSpace(buf.String())
	require.NoError(t, json.Unmarshal([]byte(line), &event), "log line: %s", line)
	require.Equal(t, "http_access", event["msg"])
	require.Equal(t, "req-fixed", event["request_id"])
	require.Equal(t, "uid-123", event["uid"])
	require.EqualValues(t, http.StatusTeapot, event["status"])
	require.EqualValues(t, len("short and stout"), event["resp_bytes"])
}

func TestRequestContext_GeneratesRequestID(t *testing.T) {
	t.Parallel()
	var seen string
	handler := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context()).RequestID
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.True(t, strings.HasPrefix(seen, "req-"), "generated id %q", seen)
	require.Equal(t, seen, rr.Header().Get("X-Request-Id"))
}

func TestSetSubject_NoSlotIsNoop(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	SetSubject(req.Context(), "uid")
	require.Empty(t, SubjectFromContext(req.Context()))
}

func testExtractTraceID_ValidTraceparent(t *rapid.T) {
	traceID := rapid.StringMatching(`[0-9a-f]{32}`).Filter(func(s string) bool {
		return s != strings.Repeat("0", 32)
	}).Draw(t, "trace_id")
	parentID := rapid.StringMatching(`[0-9a-f]{16}`).Draw(t, "parent_id")

	got := extractTraceID("00-" + traceID + "-" + parentID + "-01")
	if got != traceID {
		t.Fatalf("extractTraceID mismatch: got=%q want=%q", got, traceID)
	}
}

func TestExtractTraceID_ValidTraceparent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExtractTraceID_ValidTraceparent)
}

func TestExtractTraceID_RejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"garbage",
		"00-" + strings.Repeat("0", 32) + "-0123456789abcdef-01",
		"00-xyz-0123456789abcdef-01",
		"00-" + strings.Repeat("g", 32) + "-0123456789abcdef-01",
	} {
		require.Empty(t, extractTraceID(raw), "traceparent %q", raw)
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	require.Equal(t, slog.LevelWarn, levelFromEnv())

	t.Setenv("LOG_LEVEL", "nonsense")
	require.Equal(t, slog.LevelInfo, levelFromEnv())

	t.Setenv("LOG_LEVEL", "")
	require.Equal(t, slog.LevelInfo, levelFromEnv())
}
