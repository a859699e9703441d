package metrics

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/logging"
)

func TestRegisterLogFileExposesSizeAndRotations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rf, err := logging.NewRotatingFile(path, logging.WithMaxSize(1<<20))
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("hello"))
	require.NoError(t, err)

	r := New()
	r.RegisterLogFile(rf)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "qlippy_log_file_size_bytes 5")
	assert.Contains(t, body, "qlippy_log_file_rotations_total 0")
}
