package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	conf := &core.Config{Env: "TEST", Debug: true, AppName: "Perception", Build: "test"}
	logger := NewRollbarLogger(log.New(&buf, "", 0), conf)

	usr := user.User{ID: "1", Username: "alice", Email: "alice@test.cd", Role: user.RoleStudent}
	logger.Error("rendering dashboard", errors.New("boom"), usr, map[string]interface{}{"path": "/dashboard"})

	out := buf.String()
	assert.Contains(t, out, "[ERROR] rendering dashboard")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "/dashboard")
	assert.Contains(t, out, "alice", "args are printed as given")

	args := logger.prepare("msg", []interface{}{usr, errors.New("boom")})
	assert.Len(t, args, 2, "the user is reported as the rollbar person, not as an arg")
}
