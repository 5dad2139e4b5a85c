package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("relation vendors does not exist"), false},
		{"marked", Transient(errors.New("anything")), true},
		{"marked and wrapped", eris.Wrap(Transient(errors.New("x")), "store: open"), true},
		{"econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"econnreset", syscall.ECONNRESET, true},
		{"net timeout", timeoutErr{}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite busy", errors.New("SQLITE_BUSY: database is locked"), true},
		{"starting up", errors.New("FATAL: the database system is starting up"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	assert.NoError(t, Transient(nil))

	base := errors.New("refused")
	err := Transient(base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "refused", err.Error())
}
