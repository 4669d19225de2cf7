package transport

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerToFunc func(w io.Writer) (int64, error)

func (f writerToFunc) WriteTo(w io.Writer) (int64, error) { return f(w) }

func TestEnvelopeBytes(t *testing.T) {
	t.Parallel()

	env := &Envelope{Message: strings.NewReader("Subject: hi\r\n\r\nbody")}
	data, err := env.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "Subject: hi\r\n\r\nbody", string(data))
}

func TestEnvelopeBytes_Errors(t *testing.T) {
	t.Parallel()

	_, err := (&Envelope{}).Bytes()
	assert.Error(t, err)

	boom := errors.New("boom")
	env := &Envelope{Message: writerToFunc(func(io.Writer) (int64, error) { return 0, boom })}
	_, err = env.Bytes()
	assert.ErrorIs(t, err, boom)
}
