package smtp

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConn_ReadTimesOutPerOperation(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	conn := newSessionConn(client, 50*time.Millisecond)
	defer conn.Close()

	go func() {
		buf := make([]byte, 1)
		for i := 0; i < 3; i++ {
			time.Sleep(30 * time.Millisecond)
			_, _ = server.Write([]byte{'x'})
		}
		_, _ = server.Read(buf)
	}()

	// Three reads of 30ms each outlast the timeout together but not alone.
	buf := make([]byte, 1)
	for i := 0; i < 3; i++ {
		_, err := conn.Read(buf)
		require.NoError(t, err, "read %d", i)
	}

	_, err := conn.Read(buf)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestSessionConn_IgnoresAbsoluteDeadline(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	conn := newSessionConn(client, time.Second)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(-time.Second)))

	go func() {
		buf := make([]byte, 5)
		_, _ = io.ReadFull(server, buf)
	}()

	_, err := conn.Write([]byte("hello"))
	assert.NoError(t, err)
}

func TestSessionConn_ClosesWhenIdle(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	_ = newSessionConn(client, 50*time.Millisecond)

	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := server.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
