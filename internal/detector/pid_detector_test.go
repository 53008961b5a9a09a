//go:build !windows

package detector

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDDetectorSelf(t *testing.T) {
	d := PIDDetector{PID: os.Getpid()}
	ok, err := d.Alive()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPIDDetectorInvalid(t *testing.T) {
	for _, pid := range []int{0, -1} {
		d := PIDDetector{PID: pid}
		ok, err := d.Alive()
		require.NoError(t, err)
		assert.False(t, ok, "pid %d must not be alive", pid)
	}
}

func TestPIDDetectorExitedChild(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	d := PIDDetector{PID: pid}
	ok, err := d.Alive()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "pid:42", PIDDetector{PID: 42}.Describe())
}
