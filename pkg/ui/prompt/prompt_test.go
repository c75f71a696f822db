package prompt

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimedConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "no overrides default", input: "no\n", def: true, want: false},
		{name: "empty keeps default", input: "\n", def: true, want: true},
		{name: "garbage keeps default", input: "maybe\n", want: false},
		{name: "eof keeps default", input: "", def: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := TimedConfirm(context.Background(), strings.NewReader(tt.input), &out, "Reboot now?", time.Second, tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Reboot now?")
		})
	}
}

func TestTimedConfirm_Timeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	start := time.Now()
	got, err := TimedConfirm(context.Background(), r, &out, "Reboot now?", 20*time.Millisecond, false)

	require.NoError(t, err)
	assert.False(t, got)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, out.String(), "[y/N]")
}

func TestTimedConfirm_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	got, err := TimedConfirm(ctx, r, &out, "Reboot now?", time.Hour, true)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, got)
}

func TestTimedConfirm_CancelReleasesFileReader(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()
	ctx, cancel := context.WithCancel(context.Background())

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := TimedConfirm(ctx, r, &out, "Reboot now?", time.Hour, false)
		assert.ErrorIs(t, err, context.Canceled)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("TimedConfirm did not return after cancel")
	}
}

func TestScripted(t *testing.T) {
	s := &Scripted{Selects: []string{"amd"}, Confirms: []bool{true}}

	answer, err := s.Select("CPU?", []string{"amd", "intel"}, "intel")
	require.NoError(t, err)
	assert.Equal(t, "amd", answer)

	_, err = s.Select("GPU?", nil, "")
	assert.Error(t, err)

	steps, err := s.MultiSelect("Steps?", []string{"coding"})
	require.NoError(t, err)
	assert.Empty(t, steps)

	yes, err := s.Confirm("Laptop?", false)
	require.NoError(t, err)
	assert.True(t, yes)

	def, err := s.Confirm("Again?", true)
	require.NoError(t, err)
	assert.True(t, def)

	assert.Equal(t, []string{"CPU?", "GPU?", "Steps?", "Laptop?", "Again?"}, s.Asked)
}
