package application

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithConfig_InstallsAndRestoresOnSuccess(t *testing.T) {
	before := Active()

	var observed ProcessConfig
	err := WithConfig(ProcessConfig{Temperature: 0.1, MaxTokens: 256, Timeout: time.Second}, func() error {
		observed = Active()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0.1, observed.Temperature)
	assert.Equal(t, 256, observed.MaxTokens)
	assert.Equal(t, before, Active(), "prior config restored after success")
}

func TestWithConfig_RestoresOnError(t *testing.T) {
	before := Active()

	err := WithConfig(ProcessConfig{Temperature: 0.9}, func() error {
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, before, Active(), "prior config restored even when fn errors")
}

func TestWithConfig_RestoresOnPanic(t *testing.T) {
	before := Active()

	func() {
		defer func() { _ = recover() }()
		_ = WithConfig(ProcessConfig{Temperature: 0.5}, func() error {
			panic("boom")
		})
	}()

	assert.Equal(t, before, Active(), "prior config restored even when fn panics")
}

func TestWithConfig_Nesting(t *testing.T) {
	before := Active()

	_ = WithConfig(ProcessConfig{Temperature: 0.2}, func() error {
		outer := Active()
		_ = WithConfig(ProcessConfig{Temperature: 0.8}, func() error {
			assert.Equal(t, 0.8, Active().Temperature)
			return nil
		})
		assert.Equal(t, outer, Active(), "inner override fully unwinds before outer continues")
		return nil
	})
	assert.Equal(t, before, Active())
}
