package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv_SubstitutesKnownVariable(t *testing.T) {
	t.Setenv("ASSISTANTS_ENGINE_TEST_VAR", "resolved")

	got := ExpandEnv([]byte("value: ${ASSISTANTS_ENGINE_TEST_VAR}"))

	assert.Equal(t, "value: resolved", string(got))
}

func TestExpandEnv_MissingVariableExpandsEmpty(t *testing.T) {
	os.Unsetenv("ASSISTANTS_ENGINE_TEST_MISSING")

	got := ExpandEnv([]byte("value: ${ASSISTANTS_ENGINE_TEST_MISSING}"))

	assert.Equal(t, "value: ", string(got))
}
