package registry

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileString(t *testing.T, src, path string) cue.Value {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return v.LookupPath(cue.ParsePath(path))
}

func TestCompileCountryBasic(t *testing.T) {
	v := compileString(t, `
		country: KE: {
			name:    "Kenya"
			enabled: true
			aliases: ["Republic of Kenya"]
			sources: ["Daily Nation", "The Standard"]
		}
	`, "country.KE")

	c, err := CompileCountry(v)
	require.NoError(t, err)

	assert.Equal(t, "KE", c.Code)
	assert.Equal(t, "Kenya", c.Name)
	assert.True(t, c.Enabled)
	assert.Equal(t, []string{"Republic of Kenya"}, c.Aliases)
	assert.Equal(t, []string{"Daily Nation", "The Standard"}, c.Sources)
}

func TestCompileCountryDefaults(t *testing.T) {
	v := compileString(t, `country: NG: { name: "Nigeria" }`, "country.NG")

	c, err := CompileCountry(v)
	require.NoError(t, err)

	assert.Equal(t, "NG", c.Code)
	assert.True(t, c.Enabled, "enabled defaults to true")
	assert.Nil(t, c.Aliases)
	assert.Nil(t, c.Sources)
}

func TestCompileCountryDisabled(t *testing.T) {
	v := compileString(t, `
		country: SD: {
			name:    "Sudan"
			enabled: false
		}
	`, "country.SD")

	c, err := CompileCountry(v)
	require.NoError(t, err)
	assert.False(t, c.Enabled)
}

func TestCompileCountryMissingName(t *testing.T) {
	v := compileString(t, `country: KE: { enabled: true }`, "country.KE")

	_, err := CompileCountry(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "required")
	assert.Contains(t, err.Error(), "country.KE")
}

func TestCompileCountryWrongNameType(t *testing.T) {
	v := compileString(t, `country: KE: { name: 42 }`, "country.KE")

	_, err := CompileCountry(v)
	require.Error(t, err)
}

func TestCompileCountryWrongAliasType(t *testing.T) {
	v := compileString(t, `
		country: KE: {
			name:    "Kenya"
			aliases: "not a list"
		}
	`, "country.KE")

	_, err := CompileCountry(v)
	require.Error(t, err)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Country: "KE", Field: "name", Message: "name is required"}
	assert.Equal(t, "country.KE.name: name is required", err.Error())

	bare := &CompileError{Field: "cue", Message: "boom"}
	assert.Equal(t, "cue: boom", bare.Error())
}
