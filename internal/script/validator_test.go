package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEntryPoint(t *testing.T) {
	name, err := ExtractEntryPoint(`
		async function run(wa, target) {
			return wa.sendText(target, "hi");
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, "run", name)
}

func TestExtractEntryPointVariants(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantName string
		wantErr  error
	}{
		{
			name:     "tight spacing",
			text:     `async function blast(api,to){await api.sendText(to,"x")}`,
			wantName: "blast",
		},
		{
			name:     "underscore and dollar names",
			text:     `async function _run$2(cap, $t) {}`,
			wantName: "_run$2",
		},
		{
			name:     "extra parameters allowed",
			text:     `async function run(wa, target, extra) {}`,
			wantName: "run",
		},
		{
			name:    "missing async",
			text:    `function run(wa, target) {}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "single parameter",
			text:    `async function run(wa) {}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "not a function at all",
			text:    `const x = 42;`,
			wantErr: ErrMalformed,
		},
		{
			name:    "empty script",
			text:    ``,
			wantErr: ErrMalformed,
		},
		{
			name:    "anonymous declaration has no extractable name",
			text:    `async function (wa, target) {}`,
			wantErr: ErrNameNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := ExtractEntryPoint(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

// The two rejection cases must stay distinguishable so callers can report
// them differently.
func TestRejectionErrorsAreDistinct(t *testing.T) {
	_, missingErr := ExtractEntryPoint(`let a = 1`)
	_, nameErr := ExtractEntryPoint(`async function (wa, target) {}`)
	assert.NotErrorIs(t, missingErr, ErrNameNotFound)
	assert.NotErrorIs(t, nameErr, ErrMalformed)
}
