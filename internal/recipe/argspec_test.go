package recipe

import (
	"testing"

	"github.com/stretchr/testify/require"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func TestNewArgSpecInfersIntFromWholeNumberMinMax(t *testing.T) {
	t.Parallel()

	spec, err := newArgSpec(rawArgSpec{Name: "count", Default: str("5"), Min: f64(1), Max: f64(10)})
	require.NoError(t, err, "an integer-ranged arg with no explicit type must still parse")
	require.Equal(t, ArgTypeInt, spec.Type)
}

func TestNewArgSpecInfersFloatFromFractionalMinMax(t *testing.T) {
	t.Parallel()

	spec, err := newArgSpec(rawArgSpec{Name: "ratio", Default: str("0.5"), Min: f64(0), Max: f64(1.5)})
	require.NoError(t, err)
	require.Equal(t, ArgTypeFloat, spec.Type)
}

func TestNewArgSpecMinMaxOnlyNoDefault(t *testing.T) {
	t.Parallel()

	spec, err := newArgSpec(rawArgSpec{Name: "count", Min: f64(1), Max: f64(10)})
	require.NoError(t, err)
	require.Equal(t, ArgTypeInt, spec.Type)
}

func TestNewArgSpecChoicesAndMinMaxMutuallyExclusive(t *testing.T) {
	t.Parallel()

	_, err := newArgSpec(rawArgSpec{Name: "level", Choices: []string{"low", "high"}, Min: f64(0), Max: f64(1)})
	require.Error(t, err)
	var valErr *tterrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "InvalidArgSpec", valErr.Kind)
}

func TestNewArgSpecDisagreeingInferenceSourcesError(t *testing.T) {
	t.Parallel()

	_, err := newArgSpec(rawArgSpec{Name: "mode", Default: str("debug"), Min: f64(1), Max: f64(10)})
	require.Error(t, err, "a string default next to a numeric min/max cannot agree on one type")
}

func TestNewArgSpecDefaultMustBeAmongChoices(t *testing.T) {
	t.Parallel()

	_, err := newArgSpec(rawArgSpec{Name: "level", Default: str("medium"), Choices: []string{"low", "high"}})
	require.Error(t, err)
}

func TestNewArgSpecDefaultOutsideMinMaxRangeErrors(t *testing.T) {
	t.Parallel()

	_, err := newArgSpec(rawArgSpec{Name: "count", Default: str("20"), Min: f64(1), Max: f64(10)})
	require.Error(t, err)
}

func TestNewArgSpecExportedRejectsExplicitType(t *testing.T) {
	t.Parallel()

	_, err := newArgSpec(rawArgSpec{Name: "$mode", Type: "int"})
	require.Error(t, err)
}

func TestNewArgSpecExportedDefaultsToStr(t *testing.T) {
	t.Parallel()

	spec, err := newArgSpec(rawArgSpec{Name: "$mode"})
	require.NoError(t, err)
	require.True(t, spec.Exported)
	require.Equal(t, "mode", spec.Name)
	require.Equal(t, ArgTypeStr, spec.Type)
}

func TestNewArgSpecNoInferenceSourcesDefaultsToStr(t *testing.T) {
	t.Parallel()

	spec, err := newArgSpec(rawArgSpec{Name: "label"})
	require.NoError(t, err)
	require.Equal(t, ArgTypeStr, spec.Type)
}

func TestNewArgSpecExplicitTypeOverridesInference(t *testing.T) {
	t.Parallel()

	spec, err := newArgSpec(rawArgSpec{Name: "count", Type: "float", Default: str("5")})
	require.NoError(t, err)
	require.Equal(t, ArgTypeFloat, spec.Type)
	require.True(t, spec.TypeSet)
}
