package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

func TestHandleResolvesLazily(t *testing.T) {
	units := demo.Units()
	h := Handle{name: "demo.Base", loading: units}
	assert.Equal(t, "demo.Base", h.TypeName())

	rt, err := h.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "Base", rt.Name())

	_, err = Handle{name: "demo.Gone", loading: units}.Resolve()
	assert.ErrorIs(t, err, backend.ErrClassNotFound)
}
