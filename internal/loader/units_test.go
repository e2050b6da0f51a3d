package loader

import (
	"errors"
	"io"
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classmodel/internal/backend"
)

type person struct{ Name string }

type named interface{ GetName() string }

func TestRegisterAndResolve(t *testing.T) {
	u := New(nil).
		Register("demo.Person", person{}).
		Register("demo.Named", (*named)(nil))

	pt, err := u.ClassForName("demo.Person")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(person{}), pt)

	nt, err := u.ClassForName("demo.Named")
	require.NoError(t, err)
	assert.Equal(t, reflect.Interface, nt.Kind())

	name, ok := u.NameOf(pt)
	assert.True(t, ok)
	assert.Equal(t, "demo.Person", name)

	assert.Equal(t, []string{"demo.Named", "demo.Person"}, u.Names())
}

func TestClassForNameUnknown(t *testing.T) {
	_, err := New(nil).ClassForName("demo.Missing")
	assert.True(t, errors.Is(err, backend.ErrClassNotFound))
}

func TestReRegisterReplaces(t *testing.T) {
	u := New(nil).Register("demo.Person", person{})
	u.Register("demo.Person", struct{ ID int }{})

	_, ok := u.NameOf(reflect.TypeOf(person{}))
	assert.False(t, ok)
}

func TestLocateResource(t *testing.T) {
	u := New(fstest.MapFS{
		"demo/Person.unit.yaml": {Data: []byte("name: demo.Person\n")},
	})

	rc, err := u.LocateResource("demo/Person.unit.yaml")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "name: demo.Person\n", string(data))

	_, err = u.LocateResource("demo/Missing.unit.yaml")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = New(nil).LocateResource("x")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWithResourcesKeepsTypes(t *testing.T) {
	u := New(nil).Register("demo.Person", person{})
	v := u.WithResources(fstest.MapFS{"a": {Data: []byte("x")}})

	_, err := v.ClassForName("demo.Person")
	require.NoError(t, err)
	_, err = v.LocateResource("a")
	require.NoError(t, err)
}
