package stuff

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gelm-lang/gelm/pkg/core"
)

func TestWithWriterCompletesAllWrites(t *testing.T) {
	fs := afero.NewMemMapFs()

	err := WithWriter(fs, func(w *Writer) error {
		for i := range 20 {
			path := fmt.Sprintf("/out/file-%02d.dat", i)
			payload := []byte(fmt.Sprintf("payload %d", i))
			w.Enqueue(path, func() ([]byte, error) { return payload, nil })
		}
		return nil
	})
	require.NoError(t, err)

	for i := range 20 {
		data, err := afero.ReadFile(fs, fmt.Sprintf("/out/file-%02d.dat", i))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("payload %d", i), string(data))
	}
}

func TestWithWriterReportsEncodeError(t *testing.T) {
	fs := afero.NewMemMapFs()
	boom := errors.New("encode failed")

	err := WithWriter(fs, func(w *Writer) error {
		w.Enqueue("/out/ok.dat", func() ([]byte, error) { return []byte("ok"), nil })
		w.Enqueue("/out/bad.dat", func() ([]byte, error) { return nil, boom })
		return nil
	})
	require.ErrorIs(t, err, boom)

	// The healthy write still landed.
	data, rerr := afero.ReadFile(fs, "/out/ok.dat")
	require.NoError(t, rerr)
	require.Equal(t, "ok", string(data))
}

func TestWithWriterPropagatesScopeError(t *testing.T) {
	fs := afero.NewMemMapFs()
	scopeErr := errors.New("scope failed")

	err := WithWriter(fs, func(w *Writer) error {
		w.Enqueue("/out/file.dat", func() ([]byte, error) { return []byte("x"), nil })
		return scopeErr
	})
	require.ErrorIs(t, err, scopeErr)

	// Pending writes drain even when the scope fails.
	exists, _ := afero.Exists(fs, "/out/file.dat")
	require.True(t, exists)
}

func TestPaths(t *testing.T) {
	pkg := core.PkgName{Author: "elm", Project: "core"}
	vsn := core.Version{Major: 1, Minor: 0, Patch: 5}

	require.Equal(t, "/root/elm-stuff/0.19.1/d.dat", DetailsPath("/root"))
	require.Equal(t, "/root/elm-stuff/0.19.1/i.dat", InterfacesPath("/root"))
	require.Equal(t, "/root/elm-stuff/0.19.1/o.dat", ObjectsPath("/root"))
	require.Equal(t, "/home/packages/elm/core/1.0.5/src", PackageSrc("/home", pkg, vsn))
	require.Equal(t, "/home/packages/elm/core/1.0.5/artifacts.json", ArtifactsPath("/home", pkg, vsn))
	require.Equal(t, "/home/packages/elm/core/1.0.5/docs.json", DocsPath("/home", pkg, vsn))
}
