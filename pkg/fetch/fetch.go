// Package fetch downloads and unpacks missing packages into the package
// cache.
//
// For a (package, version) pair the flow is: read the registry's
// endpoint.json descriptor to learn the archive URL and expected hash,
// download the archive while hashing it, verify the hash, and unpack the
// source tree under `<home>/packages/<author>/<project>/<version>/`. A
// package whose src directory already exists is never re-fetched: the
// cache layout is content-addressed by (package, version).
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/gelm-lang/gelm/pkg/core"
	"github.com/gelm-lang/gelm/pkg/registry"
	"github.com/gelm-lang/gelm/pkg/stuff"
)

// Endpoint is the archive descriptor published per package version.
type Endpoint struct {
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// Error is the closed sum of download failures. Each variant corresponds
// to one step of the fetch flow.
type Error interface {
	error
	isFetchError()
}

// BadEndpointRequest reports a failed GET of endpoint.json.
type BadEndpointRequest struct{ Err error }

func (e *BadEndpointRequest) isFetchError() {}
func (e *BadEndpointRequest) Unwrap() error { return e.Err }
func (e *BadEndpointRequest) Error() string {
	return fmt.Sprintf("could not fetch endpoint descriptor: %v", e.Err)
}

// BadEndpointContent reports an endpoint.json that did not decode.
type BadEndpointContent struct{ URL string }

func (e *BadEndpointContent) isFetchError() {}
func (e *BadEndpointContent) Error() string {
	return fmt.Sprintf("malformed endpoint descriptor at %s", e.URL)
}

// BadArchiveRequest reports a failed GET of the archive itself.
type BadArchiveRequest struct{ Err error }

func (e *BadArchiveRequest) isFetchError() {}
func (e *BadArchiveRequest) Unwrap() error { return e.Err }
func (e *BadArchiveRequest) Error() string {
	return fmt.Sprintf("could not download archive: %v", e.Err)
}

// BadArchiveContent reports an archive that did not unpack.
type BadArchiveContent struct{ URL string }

func (e *BadArchiveContent) isFetchError() {}
func (e *BadArchiveContent) Error() string {
	return fmt.Sprintf("malformed archive at %s", e.URL)
}

// BadArchiveHash reports an archive whose content hash did not match the
// endpoint descriptor.
type BadArchiveHash struct {
	URL      string
	Expected string
	Actual   string
}

func (e *BadArchiveHash) isFetchError() {}
func (e *BadArchiveHash) Error() string {
	return fmt.Sprintf("corrupt archive at %s: hash %s, expected %s", e.URL, e.Actual, e.Expected)
}

// Fetch ensures `<home>/packages/<pkg>/<vsn>/src` exists, downloading and
// unpacking the package if it does not. The returned error, when non-nil,
// is always a fetch [Error] variant.
func Fetch(ctx context.Context, fs afero.Fs, home string, client *registry.Client, pkg core.PkgName, vsn core.Version) error {
	if ok, _ := afero.DirExists(fs, stuff.PackageSrc(home, pkg, vsn)); ok {
		return nil
	}

	endpointURL := client.EndpointURL(pkg, vsn)
	data, err := client.GetBytes(ctx, endpointURL)
	if err != nil {
		return &BadEndpointRequest{Err: err}
	}
	var endpoint Endpoint
	if err := decodeEndpoint(data, &endpoint); err != nil {
		return &BadEndpointContent{URL: endpointURL}
	}

	// Archives are one-shot payloads: once unpacked the src directory
	// short-circuits future fetches, so they skip the response cache.
	archive, err := client.Download(ctx, endpoint.URL)
	if err != nil {
		return &BadArchiveRequest{Err: err}
	}

	sum := sha1.Sum(archive)
	actual := hex.EncodeToString(sum[:])
	if endpoint.Hash != "" && actual != strings.ToLower(endpoint.Hash) {
		return &BadArchiveHash{URL: endpoint.URL, Expected: endpoint.Hash, Actual: actual}
	}

	if err := unpack(fs, stuff.PackageDir(home, pkg, vsn), archive); err != nil {
		return &BadArchiveContent{URL: endpoint.URL}
	}
	return nil
}

func decodeEndpoint(data []byte, endpoint *Endpoint) error {
	if err := json.Unmarshal(data, endpoint); err != nil {
		return err
	}
	if endpoint.URL == "" {
		return fmt.Errorf("endpoint missing url")
	}
	return nil
}

// unpack extracts a zip archive into dir, stripping the archive's single
// top-level directory (archives are published as `project-version/...`).
func unpack(fs afero.Fs, dir string, archive []byte) error {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return err
	}

	for _, f := range r.File {
		rel, err := stripRoot(f.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))

		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return err
		}
		if err := afero.WriteFile(fs, target, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// stripRoot removes the first path segment and rejects entries that would
// escape the target directory.
func stripRoot(name string) (string, error) {
	clean := path.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return "", fmt.Errorf("unsafe archive entry %q", name)
	}
	_, rest, _ := strings.Cut(clean, "/")
	return rest, nil
}
