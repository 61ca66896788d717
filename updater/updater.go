// Package updater checks a Maven repository for new releases of the
// tools that are distributed there and installs them.
package updater

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gmaffy/search-whisperer/advocate"
	"github.com/gmaffy/search-whisperer/utils"
	"golang.org/x/net/html/charset"
)

var (
	ErrNotInMaven  = errors.New("tool is not distributed through Maven")
	ErrNoVersions  = errors.New("no versions in maven metadata")
	ErrUnsafePath  = errors.New("archive entry escapes the install folder")
	ErrBadResponse = errors.New("unexpected response")
)

const userAgent = "search-whisperer"

type metadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// Client talks to one Maven repository.
type Client struct {
	Repo string
	HTTP *http.Client
}

func NewClient(repo string) *Client {
	if repo == "" {
		repo = utils.DefaultMavenRepo
	}
	return &Client{Repo: repo, HTTP: &http.Client{Timeout: 10 * time.Minute}}
}

func (c *Client) artifactBase(coords advocate.Coordinates) string {
	return strings.TrimSuffix(c.Repo, "/") + "/" + strings.ReplaceAll(coords.GroupID, ".", "/") + "/" + coords.ArtifactID
}

// MetadataURL is the maven-metadata.xml of an artifact.
func (c *Client) MetadataURL(coords advocate.Coordinates) string {
	return c.artifactBase(coords) + "/maven-metadata.xml"
}

// ArtifactURL is the zip distribution of one version.
func (c *Client) ArtifactURL(coords advocate.Coordinates, version string) string {
	return fmt.Sprintf("%s/%s/%s-%s.zip", c.artifactBase(coords), version, coords.ArtifactID, version)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrBadResponse, url, resp.Status)
	}
	return resp, nil
}

// LatestVersion reads the newest released version of an artifact.
func (c *Client) LatestVersion(ctx context.Context, coords advocate.Coordinates) (string, error) {
	resp, err := c.get(ctx, c.MetadataURL(coords))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return parseMetadata(resp.Body)
}

func parseMetadata(r io.Reader) (string, error) {
	var md metadata
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&md); err != nil {
		return "", fmt.Errorf("parsing maven metadata: %w", err)
	}
	if v := md.Versioning.Release; v != "" {
		return v, nil
	}
	versions := append([]string(nil), md.Versioning.Versions...)
	if md.Versioning.Latest != "" {
		versions = append(versions, md.Versioning.Latest)
	}
	if len(versions) == 0 {
		return "", ErrNoVersions
	}
	sort.Slice(versions, func(i, j int) bool { return CompareVersions(versions[i], versions[j]) < 0 })
	return versions[len(versions)-1], nil
}

// CompareVersions orders dotted versions numerically; a pre-release such
// as 2.0.0-beta sorts before 2.0.0.
func CompareVersions(a, b string) int {
	return utils.CompareVersions(a, b)
}

// InstalledVersion returns the version of the tool installed in dir, read
// from the executable's file name.
func InstalledVersion(dir string, adv advocate.Advocate) (string, error) {
	exe, err := advocate.ValidateFolder(adv, dir)
	if err != nil {
		return "", err
	}
	v := utils.VersionFromName(filepath.Base(exe))
	if v == "" {
		return "", fmt.Errorf("no version in %s", filepath.Base(exe))
	}
	return v, nil
}

// Download saves url to dest. Nothing is left at dest when it fails.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	_, err = io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dest)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	return nil
}

// Install extracts a zip archive into dir and returns the top level folder
// of the archive, or dir when the entries have no common folder.
func Install(zipPath, dir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	top := ""
	for i, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		first, _, _ := strings.Cut(strings.TrimPrefix(f.Name, "/"), "/")
		if i == 0 {
			top = first
		} else if top != first {
			top = ""
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
			continue
		}
		if err := extract(f, target); err != nil {
			return "", err
		}
	}
	if top == "" || !isDir(filepath.Join(root, top)) {
		return root, nil
	}
	return filepath.Join(root, top), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return out.Close()
}

// Result reports what Update did.
type Result struct {
	Tool       string
	Installed  string
	Latest     string
	Updated    bool
	Folder     string
	Executable string
}

// Update installs the latest release of adv under installRoot when it is
// newer than the one in currentDir. An empty currentDir means the tool is
// not installed yet.
func (c *Client) Update(ctx context.Context, adv advocate.Advocate, currentDir, installRoot string) (Result, error) {
	res := Result{Tool: adv.Name, Folder: currentDir}
	if adv.Maven == nil {
		return res, fmt.Errorf("%s: %w", adv.Name, ErrNotInMaven)
	}
	latest, err := c.LatestVersion(ctx, *adv.Maven)
	if err != nil {
		return res, err
	}
	res.Latest = latest

	if currentDir != "" {
		if installed, err := InstalledVersion(currentDir, adv); err == nil {
			res.Installed = installed
			if CompareVersions(latest, installed) <= 0 {
				res.Executable, _ = advocate.ValidateFolder(adv, currentDir)
				return res, nil
			}
		}
	}

	if err := utils.EnsureDir(installRoot); err != nil {
		return res, err
	}
	tmpDir, err := os.MkdirTemp(installRoot, ".download-*")
	if err != nil {
		return res, err
	}
	defer os.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, fmt.Sprintf("%s-%s.zip", adv.Maven.ArtifactID, latest))
	if err := c.Download(ctx, c.ArtifactURL(*adv.Maven, latest), zipPath); err != nil {
		return res, err
	}
	folder, err := Install(zipPath, installRoot)
	if err != nil {
		return res, err
	}
	exe, err := advocate.ValidateFolder(adv, folder)
	if err != nil {
		return res, fmt.Errorf("installed %s %s: %w", adv.Name, latest, err)
	}
	res.Updated, res.Folder, res.Executable = true, folder, exe
	return res, nil
}
