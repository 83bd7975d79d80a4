package publisher

import (
	"path/filepath"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/transport"
)

// layout maps a target onto its private work directories and the remote
// repository tree.
type layout struct {
	work   string
	remote string
	target models.Target
}

func newLayout(workDir, remote string, t models.Target) layout {
	return layout{work: filepath.Join(workDir, t.ID()), remote: remote, target: t}
}

// root returns <work>/<target id>/<role>.
func (l layout) root(role models.Snapshot) string {
	return filepath.Join(l.work, string(role))
}

// dist returns the distribution directory of role.
func (l layout) dist(role models.Snapshot) string {
	return filepath.Join(l.root(role), l.target.Distribution)
}

func (l layout) recovery() string {
	return filepath.Join(l.work, "recovery", l.target.Distribution)
}

func (l layout) scratch() string {
	return filepath.Join(l.work, "empty")
}

func (l layout) file(name string) string {
	return filepath.Join(l.work, name)
}

// remoteDist returns <remote>/<distribution>/<elem...>.
func (l layout) remoteDist(elem ...string) string {
	return transport.Join(l.remote, append([]string{l.target.Distribution}, elem...)...)
}

// remoteIncoming returns <remote>/incoming/<elem...>.
func (l layout) remoteIncoming(elem ...string) string {
	return transport.Join(l.remote, append([]string{"incoming"}, elem...)...)
}

// APT paths

func (l layout) pool(dist string) string {
	return filepath.Join(dist, "pool", l.target.Codename)
}

func (l layout) dists(dist string) string {
	return filepath.Join(dist, "dists", l.target.Codename)
}

// Yum paths

func (l layout) version(dist string) string {
	return filepath.Join(dist, l.target.Codename)
}
