package publisher

import (
	"github.com/cockroachdb/errors"

	"github.com/red-data-tools/packages.red-data-tools.org/internal/config"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/distmerge"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/indexer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/metadata"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/models"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/runner"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/scanner"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/signer"
	"github.com/red-data-tools/packages.red-data-tools.org/internal/transport"
)

var (
	rpmTypes = []models.ArtifactType{models.ArtifactRPM}
	debTypes = []models.ArtifactType{models.ArtifactDsc, models.ArtifactChanges}
)

// New wires a Publisher with the real tool adapters described by cfg.
func New(cfg *config.Config, r runner.Runner, progress bool) (*Publisher, error) {
	releases, err := NewReleaseSigner(cfg, r)
	if err != nil {
		return nil, err
	}
	checker, err := NewChecker(cfg, r)
	if err != nil {
		return nil, err
	}

	var merger Merger = distmerge.NewMerger()
	if cfg.Merge.Command != "" {
		merger = &distmerge.CommandMerger{Runner: r, Command: cfg.Merge.Command}
	}

	yumSigner := newBatchSigner(cfg, r, checker, progress, rpmTypes)
	yumSigner.Trust = signer.NewRPMKeyImporter(r, cfg.Signing.KeyID)

	return &Publisher{
		Options: Options{
			WorkDir:  cfg.WorkDir,
			Remote:   cfg.Remote,
			Parallel: cfg.Parallel,
			Repository: metadata.Repository{
				Origin:      cfg.Repository.Origin,
				Label:       cfg.Repository.Label,
				Description: cfg.Repository.Description,
			},
		},
		Syncer:    transport.NewRsyncSyncer(r, progress),
		APT:       &indexer.FTPArchive{Runner: r},
		Yum:       &indexer.CreateRepo{Runner: r},
		Merger:    merger,
		Releases:  releases,
		APTSigner: newBatchSigner(cfg, r, checker, progress, debTypes),
		YumSigner: yumSigner,
	}, nil
}

// NewReleaseSigner returns the manifest signer selected by
// signing.backend.
func NewReleaseSigner(cfg *config.Config, r runner.Runner) (signer.ReleaseSigner, error) {
	switch cfg.Signing.Backend {
	case config.BackendNative:
		s, err := signer.NewKeySigner(cfg.Signing.KeyFile, cfg.Signing.Passphrase())
		if err != nil {
			return nil, errors.Wrap(err, "failed to load signing key")
		}
		return &signer.FileSigner{Signer: s}, nil
	case config.BackendGPG, "":
		return signer.NewGPGSigner(r, cfg.Signing.KeyID), nil
	default:
		return nil, errors.Newf("unsupported signing backend: %s", cfg.Signing.Backend)
	}
}

// NewChecker returns the artifact signature checker selected by
// signing.checker.
func NewChecker(cfg *config.Config, r runner.Runner) (signer.Checker, error) {
	switch cfg.Signing.Checker {
	case config.CheckerNative:
		keys, err := signer.LoadKeyRing(cfg.Signing.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		v, err := signer.NewVerifierFromFile(cfg.Signing.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		return &signer.TypedChecker{
			RPM: &signer.RPMNativeChecker{Keys: keys},
			Deb: &signer.DebNativeChecker{Verifier: v},
		}, nil
	case config.CheckerTool, "":
		return &signer.TypedChecker{
			RPM: signer.NewRPMToolChecker(r),
			Deb: signer.NewDebToolChecker(r),
		}, nil
	default:
		return nil, errors.Newf("unsupported signature checker: %s", cfg.Signing.Checker)
	}
}

// NewBatchSigner returns a batch signer covering both artifact families.
func NewBatchSigner(cfg *config.Config, r runner.Runner, progress bool) (*signer.BatchSigner, error) {
	checker, err := NewChecker(cfg, r)
	if err != nil {
		return nil, err
	}
	b := newBatchSigner(cfg, r, checker, progress, append(append([]models.ArtifactType{}, rpmTypes...), debTypes...))
	b.Trust = signer.NewRPMKeyImporter(r, cfg.Signing.KeyID)
	return b, nil
}

func newBatchSigner(cfg *config.Config, r runner.Runner, checker signer.Checker, progress bool, types []models.ArtifactType) *signer.BatchSigner {
	b := &signer.BatchSigner{
		Scanner:  scanner.NewFileSystemScanner(types...),
		Checker:  checker,
		Workers:  cfg.Workers,
		Progress: progress,
	}
	for _, t := range types {
		switch t {
		case models.ArtifactRPM:
			b.Families = append(b.Families, signer.Family{
				Name:     "rpm",
				Types:    rpmTypes,
				Resigner: &signer.RPMResigner{Runner: r, KeyID: cfg.Signing.KeyID},
			})
		case models.ArtifactDsc:
			b.Families = append(b.Families, signer.Family{
				Name:     "deb",
				Types:    debTypes,
				Resigner: &signer.DebResigner{Runner: r, KeyID: cfg.Signing.KeyID},
			})
		}
	}
	return b
}
