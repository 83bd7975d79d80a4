package models

// Stage is one state of a reconciliation cycle.
type Stage int

const (
	StageFetchBase Stage = iota
	StageFetchIncoming
	StageSignIncoming
	StageRegenerateMetadata
	StageMerge
	StageSignRelease
	StageVerify
	StagePublish
	StagePurgeIncoming
	StageDone
	StageSkipped
)

func (s Stage) String() string {
	switch s {
	case StageFetchBase:
		return "fetch-base"
	case StageFetchIncoming:
		return "fetch-incoming"
	case StageSignIncoming:
		return "sign-incoming"
	case StageRegenerateMetadata:
		return "regenerate-metadata"
	case StageMerge:
		return "merge"
	case StageSignRelease:
		return "sign-release"
	case StageVerify:
		return "verify"
	case StagePublish:
		return "publish"
	case StagePurgeIncoming:
		return "purge-incoming"
	case StageDone:
		return "done"
	case StageSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}
