package errors

import "strconv"

// The calculator-wide error kinds from spec.md §7. Each is an
// *OperationError so callers can still inspect Operation/Component/Resource,
// but also carries a stable Kind for policy dispatch (fatal vs. warning) at
// the driver level.

// Kind distinguishes the error policies spec.md §7 lists.
type Kind string

const (
	KindConfigError                 Kind = "ConfigError"
	KindParseError                  Kind = "ParseError"
	KindDuplicateSourceID            Kind = "DuplicateSourceID"
	KindAssetSiteAssociationError    Kind = "AssetSiteAssociationError"
	KindIMTMismatch                  Kind = "IMTMismatch"
	KindInvalidHazard                Kind = "InvalidHazard"
	KindTaskError                    Kind = "TaskError"
	KindOutOfMemory                  Kind = "OutOfMemory"
	KindNotFound                     Kind = "NotFound"
)

// KindedError is an OperationError tagged with a stable Kind.
type KindedError struct {
	*OperationError
	Kind Kind
}

func kinded(kind Kind, op, component, resource string, cause error) error {
	return &KindedError{
		OperationError: &OperationError{Operation: op, Component: component, Resource: resource, Cause: cause},
		Kind:           kind,
	}
}

// NewConfigError reports an incompatible or missing configuration option.
func NewConfigError(setting string, cause error) error {
	return kinded(KindConfigError, "validate configuration", "config", setting, cause)
}

// NewParseError reports malformed NRML/exposure input, annotated with file
// and line as the spec requires.
func NewParseError(file string, line int, cause error) error {
	return kinded(KindParseError, "parse input file", "parser", resourceAt(file, line), cause)
}

// NewDuplicateSourceID reports two sources sharing an id within one source
// model.
func NewDuplicateSourceID(sourceModel, sourceID string) error {
	return kinded(KindDuplicateSourceID, "register source", "csm", sourceModel+"/"+sourceID, nil)
}

// NewAssetSiteAssociationError reports that no site lies within
// asset_hazard_distance of some asset.
func NewAssetSiteAssociationError(assetID string, distance float64) error {
	return kinded(KindAssetSiteAssociationError, "associate asset to site", "riskinput", assetID, nil)
}

// NewIMTMismatch reports that the risk model's IMTs are disjoint from the
// hazard's IMTs.
func NewIMTMismatch(riskIMTs, hazardIMTs []string) error {
	return kinded(KindIMTMismatch, "match IMT sets", "riskinput", "", nil)
}

// NewInvalidHazard reports PoE == 1 reaching classical damage.
func NewInvalidHazard(assetID string) error {
	return kinded(KindInvalidHazard, "compute damage distribution", "risk", assetID, nil)
}

// NewTaskError re-raises a worker exception at the driver, preserving the
// formatted remote traceback.
func NewTaskError(taskName, remoteTraceback string) error {
	return kinded(KindTaskError, "execute task", "taskmgr", taskName, &remoteError{remoteTraceback})
}

// NewOutOfMemory reports RSS above the hard threshold.
func NewOutOfMemory(hostname string, percent float64) error {
	return kinded(KindOutOfMemory, "reduce task results", "taskmgr", hostname, nil)
}

// NewNotFound reports a key missing in a store and its parent chain.
func NewNotFound(key string) error {
	return kinded(KindNotFound, "read key", "store", key, nil)
}

type remoteError struct{ traceback string }

func (r *remoteError) Error() string { return r.traceback }

func resourceAt(file string, line int) string {
	if line <= 0 {
		return file
	}
	return file + ":" + strconv.Itoa(line)
}
