// Package partserrors defines the structured error hierarchy used across
// the engine. Every exported error type carries a brief one-line summary
// plus optional details and a resolution hint, following the pattern the
// CLI uses to render actionable failures.
package partserrors

import "fmt"

// PartsError is the base interface implemented by every error in this
// package. Callers that only care about the summary can type-assert to
// PartsError instead of matching on a concrete type.
type PartsError interface {
	error
	Brief() string
	Details() string
	Resolution() string
}

type base struct {
	brief      string
	details    string
	resolution string
}

func (b *base) Error() string {
	if b.details == "" {
		return b.brief
	}
	return fmt.Sprintf("%s: %s", b.brief, b.details)
}

func (b *base) Brief() string      { return b.brief }
func (b *base) Details() string    { return b.details }
func (b *base) Resolution() string { return b.resolution }

// PartDependencyCycle is raised when the `after` graph contains a cycle.
type PartDependencyCycle struct {
	base
	Parts []string
}

// NewPartDependencyCycle builds a PartDependencyCycle error for the given
// cycle members (in the order the cycle was detected).
func NewPartDependencyCycle(parts []string) *PartDependencyCycle {
	return &PartDependencyCycle{
		base: base{
			brief:      "circular dependency chain found in parts definition",
			details:    fmt.Sprintf("parts: %v", parts),
			resolution: "review the 'after' entries of the listed parts and remove the cycle",
		},
		Parts: parts,
	}
}

// InvalidPartName is raised when a requested part name does not exist.
type InvalidPartName struct {
	base
	PartName string
}

func NewInvalidPartName(name string) *InvalidPartName {
	return &InvalidPartName{
		base: base{
			brief:      fmt.Sprintf("a part named %q is not defined", name),
			resolution: "check the part name for typos, or add the part definition",
		},
		PartName: name,
	}
}

// InvalidArchitecture is raised when a target architecture string cannot be
// resolved to a supported value.
type InvalidArchitecture struct {
	base
	Arch string
}

func NewInvalidArchitecture(arch string) *InvalidArchitecture {
	return &InvalidArchitecture{
		base: base{
			brief:      fmt.Sprintf("architecture %q is not supported", arch),
			resolution: "use one of the supported target architectures",
		},
		Arch: arch,
	}
}

// PartSpecificationError is raised when a part's declarative spec fails
// validation.
type PartSpecificationError struct {
	base
	PartName string
}

func NewPartSpecificationError(partName, reason string) *PartSpecificationError {
	return &PartSpecificationError{
		base: base{
			brief:      fmt.Sprintf("part %q has invalid specification", partName),
			details:    reason,
			resolution: "fix the reported field in the part definition",
		},
		PartName: partName,
	}
}

// StagePackageNotFound is raised when a declared stage-package cannot be
// resolved by the package repository.
type StagePackageNotFound struct {
	base
	PartName    string
	PackageName string
}

func NewStagePackageNotFound(partName, packageName string) *StagePackageNotFound {
	return &StagePackageNotFound{
		base: base{
			brief:      fmt.Sprintf("stage package %q not found", packageName),
			details:    fmt.Sprintf("required by part %q", partName),
			resolution: "check the package name and repository configuration",
		},
		PartName:    partName,
		PackageName: packageName,
	}
}

// OverlayPackageNotFound is raised when a declared overlay-package cannot be
// resolved by the package repository.
type OverlayPackageNotFound struct {
	base
	PartName    string
	PackageName string
}

func NewOverlayPackageNotFound(partName, packageName string) *OverlayPackageNotFound {
	return &OverlayPackageNotFound{
		base: base{
			brief:      fmt.Sprintf("overlay package %q not found", packageName),
			details:    fmt.Sprintf("required by part %q", partName),
			resolution: "check the package name and repository configuration",
		},
		PartName:    partName,
		PackageName: packageName,
	}
}

// InvalidAction is raised when the executor is asked to run an action type
// a step does not support (e.g. UPDATE on STAGE).
type InvalidAction struct {
	base
}

func NewInvalidAction(reason string) *InvalidAction {
	return &InvalidAction{base{brief: "invalid action", details: reason}}
}

// OsReleaseIdError is raised when the host os-release identifier cannot be
// determined and the caller required it (e.g. to select a base path).
type OsReleaseIdError struct {
	base
}

func NewOsReleaseIdError(reason string) *OsReleaseIdError {
	return &OsReleaseIdError{base{
		brief:      "cannot determine host OS release id",
		details:    reason,
		resolution: "set the base explicitly instead of relying on auto-detection",
	}}
}

// CollisionError is raised when a part migrates a path into the shared
// stage/prime area that another part already claimed, or when organize
// would move a file onto a destination it may not overwrite.
type CollisionError struct {
	base
	Path  string
	PartA string
	PartB string
}

func NewCollisionError(path, partA, partB string) *CollisionError {
	return &CollisionError{
		base: base{
			brief:      fmt.Sprintf("parts %q and %q have the same file %q", partA, partB, path),
			resolution: "use 'organize' to avoid the conflict",
		},
		Path:  path,
		PartA: partA,
		PartB: partB,
	}
}
