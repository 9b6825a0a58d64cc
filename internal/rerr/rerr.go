//
// Copyright © 2017 Solus Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package rerr defines the closed set of structured errors that can
// escape the build and execute pipelines.
package rerr

import "fmt"

// Kind discriminates the taxonomy of errors a pipeline run can fail with.
type Kind string

const (
	// KindExternalToolFailure is raised when a subprocess exits non-zero.
	KindExternalToolFailure Kind = "ExternalToolFailure"

	// KindExternalOutputMalformed is raised when subprocess stdout cannot
	// be parsed into the expected shape.
	KindExternalOutputMalformed Kind = "ExternalOutputMalformed"

	// KindUnknownHostname is raised when the requested hostname is absent
	// from the flake's declared configurations.
	KindUnknownHostname Kind = "UnknownHostname"

	// KindClosureCycle is raised when the delta engine detects a cycle in
	// store references, which should be impossible by store invariant.
	KindClosureCycle Kind = "ClosureCycle"

	// KindArchiveIncomplete is raised when the subsetter cannot find a
	// requested entry in the source archive.
	KindArchiveIncomplete Kind = "ArchiveIncomplete"

	// KindInvalidInstruction is raised when instruction.json or the
	// instruction directory layout fails validation.
	KindInvalidInstruction Kind = "InvalidInstruction"

	// KindUnknownCommandKind is raised when a command's discriminator
	// does not match a known tagged variant.
	KindUnknownCommandKind Kind = "UnknownCommandKind"

	// KindMissingDependencyMetadata is raised when an info file needed to
	// complete a partial-narinfo import cannot be found.
	KindMissingDependencyMetadata Kind = "MissingDependencyMetadata"

	// KindImportFailed is raised when the store tool refuses an import.
	KindImportFailed Kind = "ImportFailed"

	// KindActivationFailed is raised when the activation verb exits
	// non-zero.
	KindActivationFailed Kind = "ActivationFailed"
)

// Error is the structured error type returned across package boundaries.
// Op names the failing operation, Detail carries kind-specific context
// (captured stderr, the raw malformed payload, a validation reason, the
// missing archive path, ...), and Err wraps an underlying cause if any.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Detail)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ExternalToolFailure builds a KindExternalToolFailure error from a failed
// subprocess invocation.
func ExternalToolFailure(op, stderr string, err error) *Error {
	return &Error{Kind: KindExternalToolFailure, Op: op, Detail: stderr, Err: err}
}

// ExternalOutputMalformed builds a KindExternalOutputMalformed error.
func ExternalOutputMalformed(op, raw string, err error) *Error {
	return &Error{Kind: KindExternalOutputMalformed, Op: op, Detail: raw, Err: err}
}

// UnknownHostname builds a KindUnknownHostname error listing the available
// hostnames the flake actually declares.
func UnknownHostname(hostname string, available []string) *Error {
	return &Error{
		Kind:   KindUnknownHostname,
		Op:     "buildToplevel",
		Detail: fmt.Sprintf("hostname %q not found, available: %v", hostname, available),
	}
}

// ClosureCycle builds a KindClosureCycle error for the offending path.
func ClosureCycle(path string) *Error {
	return &Error{Kind: KindClosureCycle, Op: "computeDelta", Detail: path}
}

// ArchiveIncomplete builds a KindArchiveIncomplete error for a missing
// entry of the given kind ("info" or "data").
func ArchiveIncomplete(kind, path string) *Error {
	return &Error{Kind: KindArchiveIncomplete, Op: "makeArchiveSubset", Detail: fmt.Sprintf("%s entry missing: %s", kind, path)}
}

// InvalidInstruction builds a KindInvalidInstruction error with a reason.
func InvalidInstruction(reason string) *Error {
	return &Error{Kind: KindInvalidInstruction, Op: "assertInstructionDirValid", Detail: reason}
}

// UnknownCommandKind builds a KindUnknownCommandKind error for an unknown
// discriminator value.
func UnknownCommandKind(kind string) *Error {
	return &Error{Kind: KindUnknownCommandKind, Op: "parseCommand", Detail: kind}
}

// MissingDependencyMetadata builds a KindMissingDependencyMetadata error
// for the store path whose info file could not be located.
func MissingDependencyMetadata(path string) *Error {
	return &Error{Kind: KindMissingDependencyMetadata, Op: "Load.Execute", Detail: path}
}

// ImportFailed builds a KindImportFailed error.
func ImportFailed(stderr string, err error) *Error {
	return &Error{Kind: KindImportFailed, Op: "importFromArchive", Detail: stderr, Err: err}
}

// ActivationFailed builds a KindActivationFailed error.
func ActivationFailed(stderr string, err error) *Error {
	return &Error{Kind: KindActivationFailed, Op: "activateGeneration", Detail: stderr, Err: err}
}
