package errors

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeInvalidRequest Code = "invalid_request"
	CodeInternal       Code = "internal_error"
)

// Exit codes. Each fatal class gets its own status so scripts wrapping xtc
// can tell a network failure from a compile failure.
const (
	ExitGeneric  = 1
	ExitUsage    = 2
	ExitHost     = 3
	ExitNetwork  = 4
	ExitLayout   = 5
	ExitStage    = 6
	ExitPublish  = 7
	ExitInternal = 70
)

// ============================================================================
// Configuration Errors
// ============================================================================

var (
	// ErrInvalidConfig is returned for an unreadable config file or a bad flag value
	ErrInvalidConfig = New(DomainConfig, CodeInvalidRequest, ExitUsage,
		"Invalid configuration")
)

// ============================================================================
// Host Errors
// ============================================================================

var (
	// ErrPackageManagerNotFound is returned when none of the supported
	// package managers is on the search path
	ErrPackageManagerNotFound = New(DomainHost, "package_manager_not_found", ExitHost,
		"No supported package manager (apt, pacman, dnf, yum) found")

	// ErrPackageInstallFailed is returned when the package manager exits non-zero
	ErrPackageInstallFailed = New(DomainHost, "package_install_failed", ExitHost,
		"Failed to install required packages")
)

// ============================================================================
// Source Errors
// ============================================================================

var (
	// ErrRetriesExhausted is returned when a network operation failed on every attempt
	ErrRetriesExhausted = New(DomainSource, "retries_exhausted", ExitNetwork,
		"Operation failed the maximum number of times, check that the network is working")

	// ErrPathConflict is returned when a non-directory occupies a checkout path
	ErrPathConflict = New(DomainSource, "path_conflict", ExitLayout,
		"File name conflict")

	// ErrPullFailed is returned when a fast-forward pull fails under the strict policy
	ErrPullFailed = New(DomainSource, "pull_failed", ExitNetwork,
		"Fast-forward pull failed")
)

// ============================================================================
// Layout Errors
// ============================================================================

var (
	// ErrNotADirectory is returned when a layout path exists but is not a directory
	ErrNotADirectory = New(DomainLayout, "not_a_directory", ExitLayout,
		"Path exists but is not a directory")

	// ErrCreateDirectory is returned when a layout directory cannot be created
	ErrCreateDirectory = New(DomainLayout, "create_failed", ExitLayout,
		"Failed to create directory")
)

// ============================================================================
// Stage Errors
// ============================================================================

var (
	// ErrConfigureFailed is returned when a configure script exits non-zero
	ErrConfigureFailed = New(DomainStage, "configure_failed", ExitStage,
		"Configure failed")

	// ErrBuildFailed is returned when make exits non-zero
	ErrBuildFailed = New(DomainStage, "build_failed", ExitStage,
		"Build failed")

	// ErrInstallFailed is returned when make install-strip exits non-zero
	ErrInstallFailed = New(DomainStage, "install_failed", ExitStage,
		"Install failed")

	// ErrAliasFailed is returned when a prerequisite alias cannot be established
	ErrAliasFailed = New(DomainStage, "alias_failed", ExitLayout,
		"Failed to link prerequisite into source tree")
)

// ============================================================================
// Download Errors
// ============================================================================

var (
	// ErrDownloadFailed is returned when a single archive transfer fails
	ErrDownloadFailed = New(DomainDownload, "download_failed", ExitNetwork,
		"Download failed")

	// ErrExtractFailed is returned when an archive cannot be unpacked
	ErrExtractFailed = New(DomainDownload, "extract_failed", ExitGeneric,
		"Failed to extract archive")
)

// ============================================================================
// Toolchain Errors
// ============================================================================

var (
	// ErrInvalidTriple is returned for a host or target outside the supported set
	ErrInvalidTriple = New(DomainToolchain, "invalid_triple", ExitUsage,
		"Unsupported triple")

	// ErrUnknownModule is returned when a registry lookup misses
	ErrUnknownModule = New(DomainToolchain, CodeNotFound, ExitInternal,
		"Unknown module")
)

// ============================================================================
// Publish Errors
// ============================================================================

var (
	// ErrPublishFailed is returned when the toolchain archive cannot be stored
	ErrPublishFailed = New(DomainPublish, "publish_failed", ExitPublish,
		"Failed to publish toolchain archive")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is a generic internal error
	ErrInternal = New(DomainInternal, CodeInternal, ExitInternal,
		"Internal error")
)
