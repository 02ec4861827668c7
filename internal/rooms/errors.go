package rooms

import "errors"

// Typed failure reasons surfaced by lifecycle commands. Every error crossing
// the command/event boundary wraps one of these so handlers can map it to a
// response without string matching.
var (
	// ErrConfigurationInvalid indicates a malformed guild policy. Recovered by
	// lazily creating a default policy, so callers rarely see it.
	ErrConfigurationInvalid = errors.New("guild configuration invalid")

	// ErrCapacityExceeded is returned by preference writes that exceed the
	// guild's hard capacity cap. Creation-path resolution clamps instead.
	ErrCapacityExceeded = errors.New("capacity exceeds guild maximum")

	// ErrBitrateExceeded is the bitrate counterpart of ErrCapacityExceeded.
	ErrBitrateExceeded = errors.New("bitrate exceeds guild maximum")

	// ErrPlatformResourceMissing indicates the channel vanished externally.
	// Recovered by pruning the stored record.
	ErrPlatformResourceMissing = errors.New("platform resource missing")

	// ErrPermissionDenied indicates the caller lacks ownership or the admin
	// role. No state is changed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPlatformAPIFailure indicates a transient platform call failure. The
	// operation is aborted with state consistent with the pre-call state.
	ErrPlatformAPIFailure = errors.New("platform api failure")

	// ErrRoomCreationFailed indicates room creation failed partway; any
	// already-created platform resources were deleted best-effort.
	ErrRoomCreationFailed = errors.New("room creation failed")

	// ErrRoomNotFound indicates no managed room exists for the given channel.
	ErrRoomNotFound = errors.New("room not found")
)
