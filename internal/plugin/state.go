package plugin

// State is a plugin's position in the load pass.
type State int

// Load states. A plugin moves forward through Discovered to Registered, or
// leaves early as Skipped or Failed.
const (
	// StateDiscovered - Folder found under the plugin root.
	StateDiscovered State = iota

	// StateManifestValid - Manifest read and validated.
	StateManifestValid

	// StateEntryFound - Entry file resolved on disk.
	StateEntryFound

	// StateLoaded - Entry module loaded by its runtime.
	StateLoaded

	// StateRegistered - Default export invoked without error.
	StateRegistered

	// StateSkipped - Intentionally not loaded (no manifest, missing entry).
	StateSkipped

	// StateFailed - Loading failed; the error is recorded.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateManifestValid:
		return "manifest-valid"
	case StateEntryFound:
		return "entry-found"
	case StateLoaded:
		return "loaded"
	case StateRegistered:
		return "registered"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRegistered || s == StateSkipped || s == StateFailed
}
