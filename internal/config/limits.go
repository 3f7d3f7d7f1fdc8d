package config

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFolderNameLength = 255

	// MaxFileNameLength is the maximum length for file names.
	MaxFileNameLength = 255

	// MaxTreeDepth bounds recursive walks (path rewrite, size, ancestor
	// checks). Deeper chains only appear with corrupted parent links.
	MaxTreeDepth = 1024

	// MaxVersionRetries is how many times an upload re-reads the current
	// version after losing a race on (file_id, version).
	MaxVersionRetries = 3

	// DefaultFolderPermissions and DefaultFilePermissions are applied when
	// a request leaves permission bits empty.
	DefaultFolderPermissions = "755"
	DefaultFilePermissions   = "644"

	// DefaultNotifyBuffer is the capacity of the outbound event queue
	DefaultNotifyBuffer = 256
)
