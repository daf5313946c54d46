package plugins

import "errors"

// Plugin registry and resolution errors.
var (
	// ErrPackageNotFound is recorded when no search location provides a plugin.
	ErrPackageNotFound = errors.New("package not found")

	// ErrPluginNameEmpty is returned when a plugin has no name.
	ErrPluginNameEmpty = errors.New("plugin name cannot be empty")

	// ErrAttacherNil is returned when a plugin has no attacher.
	ErrAttacherNil = errors.New("plugin attacher cannot be nil")

	// ErrPluginAlreadyRegistered is returned when registering a duplicate.
	ErrPluginAlreadyRegistered = errors.New("plugin already registered")

	// ErrInvalidSettings is returned when settings do not match a plugin's schema.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrNoScriptLoader is the load failure of a script plugin found while no
	// sandbox is configured.
	ErrNoScriptLoader = errors.New("no script loader configured")

	// ErrUnknownSetting is returned for a settings key the plugin does not define.
	ErrUnknownSetting = errors.New("unknown setting")
)
