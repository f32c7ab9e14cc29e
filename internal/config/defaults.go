package config

const (
	defaultOutputRoot      = "~/gnss"
	defaultStagingDir      = "~/.local/share/gnssprep/staging"
	defaultLogDir          = "~/.local/share/gnssprep/logs"
	defaultStateDir        = "~/.local/share/gnssprep"
	defaultDecompressor    = "CRX2RNX"
	defaultFilter          = "teqc"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultStaleAfterHours = 24

	// ViewPrimary keeps GPS only.
	ViewPrimary = "PRIMARY"
	// ViewSecondary keeps GLONASS only.
	ViewSecondary = "SECONDARY"
	// ViewCombined keeps GPS and GLONASS, dropping every other system.
	ViewCombined = "PRIMARY_SECONDARY"
)

// DefaultViews returns the constellation views used when none are configured.
// teqc flags: -G excludes GPS, -R excludes GLONASS, -E excludes Galileo.
func DefaultViews() []View {
	return []View{
		{Name: ViewPrimary, Flags: []string{"-R", "-E"}},
		{Name: ViewSecondary, Flags: []string{"-G", "-E"}},
		{Name: ViewCombined, Flags: []string{"-E"}},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputRoot: defaultOutputRoot,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
		},
		Staging: Staging{
			StaleAfterHours: defaultStaleAfterHours,
		},
	}
}
