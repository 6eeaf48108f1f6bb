package models

import "time"

// BuildConfig contains configuration for one release run
type BuildConfig struct {
	// Product identity
	ProductVersion string `yaml:"product_version"`
	QtVersion      string `yaml:"qt_version"`
	PackagePrefix  string `yaml:"package_prefix"`
	ProductName    string `yaml:"product_name"`
	LegalEntity    string `yaml:"legal_entity"`

	// Locations
	PackageRoot string `yaml:"package_root"`
	SourceDir   string `yaml:"source_dir"`  // canonical checked-out tree
	LicenseDir  string `yaml:"license_dir"` // holds <license>_header.txt
	JavadocJar  string `yaml:"javadoc_jar"` // optional, unpacked into doc/html

	// Matrix toggles
	BuildMac        bool `yaml:"build_mac"`
	BuildWindows    bool `yaml:"build_windows"`
	BuildLinux      bool `yaml:"build_linux"`
	Build32         bool `yaml:"build_32"`
	Build64         bool `yaml:"build_64"`
	BuildGPL        bool `yaml:"build_gpl"`
	BuildEval       bool `yaml:"build_eval"`
	BuildCommercial bool `yaml:"build_commercial"`
	BuildBinary     bool `yaml:"build_binary"`
	BuildSource     bool `yaml:"build_source"`

	// BuildServers maps "win64", "win", "mac", "linux32", "linux" ... to a
	// host name. The platform+arch key wins over the bare platform key.
	BuildServers map[string]string `yaml:"build_servers"`

	// Network
	ServerPort      int           `yaml:"server_port"`
	ListenAddress   string        `yaml:"listen_address"`
	ResponseTimeout time.Duration `yaml:"response_timeout"` // 0 waits forever
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	DialRetries     int           `yaml:"dial_retries"`

	// Output
	BundleCompression string `yaml:"bundle_compression"` // gzip or xz
	GPGKeyPath        string `yaml:"gpg_key_path"`
	GPGPassphrase     string `yaml:"gpg_passphrase"`

	// LicenseHeaders is filled by config.LoadLicenseHeaders, not from YAML
	LicenseHeaders map[License]string `yaml:"-"`
}
