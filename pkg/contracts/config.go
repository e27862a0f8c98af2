package contracts

// StorageOptions holds storage-related options for the backend selected by
// the database URI.
type StorageOptions struct {
	// S3-compatible object storage (s3:// URIs).
	S3Config *S3Config `json:"s3_config,omitempty"`

	// Local file system (plain paths and file:// URIs).
	LocalConfig *LocalConfig `json:"local_config,omitempty"`
}

// S3Config holds configuration for S3-compatible object stores, including
// self-hosted endpoints such as MinIO.
type S3Config struct {
	AccessKeyID     *string `json:"access_key_id,omitempty"`
	SecretAccessKey *string `json:"secret_access_key,omitempty"`
	SessionToken    *string `json:"session_token,omitempty"`
	Region          *string `json:"region,omitempty"`
	Endpoint        *string `json:"endpoint,omitempty"`         // Custom endpoint (e.g. MinIO)
	ForcePathStyle  *bool   `json:"force_path_style,omitempty"` // Use path-style addressing
	UseSSL          *bool   `json:"use_ssl,omitempty"`          // Use HTTPS
}

// LocalConfig holds local file system specific configuration.
type LocalConfig struct {
	CreateDirIfNotExists *bool `json:"create_dir_if_not_exists,omitempty"` // Create the database directory if missing
	SyncWrites           *bool `json:"sync_writes,omitempty"`              // Fsync data files after writing
}
