package core

// Manifest is the single structured record summarizing all artifacts
// produced by one pipeline run. It is written exactly once, as the last
// successful action of a run, and never updated in place.
type Manifest struct {
	DatabaseName              string   `json:"databaseName"`
	Version                   string   `json:"version"`
	DacpacFileName            string   `json:"dacpacFileName"`
	SQLProjectPackageFileName string   `json:"sqlProjectPackageFileName"`
	EFCorePackageFileName     string   `json:"efCorePackageFileName"`
	EFCoreProjectName         string   `json:"efCoreProjectName"`
	ImageRepository           string   `json:"imageRepository"`
	ImageTags                 []string `json:"imageTags"`
	CommitSHA                 string   `json:"commitSha"`
	GeneratedAtUTC            string   `json:"generatedAtUtc"`
}

// SchemaRename is one record of the renaming document consumed by the
// model generator: a non-default schema whose name becomes a namespace.
type SchemaRename struct {
	SchemaName    string `json:"SchemaName"`
	UseSchemaName bool   `json:"UseSchemaName"`
}

// GeneratorConfigOrigin identifies where a generator config came from.
type GeneratorConfigOrigin string

// Generator config origins, mutually exclusive and strictly prioritized:
// local file, then remote URL, then the patched default template.
const (
	ConfigOriginLocalFile GeneratorConfigOrigin = "local-file"
	ConfigOriginRemoteURL GeneratorConfigOrigin = "remote-url"
	ConfigOriginDefault   GeneratorConfigOrigin = "default-template"
)

// GeneratorConfig is the resolved configuration document handed to the
// model generator tool. Exactly one origin is selected per run.
type GeneratorConfig struct {
	Origin GeneratorConfigOrigin
	Path   string
	Body   []byte
}
