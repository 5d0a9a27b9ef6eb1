package manifest

// FileName is the manifest kept next to the archives on a local host.
const FileName = "privateer_manifest.yaml"

type Entry struct {
	Target     string `yaml:"target"`
	Archive    string `yaml:"archive"`
	Blake3Hash string `yaml:"blake3_hash"`
	Size       int64  `yaml:"size"`
	Datetime   int64  `yaml:"datetime"`
}

type Manifest struct {
	Host     string  `yaml:"host"`
	Archives []Entry `yaml:"archives"`
}
