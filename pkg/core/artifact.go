package core

// ArtifactKind identifies what a produced artifact is.
type ArtifactKind string

// Artifact kind constants.
const (
	ArtifactSchemaProject    ArtifactKind = "schema-project"
	ArtifactDacpac           ArtifactKind = "dacpac"
	ArtifactCompiledPackage  ArtifactKind = "compiled-package"
	ArtifactGeneratedPackage ArtifactKind = "generated-model-package"
	ArtifactConfigDocument   ArtifactKind = "config-document"
)

// ArtifactDescriptor describes one artifact produced by a completed stage.
// Descriptors are never mutated after creation; a stage either produces
// exactly one or none.
type ArtifactDescriptor struct {
	Kind              ArtifactKind
	Name              string
	VersionedFileName string
	Path              string
}

// ArtifactSet is the ordered collection of descriptors produced by a run.
type ArtifactSet struct {
	descriptors []ArtifactDescriptor
}

// Add appends a descriptor to the set.
func (s *ArtifactSet) Add(d ArtifactDescriptor) {
	s.descriptors = append(s.descriptors, d)
}

// All returns the descriptors in production order.
func (s *ArtifactSet) All() []ArtifactDescriptor {
	return s.descriptors
}

// Find returns the first descriptor of the given kind, or false.
func (s *ArtifactSet) Find(kind ArtifactKind) (ArtifactDescriptor, bool) {
	for _, d := range s.descriptors {
		if d.Kind == kind {
			return d, true
		}
	}
	return ArtifactDescriptor{}, false
}

// FileName returns the versioned file name of the first descriptor of the
// given kind, or the empty string when the stage produced nothing. Missing
// artifacts surface as empty manifest fields rather than errors.
func (s *ArtifactSet) FileName(kind ArtifactKind) string {
	if d, ok := s.Find(kind); ok {
		return d.VersionedFileName
	}
	return ""
}
