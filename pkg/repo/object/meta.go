package object

import (
	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/repo"
)

// repMetadataOf converts stored object metadata into representation
// metadata.
func repMetadataOf(m *backend.ObjectMeta) repo.RepMetadata {
	return repo.RepMetadata{
		ContentType:  m.ContentType,
		Size:         m.Size,
		ETag:         m.ETag,
		LastModified: m.LastModified,
	}
}

// repValidatorsOf extracts the conditional-request validators of stored
// object metadata.
func repValidatorsOf(m *backend.ObjectMeta) repo.RepValidators {
	return repMetadataOf(m).Validators()
}
