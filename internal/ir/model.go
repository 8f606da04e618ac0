package ir

// ExportedModel is a trained model serialized out of a session run.
type ExportedModel struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId,omitempty"`
	InstanceID string `json:"instanceId"` // create block owning the model
	FamilyID   string `json:"familyId"`
	Digest     string `json:"digest"` // ModelDigest of Payload
	Payload    []byte `json:"payload"`
}
