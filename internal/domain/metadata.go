package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const versionAuthority = "RPR-KONTROL v1.0"

// ArtifactMetadataDoc is the audit-trail document attached to a mirrored artifact.
type ArtifactMetadataDoc struct {
	Filename         string         `json:"filename"`
	DrivePath        string         `json:"drive_path"`
	Purpose          string         `json:"purpose"`
	RelatedSession   string         `json:"related_session"`
	AgentsInvolved   []AgentType    `json:"agents_involved"`
	Classification   Classification `json:"classification"`
	VersionAuthority string         `json:"version_authority"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// ArtifactMetadata renders the metadata document for artifact as indented JSON.
func ArtifactMetadata(session *Session, artifact Artifact, now time.Time) ([]byte, error) {
	drivePath := artifact.DrivePath
	if drivePath == "" {
		drivePath = "N/A"
	}
	doc := map[string]ArtifactMetadataDoc{
		"artifact_metadata": {
			Filename:         artifact.Title,
			DrivePath:        drivePath,
			Purpose:          "Statutory validation / Forensic artifact",
			RelatedSession:   session.SessionID,
			AgentsInvolved:   session.AgentsInvolved,
			Classification:   session.Classification,
			VersionAuthority: versionAuthority,
			GeneratedAt:      now.UTC(),
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal artifact metadata: %w", err)
	}
	return data, nil
}

// DriveLink returns the canonical view URL for a Drive file id, or "" when unset.
func DriveLink(fileID string) string {
	if fileID == "" {
		return ""
	}
	return "https://drive.google.com/file/d/" + fileID + "/view"
}
