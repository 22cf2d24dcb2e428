package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hellenic-development/fb-exporter/pkg/attribution"
)

// mappingSampleLimit bounds how many post->ads entries land in the debug
// artifact.
const mappingSampleLimit = 10

// DebugArtifact is the diagnostic JSON written next to the spend report
// when debug mode is on. It carries run counters and small payload samples,
// never the access token.
type DebugArtifact struct {
	GraphVersion         string                     `json:"graph_version"`
	PageID               string                     `json:"page_id"`
	AdAccountID          string                     `json:"ad_account_id,omitempty"`
	Counts               attribution.Stats          `json:"counts"`
	SampleMappings       map[string][]string        `json:"sample_mappings"`
	SampleSpendResponses map[string]json.RawMessage `json:"sample_spend_responses"`
}

// NewDebugArtifact assembles the artifact, sampling at most
// mappingSampleLimit mapping entries.
func NewDebugArtifact(graphVersion, pageID, adAccountID string, stats attribution.Stats, mapping map[string][]string, spendSamples map[string]json.RawMessage) DebugArtifact {
	sampled := make(map[string][]string, mappingSampleLimit)
	for postID, adIDs := range mapping {
		if len(sampled) >= mappingSampleLimit {
			break
		}
		sampled[postID] = adIDs
	}

	return DebugArtifact{
		GraphVersion:         graphVersion,
		PageID:               pageID,
		AdAccountID:          adAccountID,
		Counts:               stats,
		SampleMappings:       sampled,
		SampleSpendResponses: spendSamples,
	}
}

// WriteDebugJSON writes the artifact to path as indented JSON.
func WriteDebugJSON(path string, artifact DebugArtifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal debug artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
