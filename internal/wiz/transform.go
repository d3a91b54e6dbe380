// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wiz

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/opslevel-relay/internal/record"
)

// VulnerabilityRecord is the flattened export row for one finding. Fields
// absent from the source node are nil and encode as null.
type VulnerabilityRecord struct {
	ID                  string      `json:"id"`
	Name                *string     `json:"name"`
	Severity            *string     `json:"severity"`
	Score               *float64    `json:"score"`
	Status              *string     `json:"status"`
	PortalURL           *string     `json:"portal_url"`
	FirstDetectedAt     *string     `json:"first_detected_at"`
	VulnerableAssetType *string     `json:"vulnerable_asset_type"`
	Tags                interface{} `json:"tags"`
	AssetName           *string     `json:"asset_name"`
}

var optionalFindingFields = [][]string{
	{"name"},
	{"CVSSSeverity"},
	{"score"},
	{"status"},
	{"portalUrl"},
	{"firstDetectedAt"},
	{"vulnerableAsset", "type"},
	{"vulnerableAsset", "tags"},
	{"vulnerableAsset", "name"},
}

// NewVulnerabilityRecord flattens a vulnerabilityFindings node. Only id is
// mandatory.
func NewVulnerabilityRecord(node record.Node) (VulnerabilityRecord, error) {
	id := record.String(node, "id")
	if id == nil || *id == "" {
		return VulnerabilityRecord{}, fmt.Errorf("finding has no id")
	}

	var tags interface{}
	if v, ok := record.Get(node, "vulnerableAsset", "tags"); ok {
		tags = v
	}

	return VulnerabilityRecord{
		ID:                  *id,
		Name:                record.String(node, "name"),
		Severity:            record.String(node, "CVSSSeverity"),
		Score:               record.Float(node, "score"),
		Status:              record.String(node, "status"),
		PortalURL:           record.String(node, "portalUrl"),
		FirstDetectedAt:     record.String(node, "firstDetectedAt"),
		VulnerableAssetType: record.String(node, "vulnerableAsset", "type"),
		Tags:                tags,
		AssetName:           record.String(node, "vulnerableAsset", "name"),
	}, nil
}

// TransformFindings converts a page of nodes. Nodes that cannot be
// converted are logged and skipped; the count of records with missing
// optional fields is logged at debug level.
func TransformFindings(ctx context.Context, nodes []record.Node) []VulnerabilityRecord {
	logger := zerolog.Ctx(ctx)
	out := make([]VulnerabilityRecord, 0, len(nodes))
	incomplete := 0
	for i, node := range nodes {
		rec, err := NewVulnerabilityRecord(node)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("skipping finding")
			continue
		}
		if record.Missing(node, optionalFindingFields...) > 0 {
			incomplete++
		}
		out = append(out, rec)
	}
	if incomplete > 0 {
		logger.Debug().Int("records", incomplete).Msg("findings with missing optional fields")
	}
	return out
}

// ServiceTag is the asset tag whose value names the OpsLevel service alias.
const ServiceTag = "Name"

// ServiceFinding is a finding attributed to an OpsLevel service through
// the asset's Name tag.
type ServiceFinding struct {
	ExternalID     string
	Name           string
	CVEDescription string
	Severity       string
	PortalURL      string
	Status         string
	AssetType      string
	ServiceAlias   string
}

// NewServiceFinding returns the finding and true when the asset carries
// a non-empty Name tag.
func NewServiceFinding(node record.Node) (ServiceFinding, bool) {
	alias := record.StringOr(node, "", "vulnerableAsset", "tags", ServiceTag)
	id := record.StringOr(node, "", "id")
	if alias == "" || id == "" {
		return ServiceFinding{}, false
	}
	return ServiceFinding{
		ExternalID:     id,
		Name:           record.StringOr(node, id, "name"),
		CVEDescription: record.StringOr(node, "", "CVEDescription"),
		Severity:       record.StringOr(node, "", "severity"),
		PortalURL:      record.StringOr(node, "", "portalUrl"),
		Status:         record.StringOr(node, "", "status"),
		AssetType:      record.StringOr(node, "", "vulnerableAsset", "type"),
		ServiceAlias:   alias,
	}, true
}

// GroupByService collects tagged findings per service alias, keeping the
// order in which aliases first appear.
func GroupByService(nodes []record.Node) (aliases []string, grouped map[string][]ServiceFinding) {
	grouped = make(map[string][]ServiceFinding)
	for _, node := range nodes {
		f, ok := NewServiceFinding(node)
		if !ok {
			continue
		}
		if _, seen := grouped[f.ServiceAlias]; !seen {
			aliases = append(aliases, f.ServiceAlias)
		}
		grouped[f.ServiceAlias] = append(grouped[f.ServiceAlias], f)
	}
	return aliases, grouped
}

// CVEIdentifier shortens descriptions longer than 75 characters to their
// first 58 followed by "..".
func CVEIdentifier(description string) string {
	runes := []rune(description)
	if len(runes) > 75 {
		return string(runes[:58]) + ".."
	}
	return description
}
