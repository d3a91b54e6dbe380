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

// IssuesQuery pages issuesV2. The selection keeps what OpsLevel's custom
// integration mapping reads and drops the deeply nested rule metadata.
const IssuesQuery = `
query IssuesTable($filterBy: IssueFilters, $first: Int, $after: String, $orderBy: IssueOrder) {
  issues: issuesV2(filterBy: $filterBy, first: $first, after: $after, orderBy: $orderBy) {
    nodes {
      id
      sourceRules {
        __typename
        ... on Control {
          id
          name
          controlDescription: description
          resolutionRecommendation
        }
        ... on CloudEventRule {
          id
          name
          cloudEventRuleDescription: description
          sourceType
          type
        }
        ... on CloudConfigurationRule {
          id
          name
          cloudConfigurationRuleDescription: description
          remediationInstructions
          serviceType
        }
      }
      createdAt
      updatedAt
      dueAt
      type
      resolvedAt
      statusChangedAt
      projects {
        id
        name
        slug
        businessUnit
      }
      status
      severity
      entitySnapshot {
        id
        type
        nativeType
        name
        status
        cloudPlatform
        cloudProviderURL
        providerId
        tags
        externalId
      }
      serviceTickets {
        externalId
        name
        url
      }
      notes {
        text
        createdAt
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// VulnerabilityFindingsQuery pages vulnerabilityFindings with the asset
// union expanded per concrete asset type.
const VulnerabilityFindingsQuery = `
query VulnerabilityFindingsPage($filterBy: VulnerabilityFindingFilters, $first: Int, $after: String, $orderBy: VulnerabilityFindingOrder) {
  vulnerabilityFindings(filterBy: $filterBy, first: $first, after: $after, orderBy: $orderBy) {
    nodes {
      id
      portalUrl
      name
      CVEDescription
      CVSSSeverity
      score
      severity
      vendorSeverity
      hasExploit
      hasCisaKevExploit
      status
      firstDetectedAt
      lastDetectedAt
      resolvedAt
      remediation
      detailedName
      version
      fixedVersion
      projects {
        id
        name
        slug
      }
      vulnerableAsset {
        ... on VulnerableAssetBase {
          id
          type
          name
          region
          providerUniqueId
          cloudProviderURL
          cloudPlatform
          nativeType
          status
          subscriptionName
          subscriptionExternalId
          tags
        }
        ... on VulnerableAssetVirtualMachine {
          operatingSystem
          ipAddresses
          imageName
        }
        ... on VulnerableAssetServerless {
          runtime
        }
        ... on VulnerableAssetContainerImage {
          imageId
          registry {
            name
            externalId
          }
          repository {
            name
            externalId
          }
        }
        ... on VulnerableAssetRepositoryBranch {
          repositoryId
          repositoryName
          repositoryExternalId
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// IssueSeverities is the severity filter applied to the issues feed.
var IssueSeverities = []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}

// IssuesVariables builds the fixed variables for IssuesQuery. An empty
// since drops the statusChangedAt filter.
func IssuesVariables(since string) map[string]interface{} {
	filter := map[string]interface{}{
		"severity": IssueSeverities,
	}
	if since != "" {
		filter["statusChangedAt"] = map[string]interface{}{"after": since}
	}
	return map[string]interface{}{
		"filterBy": filter,
		"orderBy": map[string]interface{}{
			"field":     "CREATED_AT",
			"direction": "DESC",
		},
	}
}

// FindingsFilter narrows vulnerabilityFindings. Empty fields are omitted.
type FindingsFilter struct {
	Status    []string
	Severity  []string
	AssetType []string
	// UpdatedAfter is an ISO-8601 timestamp.
	UpdatedAfter string
}

// Variables builds the fixed variables for VulnerabilityFindingsQuery.
func (f FindingsFilter) Variables() map[string]interface{} {
	filter := map[string]interface{}{}
	if len(f.Status) > 0 {
		filter["status"] = f.Status
	}
	if len(f.Severity) > 0 {
		filter["vendorSeverity"] = f.Severity
	}
	if len(f.AssetType) > 0 {
		filter["assetType"] = f.AssetType
	}
	if f.UpdatedAfter != "" {
		filter["updatedAt"] = map[string]interface{}{"after": f.UpdatedAfter}
	}
	return map[string]interface{}{
		"filterBy": filter,
		"orderBy":  map[string]interface{}{"direction": "DESC"},
	}
}
