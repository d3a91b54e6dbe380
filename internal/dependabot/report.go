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

package dependabot

import (
	"github.com/google/go-github/v73/github"
)

// Alert is the reduced form of a Dependabot alert.
type Alert struct {
	Dependency    string   `json:"dependency"`
	Vulnerability string   `json:"vulnerability"`
	CVEs          []string `json:"cves"`
	State         string   `json:"state"`
	Fix           string   `json:"fix"`
}

// Severity holds the alerts of one advisory severity.
type Severity struct {
	Open   int     `json:"open"`
	Closed int     `json:"closed"`
	Alerts []Alert `json:"alerts"`
}

// GroupBySeverity buckets alerts by advisory severity. Fixed and dismissed
// alerts count as closed; other non-open states are listed but not counted.
func GroupBySeverity(alerts []*github.DependabotAlert) map[string]*Severity {
	groups := make(map[string]*Severity)
	for _, a := range alerts {
		advisory := a.GetSecurityAdvisory()
		sev := advisory.GetSeverity()
		g, ok := groups[sev]
		if !ok {
			g = &Severity{Alerts: []Alert{}}
			groups[sev] = g
		}

		state := a.GetState()
		switch state {
		case "open":
			g.Open++
		case "fixed", "dismissed":
			g.Closed++
		}

		cves := []string{}
		for _, id := range advisory.Identifiers {
			if id.GetType() == "CVE" {
				cves = append(cves, id.GetValue())
			}
		}

		fix := a.GetSecurityVulnerability().GetFirstPatchedVersion().GetIdentifier()
		if fix == "" {
			fix = NoFix
		}

		g.Alerts = append(g.Alerts, Alert{
			Dependency:    a.GetDependency().GetPackage().GetName(),
			Vulnerability: advisory.GetSummary(),
			CVEs:          cves,
			State:         state,
			Fix:           fix,
		})
	}
	return groups
}

// Payload wraps the groups in the custom event body, alongside the
// repository name.
func Payload(repository string, groups map[string]*Severity) map[string]interface{} {
	inner := make(map[string]interface{}, len(groups)+1)
	for sev, g := range groups {
		inner[sev] = g
	}
	inner["repository"] = repository
	return map[string]interface{}{"dependabot_alerts": inner}
}
