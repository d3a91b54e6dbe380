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

package campaign

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/opslevel-relay/internal/jira"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
)

// Action is what Apply will do for a service.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionNoJira
	ActionNoIssueType
	ActionNoop
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionNoJira:
		return "NO_JIRA"
	case ActionNoIssueType:
		return "NO_ISSUE_TYPE"
	case ActionNoop:
		return "NOOP"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

const (
	campaignLabelPrefix = "opslevel-campaign-"
	serviceLabelPrefix  = "opslevel-campaign-service-"
)

// PreferredIssueTypes are tried in order when picking a project's issue type.
var PreferredIssueTypes = []string{"Tech Debt", "Debt", "Task", "Story"}

// Campaign is the subset of an OpsLevel campaign the issues need.
type Campaign struct {
	ID    string
	Name  string
	URL   string
	Brief string
}

// Label tags every issue filed for the campaign.
func (c Campaign) Label() string {
	return campaignLabelPrefix + c.ID
}

// Service is a service failing the campaign.
type Service struct {
	Name  string
	Owner string
}

// NameLabel is the service name as a Jira label, which cannot hold spaces.
func (s Service) NameLabel() string {
	return strings.ReplaceAll(s.Name, " ", "-")
}

// Label tags the issue filed for this service.
func (s Service) Label() string {
	return serviceLabelPrefix + s.NameLabel()
}

// Team carries the Jira settings of a service owner.
type Team struct {
	Name          string
	JiraProject   string
	JiraProjectID string
	IssueTypeName string
	IssueTypeID   string
}

// Change is the planned action for one service.
type Change struct {
	Action   Action
	Service  Service
	Team     Team
	IssueKey string
}

// JiraProject extracts the project key from a team's "jira" contact, whose
// address must be <browseURL><KEY> with an alphabetic key. It returns ""
// when the team has no such contact.
func JiraProject(contacts []opslevel.Contact, browseURL string) (string, error) {
	for _, c := range contacts {
		if !strings.EqualFold(c.DisplayName, "jira") {
			continue
		}
		key, ok := strings.CutPrefix(c.Address, browseURL)
		if !ok || !isAlpha(key) {
			return "", fmt.Errorf("jira contact %q does not look like a project page, expected %sKEY", c.Address, browseURL)
		}
		return key, nil
	}
	return "", nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// BuildTeams indexes teams by name, including the NO-OWNER placeholder.
// Malformed Jira contacts are logged and leave the team without a project.
func BuildTeams(teams []opslevel.Team, browseURL string, logger zerolog.Logger) map[string]*Team {
	out := make(map[string]*Team, len(teams)+1)
	for _, t := range teams {
		project, err := JiraProject(t.Contacts, browseURL)
		if err != nil {
			logger.Warn().Err(err).Str("team", t.Name).Msg("ignoring jira contact")
		}
		out[t.Name] = &Team{Name: t.Name, JiraProject: project}
	}
	out[opslevel.NoOwner] = &Team{Name: opslevel.NoOwner}
	return out
}

// ProjectKeys returns the sorted, distinct Jira projects of teams.
func ProjectKeys(teams map[string]*Team) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, t := range teams {
		if t.JiraProject != "" && !seen[t.JiraProject] {
			seen[t.JiraProject] = true
			keys = append(keys, t.JiraProject)
		}
	}
	sort.Strings(keys)
	return keys
}

// ApplyMetadata fills in project ids and the preferred issue type.
func ApplyMetadata(teams map[string]*Team, projects []jira.Project) {
	byKey := make(map[string]jira.Project, len(projects))
	for _, p := range projects {
		byKey[p.Key] = p
	}
	for _, t := range teams {
		p, ok := byKey[t.JiraProject]
		if !ok {
			continue
		}
		t.JiraProjectID = p.ID

		types := make(map[string]string, len(p.IssueTypes))
		for _, it := range p.IssueTypes {
			types[it.Name] = it.ID
		}
		for _, name := range PreferredIssueTypes {
			if id, ok := types[name]; ok {
				t.IssueTypeName = name
				t.IssueTypeID = id
				break
			}
		}
	}
}

// MissingJira lists, sorted, the owners of services that have no Jira project.
func MissingJira(services []Service, teams map[string]*Team) []string {
	missing := make(map[string]bool)
	for _, s := range services {
		if t, ok := teams[s.Owner]; !ok || t.JiraProject == "" {
			missing[s.Owner] = true
		}
	}
	out := make([]string, 0, len(missing))
	for name := range missing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IssuesByService maps service name labels to the key of the issue already
// filed for them. Issues without a service label are logged and skipped.
func IssuesByService(issues []jira.Issue, logger zerolog.Logger) map[string]string {
	out := make(map[string]string, len(issues))
	for _, is := range issues {
		service := ""
		for _, label := range is.Fields.Labels {
			if name, ok := strings.CutPrefix(label, serviceLabelPrefix); ok {
				service = name
			}
		}
		if service == "" {
			logger.Warn().Str("issue", is.Key).Msg("no service label on campaign issue, skipping")
			continue
		}
		out[service] = is.Key
	}
	return out
}

// BuildChanges decides the action for every service. An existing issue wins,
// then a missing Jira project, then a missing issue type.
func BuildChanges(services []Service, issues map[string]string, teams map[string]*Team) []Change {
	changes := make([]Change, 0, len(services))
	for _, s := range services {
		team := Team{Name: s.Owner}
		if t, ok := teams[s.Owner]; ok {
			team = *t
		}

		action := ActionCreate
		key, filed := issues[s.NameLabel()]
		switch {
		case filed:
			action = ActionNoop
		case team.JiraProject == "":
			action = ActionNoJira
		case team.IssueTypeID == "":
			action = ActionNoIssueType
		}
		changes = append(changes, Change{Action: action, Service: s, Team: team, IssueKey: key})
	}
	return changes
}

// Describe is the Issue column of the change table.
func (c Change) Describe() string {
	switch c.Action {
	case ActionNoop:
		if c.IssueKey == "" {
			return "No action"
		}
		return c.IssueKey
	case ActionNoJira:
		return "No Jira project set. Cannot create issue."
	case ActionNoIssueType:
		return "No Jira issue type available. Cannot create issue."
	default:
		return fmt.Sprintf("Create %s in %s", c.Team.IssueTypeName, c.Team.JiraProject)
	}
}

// WriteTable prints the changes as an aligned Owner/Service/Issue table.
func WriteTable(w io.Writer, changes []Change) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tSERVICE\tISSUE")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Service.Owner, c.Service.Name, c.Describe())
	}
	return tw.Flush()
}

// Pending counts the changes Apply would act on.
func Pending(changes []Change) int {
	n := 0
	for _, c := range changes {
		if c.Action == ActionCreate {
			n++
		}
	}
	return n
}

// IssueFor builds the Jira issue filed for a CREATE change.
func IssueFor(c Campaign, change Change) jira.IssueInput {
	return jira.IssueInput{
		ProjectID:   change.Team.JiraProjectID,
		IssueTypeID: change.Team.IssueTypeID,
		Summary:     fmt.Sprintf("OpsLevel Campaign: %s - %s", c.Name, change.Service.Name),
		Labels:      []string{c.Label(), change.Service.Label()},
		Description: c.Brief + "\n\n" + c.URL,
	}
}
