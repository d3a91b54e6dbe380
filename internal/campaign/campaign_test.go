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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shurcooL/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirseerhq/opslevel-relay/internal/jira"
	"github.com/sirseerhq/opslevel-relay/internal/opslevel"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
)

const browse = "https://acme.atlassian.net/browse/"

func TestJiraProject(t *testing.T) {
	tests := []struct {
		name     string
		contacts []opslevel.Contact
		want     string
		wantErr  bool
	}{
		{name: "no contacts"},
		{name: "other contacts only", contacts: []opslevel.Contact{{DisplayName: "Slack", Address: "#team"}}},
		{name: "project page", contacts: []opslevel.Contact{{DisplayName: "Jira", Address: browse + "CLOUD"}}, want: "CLOUD"},
		{name: "numeric key", contacts: []opslevel.Contact{{DisplayName: "jira", Address: browse + "OPS2"}}, wantErr: true},
		{name: "wrong site", contacts: []opslevel.Contact{{DisplayName: "JIRA", Address: "https://other/browse/OPS"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JiraProject(tt.contacts, browse)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceLabels(t *testing.T) {
	s := Service{Name: "Checkout API", Owner: "Payments"}
	assert.Equal(t, "Checkout-API", s.NameLabel())
	assert.Equal(t, "opslevel-campaign-service-Checkout-API", s.Label())
	assert.Equal(t, "opslevel-campaign-abc", Campaign{ID: "abc"}.Label())
}

func TestApplyMetadata_PrefersIssueTypes(t *testing.T) {
	teams := map[string]*Team{
		"a": {Name: "a", JiraProject: "AAA"},
		"b": {Name: "b", JiraProject: "BBB"},
		"c": {Name: "c", JiraProject: "CCC"},
		"d": {Name: "d"},
	}
	ApplyMetadata(teams, []jira.Project{
		{ID: "1", Key: "AAA", IssueTypes: []jira.IssueType{{ID: "10", Name: "Story"}, {ID: "11", Name: "Debt"}}},
		{ID: "2", Key: "BBB", IssueTypes: []jira.IssueType{{ID: "20", Name: "Bug"}}},
	})

	assert.Equal(t, Team{Name: "a", JiraProject: "AAA", JiraProjectID: "1", IssueTypeName: "Debt", IssueTypeID: "11"}, *teams["a"])
	assert.Equal(t, "2", teams["b"].JiraProjectID)
	assert.Empty(t, teams["b"].IssueTypeID)
	assert.Empty(t, teams["c"].JiraProjectID)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, ProjectKeys(teams))
}

func TestBuildChanges(t *testing.T) {
	teams := map[string]*Team{
		"Payments":       {Name: "Payments", JiraProject: "PAY", JiraProjectID: "1", IssueTypeName: "Task", IssueTypeID: "3"},
		"Search":         {Name: "Search", JiraProject: "SRCH", JiraProjectID: "2"},
		opslevel.NoOwner: {Name: opslevel.NoOwner},
	}
	services := []Service{
		{Name: "checkout api", Owner: "Payments"},
		{Name: "billing", Owner: "Payments"},
		{Name: "orphan", Owner: opslevel.NoOwner},
		{Name: "indexer", Owner: "Search"},
		{Name: "ghost", Owner: "Unknown Team"},
	}
	issues := map[string]string{"checkout-api": "PAY-1", "orphan": "PAY-9"}

	changes := BuildChanges(services, issues, teams)
	var actions []Action
	for _, c := range changes {
		actions = append(actions, c.Action)
	}
	assert.Equal(t, []Action{ActionCreate, ActionCreate, ActionNoop, ActionNoIssueType, ActionNoJira}, actions)
	assert.Equal(t, "PAY-9", changes[2].IssueKey)
	assert.Equal(t, 2, Pending(changes))
	assert.Equal(t, []string{"NO-OWNER", "Unknown Team"}, MissingJira(services, teams))
}

func TestBuildChanges_ExistingIssueMatchesNameLabel(t *testing.T) {
	teams := map[string]*Team{"P": {Name: "P", JiraProject: "PAY", IssueTypeID: "3"}}
	changes := BuildChanges([]Service{{Name: "checkout api", Owner: "P"}}, map[string]string{"checkout-api": "PAY-1"}, teams)
	require.Len(t, changes, 1)
	assert.Equal(t, ActionNoop, changes[0].Action)
	assert.Equal(t, "PAY-1", changes[0].Describe())
}

func TestIssuesByService(t *testing.T) {
	issue := func(key string, labels ...string) jira.Issue {
		var is jira.Issue
		is.Key = key
		is.Fields.Labels = labels
		return is
	}
	var logs bytes.Buffer
	got := IssuesByService([]jira.Issue{
		issue("OPS-1", "opslevel-campaign-c1", "opslevel-campaign-service-checkout"),
		issue("OPS-2", "opslevel-campaign-c1"),
	}, zerolog.New(&logs))

	assert.Equal(t, map[string]string{"checkout": "OPS-1"}, got)
	assert.Contains(t, logs.String(), "OPS-2")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, []Change{
		{Action: ActionCreate, Service: Service{Name: "billing", Owner: "Payments"}, Team: Team{JiraProject: "PAY", IssueTypeName: "Task"}},
		{Action: ActionNoJira, Service: Service{Name: "orphan", Owner: "NO-OWNER"}},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "OWNER"))
	assert.Contains(t, lines[1], "Create Task in PAY")
	assert.Contains(t, lines[2], "No Jira project set. Cannot create issue.")
	assert.Equal(t, strings.Index(lines[0], "SERVICE"), strings.Index(lines[1], "billing"))
}

type fakeOpsLevel struct {
	campaign *opslevel.Campaign
	services []opslevel.CampaignService
	teams    []opslevel.Team
	partial  bool
}

func (f *fakeOpsLevel) FindCampaign(ctx context.Context, url string) (*opslevel.Campaign, error) {
	if f.campaign == nil || string(f.campaign.HTMLURL) != url {
		return nil, errors.New("no campaign found")
	}
	return f.campaign, nil
}

func (f *fakeOpsLevel) FailingCampaignServices(ctx context.Context, id string, _ pager.Observer) ([]opslevel.CampaignService, pager.Result, error) {
	return f.services, pager.Result{Exhausted: !f.partial}, nil
}

func (f *fakeOpsLevel) ListTeams(ctx context.Context, _ int, _ pager.Observer) ([]opslevel.Team, pager.Result, error) {
	return f.teams, pager.Result{Exhausted: true}, nil
}

type fakeJira struct {
	searched []string
	metaKeys []string
	created  []jira.IssueInput
	failOn   string
}

func (f *fakeJira) BrowseURL() string { return browse }

func (f *fakeJira) Search(ctx context.Context, jql string, fields ...string) ([]jira.Issue, error) {
	f.searched = append(f.searched, jql)
	var is jira.Issue
	is.Key = "PAY-1"
	is.Fields.Labels = []string{"opslevel-campaign-c1", "opslevel-campaign-service-checkout"}
	return []jira.Issue{is}, nil
}

func (f *fakeJira) CreateMeta(ctx context.Context, keys []string) ([]jira.Project, error) {
	f.metaKeys = keys
	return []jira.Project{{ID: "100", Key: "PAY", IssueTypes: []jira.IssueType{{ID: "7", Name: "Tech Debt"}}}}, nil
}

func (f *fakeJira) CreateIssue(ctx context.Context, in jira.IssueInput) (string, error) {
	if strings.HasSuffix(in.Summary, f.failOn) && f.failOn != "" {
		return "", errors.New("boom")
	}
	f.created = append(f.created, in)
	return "PAY-2", nil
}

func newFakes() (*fakeOpsLevel, *fakeJira) {
	ol := &fakeOpsLevel{
		campaign: &opslevel.Campaign{
			ID:           graphql.ID("c1"),
			Name:         "Upgrade Go",
			HTMLURL:      "https://app.opslevel.com/campaigns/c1",
			ProjectBrief: "Move to Go 1.24",
		},
		services: []opslevel.CampaignService{
			{Name: "billing", Owner: "Payments"},
			{Name: "checkout", Owner: "Payments"},
			{Name: "ledger", Owner: "Payments"},
			{Name: "orphan", Owner: opslevel.NoOwner},
		},
		teams: []opslevel.Team{
			{Name: "Payments", Contacts: []opslevel.Contact{{DisplayName: "Jira", Address: browse + "PAY"}}},
		},
	}
	return ol, &fakeJira{}
}

func TestPlanner_PlanAndApply(t *testing.T) {
	ol, jr := newFakes()
	p := &Planner{OpsLevel: ol, Jira: jr}
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	plan, err := p.Plan(ctx, "https://app.opslevel.com/campaigns/c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"labels in (opslevel-campaign-c1) ORDER BY key ASC"}, jr.searched)
	assert.Equal(t, []string{"PAY"}, jr.metaKeys)
	assert.Equal(t, []string{opslevel.NoOwner}, plan.MissingJira)

	var actions []Action
	for _, c := range plan.Changes {
		actions = append(actions, c.Action)
	}
	assert.Equal(t, []Action{ActionCreate, ActionNoop, ActionCreate, ActionNoJira}, actions)

	jr.failOn = "ledger"
	created, failed, err := p.Apply(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, failed)

	require.Len(t, jr.created, 1)
	assert.Equal(t, jira.IssueInput{
		ProjectID:   "100",
		IssueTypeID: "7",
		Summary:     "OpsLevel Campaign: Upgrade Go - billing",
		Labels:      []string{"opslevel-campaign-c1", "opslevel-campaign-service-billing"},
		Description: "Move to Go 1.24\n\nhttps://app.opslevel.com/campaigns/c1",
	}, jr.created[0])
}

func TestPlanner_Errors(t *testing.T) {
	ol, jr := newFakes()
	p := &Planner{OpsLevel: ol, Jira: jr}

	_, err := p.Plan(context.Background(), "https://app.opslevel.com/campaigns/missing")
	assert.Error(t, err)

	ol.partial = true
	_, err = p.Plan(context.Background(), "https://app.opslevel.com/campaigns/c1")
	assert.ErrorContains(t, err, "could not fetch every service")
	assert.Empty(t, jr.searched)
}
