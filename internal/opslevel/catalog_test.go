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

package opslevel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/test/testutil"
)

func TestListPropertyDefinitions(t *testing.T) {
	srv := testutil.NewPagedServer(t,
		testutil.ConnectionPage([]map[string]interface{}{
			{"id": "pd1", "name": "Tier", "aliases": []interface{}{"tier", "service_tier"}, "schema": map[string]interface{}{"type": "boolean"}},
		}, true, "c1", "account", "propertyDefinitions"),
		testutil.ConnectionPage([]map[string]interface{}{
			{"id": "pd2", "name": "Regions", "aliases": []interface{}{"regions"}, "schema": `{"type":"array","items":{"type":"string"}}`},
			{"id": "pd3", "name": "Bare", "aliases": []interface{}{}},
		}, false, "", "account", "propertyDefinitions"),
	)

	defs, result, err := newTestClient(t, srv).ListPropertyDefinitions(context.Background(), 50, nil)
	require.NoError(t, err)
	assert.True(t, result.Exhausted)
	require.Len(t, defs, 3)
	assert.Equal(t, "tier", defs[0].Alias())
	assert.Equal(t, "boolean", defs[0].SchemaType)
	assert.Equal(t, "array", defs[1].SchemaType)
	assert.Equal(t, "", defs[2].Alias())
	assert.Equal(t, "", defs[2].SchemaType)
}

func TestListServicesByTag(t *testing.T) {
	srv := testutil.NewPagedServer(t,
		testutil.ConnectionPage([]map[string]interface{}{
			{"id": "s1", "name": "checkout", "tags": map[string]interface{}{"nodes": []interface{}{
				map[string]interface{}{"key": "region", "value": "eu"},
				map[string]interface{}{"key": "tier", "value": "1"},
				map[string]interface{}{"key": "region", "value": "us"},
			}}},
		}, false, "", "account", "services"),
	)

	services, _, err := newTestClient(t, srv).ListServicesByTag(context.Background(), "region", 0, nil)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, []string{"eu", "us"}, services[0].TagValues("region"))
	assert.Nil(t, services[0].TagValues("owner"))
	assert.Equal(t, "region", srv.GraphQLRequests()[0].Variables["tagKey"])
}

func TestListServicesByFilter(t *testing.T) {
	srv := testutil.NewPagedServer(t,
		testutil.ConnectionPage([]map[string]interface{}{{"id": "s1", "name": "checkout"}}, false, "", "account", "services"),
	)
	filters := []ServiceFilter{
		{Key: "component_type_id", Arg: "ct-1", Type: "equals"},
		{Key: "tag", Arg: "role:http", Type: "equals"},
	}

	services, _, err := newTestClient(t, srv).ListServicesByFilter(context.Background(), filters, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []ServiceRef{{ID: "s1", Name: "checkout"}}, services)

	sent := srv.GraphQLRequests()[0].Variables["filter"].([]interface{})
	require.Len(t, sent, 2)
	assert.Equal(t, map[string]interface{}{"key": "tag", "arg": "role:http", "type": "equals"}, sent[1])
}

func TestServiceConfigFile(t *testing.T) {
	srv := mutationServer(t, map[string]interface{}{
		"account": map[string]interface{}{
			"configFile": map[string]interface{}{"ownerType": "Service", "yaml": "version: 1\n"},
		},
	})
	file, err := newTestClient(t, srv).ServiceConfigFile(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", file.YAML)
	assert.Equal(t, "s1", srv.GraphQLRequests()[0].Variables["id"])

	missing := mutationServer(t, map[string]interface{}{"account": map[string]interface{}{"configFile": nil}})
	_, err = newTestClient(t, missing).ServiceConfigFile(context.Background(), "s2")
	assert.ErrorIs(t, err, relayerrors.ErrNotFound)
}

func TestUpdateServiceType(t *testing.T) {
	srv := mutationServer(t, map[string]interface{}{"serviceUpdate": map[string]interface{}{"errors": []interface{}{}}})
	require.NoError(t, newTestClient(t, srv).UpdateServiceType(context.Background(), "s1", "ct-2"))

	req := srv.GraphQLRequests()[0]
	assert.Equal(t, "s1", req.Variables["id"])
	assert.Equal(t, map[string]interface{}{"id": "ct-2"}, req.Variables["type"])
	assert.Equal(t, "internal", srv.Headers()[0].Get(VisibilityHeader))

	failing := mutationServer(t, map[string]interface{}{"serviceUpdate": map[string]interface{}{
		"errors": []interface{}{map[string]interface{}{"message": "type not found"}},
	}})
	err := newTestClient(t, failing).UpdateServiceType(context.Background(), "s1", "nope")
	var mutErr *MutationError
	require.True(t, errors.As(err, &mutErr))
	assert.Equal(t, "serviceUpdate failed: type not found", err.Error())
}

func TestAssignServiceProperty(t *testing.T) {
	srv := mutationServer(t, map[string]interface{}{"propertyAssign": map[string]interface{}{"errors": []interface{}{}}})
	require.NoError(t, newTestClient(t, srv).AssignServiceProperty(context.Background(), "s1", "regions", []string{"eu", "us"}))

	req := srv.GraphQLRequests()[0]
	assert.Equal(t, map[string]interface{}{"id": "s1"}, req.Variables["owner"])
	assert.Equal(t, `["eu","us"]`, req.Variables["value"])
}
