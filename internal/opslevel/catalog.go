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
	"encoding/json"
	"fmt"

	relayerrors "github.com/sirseerhq/opslevel-relay/internal/errors"
	"github.com/sirseerhq/opslevel-relay/internal/pager"
	"github.com/sirseerhq/opslevel-relay/internal/record"
)

// PropertyDefinitionsQuery pages the account's custom property definitions.
const PropertyDefinitionsQuery = `
query propertyDefinitions($first: Int, $after: String) {
  account {
    propertyDefinitions(first: $first, after: $after) {
      nodes {
        id
        name
        aliases
        schema
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

// ServicesByTagQuery pages the services carrying a tag key, with their tags.
const ServicesByTagQuery = `
query servicesByTag($tagKey: String!, $first: Int, $after: String) {
  account {
    services(tag: {key: $tagKey}, first: $first, after: $after) {
      nodes {
        id
        name
        tags {
          nodes {
            key
            value
          }
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

// ServicesByFilterQuery pages the services matching every filter.
const ServicesByFilterQuery = `
query servicesByFilter($filter: [ServiceFilterInput!], $first: Int, $after: String) {
  account {
    services(filter: $filter, first: $first, after: $after) {
      nodes {
        id
        name
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

const configFileQuery = `
query configFile($id: ID!) {
  account {
    configFile(id: $id) {
      ownerType
      yaml
    }
  }
}`

const serviceUpdateTypeMutation = `
mutation serviceUpdate($id: ID!, $type: IdentifierInput) {
  serviceUpdate(input: {id: $id, type: $type}) {
    service {
      id
      name
    }
    errors {
      message
      path
    }
  }
}`

// PropertyDefinition is a custom property definition.
type PropertyDefinition struct {
	ID         string
	Name       string
	Aliases    []string
	SchemaType string
}

// Alias is the definition's first alias, the one tags are matched against.
func (d PropertyDefinition) Alias() string {
	if len(d.Aliases) == 0 {
		return ""
	}
	return d.Aliases[0]
}

// NewPropertyDefinition reads a PropertyDefinitionsQuery node. The schema
// scalar arrives either as an object or as its JSON text.
func NewPropertyDefinition(n record.Node) PropertyDefinition {
	d := PropertyDefinition{
		ID:   record.StringOr(n, "", "id"),
		Name: record.StringOr(n, "", "name"),
	}
	for _, a := range record.Slice(n, "aliases") {
		if s, ok := a.(string); ok {
			d.Aliases = append(d.Aliases, s)
		}
	}
	switch schema := n["schema"].(type) {
	case map[string]interface{}:
		d.SchemaType = record.StringOr(schema, "", "type")
	case string:
		var decoded map[string]interface{}
		if json.Unmarshal([]byte(schema), &decoded) == nil {
			d.SchemaType = record.StringOr(decoded, "", "type")
		}
	}
	return d
}

// Tag is a key/value tag on a component.
type Tag struct {
	Key   string
	Value string
}

// TaggedService is a service with its tags.
type TaggedService struct {
	ID   string
	Name string
	Tags []Tag
}

// TagValues returns the values of every tag with key, in order.
func (s TaggedService) TagValues(key string) []string {
	var values []string
	for _, t := range s.Tags {
		if t.Key == key {
			values = append(values, t.Value)
		}
	}
	return values
}

// ServiceFilter mirrors the ServiceFilterInput type.
type ServiceFilter struct {
	Key  string `json:"key"`
	Arg  string `json:"arg,omitempty"`
	Type string `json:"type"`
}

// ServiceRef is a service id with its name.
type ServiceRef struct {
	ID   string
	Name string
}

// ConfigFile is a service's generated opslevel.yml.
type ConfigFile struct {
	OwnerType string
	YAML      string
}

// ListPropertyDefinitions collects every custom property definition.
func (c *Client) ListPropertyDefinitions(ctx context.Context, pageSize int, observer pager.Observer) ([]PropertyDefinition, pager.Result, error) {
	nodes, result, err := pager.Collect(ctx, c, PropertyDefinitionsQuery, pager.Collection("account", "propertyDefinitions"),
		pager.Options{PageSize: pageSize, Observer: observer})
	if err != nil {
		return nil, result, err
	}
	defs := make([]PropertyDefinition, 0, len(nodes))
	for _, n := range nodes {
		defs = append(defs, NewPropertyDefinition(n))
	}
	return defs, result, nil
}

// ListServicesByTag collects the services carrying tagKey.
func (c *Client) ListServicesByTag(ctx context.Context, tagKey string, pageSize int, observer pager.Observer) ([]TaggedService, pager.Result, error) {
	nodes, result, err := pager.Collect(ctx, c, ServicesByTagQuery, pager.Collection("account", "services"),
		pager.Options{
			PageSize:  pageSize,
			Variables: map[string]interface{}{"tagKey": tagKey},
			Observer:  observer,
		})
	if err != nil {
		return nil, result, err
	}
	services := make([]TaggedService, 0, len(nodes))
	for _, n := range nodes {
		s := TaggedService{
			ID:   record.StringOr(n, "", "id"),
			Name: record.StringOr(n, "", "name"),
		}
		for _, t := range record.Nodes(n, "tags", "nodes") {
			s.Tags = append(s.Tags, Tag{
				Key:   record.StringOr(t, "", "key"),
				Value: record.StringOr(t, "", "value"),
			})
		}
		services = append(services, s)
	}
	return services, result, nil
}

// ListServicesByFilter collects the services matching every filter.
func (c *Client) ListServicesByFilter(ctx context.Context, filters []ServiceFilter, pageSize int, observer pager.Observer) ([]ServiceRef, pager.Result, error) {
	nodes, result, err := pager.Collect(ctx, c, ServicesByFilterQuery, pager.Collection("account", "services"),
		pager.Options{
			PageSize:  pageSize,
			Variables: map[string]interface{}{"filter": filters},
			Observer:  observer,
		})
	if err != nil {
		return nil, result, err
	}
	services := make([]ServiceRef, 0, len(nodes))
	for _, n := range nodes {
		services = append(services, ServiceRef{
			ID:   record.StringOr(n, "", "id"),
			Name: record.StringOr(n, "", "name"),
		})
	}
	return services, result, nil
}

// ServiceConfigFile fetches the opslevel.yml of the service with id. A
// service without one is reported as ErrNotFound.
func (c *Client) ServiceConfigFile(ctx context.Context, id string) (*ConfigFile, error) {
	var out struct {
		Account struct {
			ConfigFile *struct {
				OwnerType string `json:"ownerType"`
				YAML      string `json:"yaml"`
			} `json:"configFile"`
		} `json:"account"`
	}
	if err := c.raw.Run(ctx, configFileQuery, map[string]interface{}{"id": id}, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch config file for %s: %w", id, err)
	}
	if out.Account.ConfigFile == nil {
		return nil, fmt.Errorf("config file for %s: %w", id, relayerrors.ErrNotFound)
	}
	return &ConfigFile{OwnerType: out.Account.ConfigFile.OwnerType, YAML: out.Account.ConfigFile.YAML}, nil
}

// UpdateServiceType moves a service to the component type with typeID.
func (c *Client) UpdateServiceType(ctx context.Context, serviceID, typeID string) error {
	var out struct {
		Payload struct {
			Errors []ErrorItem `json:"errors"`
		} `json:"serviceUpdate"`
	}
	vars := map[string]interface{}{
		"id":   serviceID,
		"type": map[string]string{"id": typeID},
	}
	if err := c.internal.Run(ctx, serviceUpdateTypeMutation, vars, &out); err != nil {
		return err
	}
	return checkErrors("serviceUpdate", out.Payload.Errors)
}
