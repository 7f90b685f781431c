package resourceconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/docstore/internal/model"
)

// Info builds the engine's resource metadata for the named resource type.
func (c *Config) Info(resourceName string) (model.ResourceInfo, error) {
	res, ok := c.resources[resourceName]
	if !ok {
		return model.ResourceInfo{}, fmt.Errorf("unknown resource %q", resourceName)
	}
	return model.ResourceInfo{
		ProjectName:          c.ProjectName,
		ResourceName:         res.Name,
		ResourceVersion:      c.ResourceVersion,
		IsDescriptor:         res.IsDescriptor,
		AllowIdentityUpdates: res.AllowIdentityUpdates,
	}, nil
}

// Extract derives a document's identity, referential id, superclass identity,
// and outgoing references from its body, per the resource definition. Every
// configured identity path must resolve to a scalar in the body; reference
// paths may be absent, which simply omits that reference.
func (c *Config) Extract(resourceName string, body json.RawMessage) (model.DocumentInfo, error) {
	res, ok := c.resources[resourceName]
	if !ok {
		return model.DocumentInfo{}, fmt.Errorf("unknown resource %q", resourceName)
	}

	doc, err := decodeBody(body)
	if err != nil {
		return model.DocumentInfo{}, err
	}

	identity := make(model.DocumentIdentity, 0, len(res.IdentityPaths))
	for _, path := range res.IdentityPaths {
		value, found, err := valueAt(doc, path)
		if err != nil {
			return model.DocumentInfo{}, err
		}
		if !found {
			return model.DocumentInfo{}, fmt.Errorf("resource %s: identity path %s missing from body", resourceName, path)
		}
		identity = append(identity, model.IdentityElement{Path: path, Value: value})
	}

	info := model.DocumentInfo{
		Identity:      identity,
		ReferentialID: model.ReferentialIDFor(c.ProjectName, res.Name, identity),
	}

	if res.Superclass != nil {
		superIdentity, complete, err := mappedIdentity(doc, res.Superclass.IdentityMap)
		if err != nil {
			return model.DocumentInfo{}, err
		}
		if !complete {
			return model.DocumentInfo{}, fmt.Errorf("resource %s: superclass identity incomplete in body", resourceName)
		}
		info.Superclass = &model.SuperclassIdentity{
			ResourceName:  res.Superclass.ResourceName,
			ReferentialID: model.ReferentialIDFor(c.ProjectName, res.Superclass.ResourceName, superIdentity),
		}
	}

	for _, ref := range res.DocumentReferences {
		refIdentity, complete, err := mappedIdentity(doc, ref.IdentityMap)
		if err != nil {
			return model.DocumentInfo{}, err
		}
		if !complete {
			continue
		}
		info.DocumentReferences = append(info.DocumentReferences, model.DocumentReference{
			ResourceName:  ref.ResourceName,
			ReferentialID: model.ReferentialIDFor(c.ProjectName, ref.ResourceName, refIdentity),
		})
	}

	for _, ref := range res.DescriptorReferences {
		refIdentity, complete, err := mappedIdentity(doc, ref.IdentityMap)
		if err != nil {
			return model.DocumentInfo{}, err
		}
		if !complete {
			continue
		}
		info.DescriptorReferences = append(info.DescriptorReferences, model.DescriptorReference{
			Path:          refIdentity[0].Path,
			Value:         refIdentity[0].Value,
			ReferentialID: model.ReferentialIDFor(c.ProjectName, ref.ResourceName, refIdentity),
		})
	}

	return info, nil
}

// mappedIdentity builds an identity from a target-path to local-path map.
// Target paths are ordered lexically so the derived referential id is stable
// regardless of map iteration order. Reports complete=false when any local
// value is absent.
func mappedIdentity(doc map[string]any, identityMap map[string]string) (model.DocumentIdentity, bool, error) {
	targetPaths := make([]string, 0, len(identityMap))
	for target := range identityMap {
		targetPaths = append(targetPaths, target)
	}
	sort.Strings(targetPaths)

	identity := make(model.DocumentIdentity, 0, len(targetPaths))
	for _, target := range targetPaths {
		value, found, err := valueAt(doc, identityMap[target])
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, nil
		}
		identity = append(identity, model.IdentityElement{Path: target, Value: value})
	}
	return identity, true, nil
}

func decodeBody(body json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document body: %w", err)
	}
	return doc, nil
}

// valueAt resolves a dotted JSON path ("$.address.city") against a decoded
// body and renders the scalar it lands on as a string.
func valueAt(doc map[string]any, path string) (string, bool, error) {
	trimmed := strings.TrimPrefix(path, "$.")
	if trimmed == "" {
		return "", false, fmt.Errorf("empty document path %q", path)
	}

	var current any = doc
	for _, seg := range strings.Split(trimmed, ".") {
		if seg == "" {
			return "", false, fmt.Errorf("empty segment in document path %q", path)
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return "", false, nil
		}
		current, ok = obj[seg]
		if !ok {
			return "", false, nil
		}
	}

	switch v := current.(type) {
	case string:
		return v, true, nil
	case json.Number:
		return v.String(), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	case nil:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("document path %q does not resolve to a scalar", path)
	}
}
