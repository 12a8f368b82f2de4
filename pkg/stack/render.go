package stack

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/chalkan3/pko-demo/pkg/envfile"
)

// Render writes objects as a multi-document YAML stream. Secret data is masked.
func Render(objs ...interface{}) ([]byte, error) {
	var buf bytes.Buffer

	for i, o := range objs {
		doc, err := toMap(o)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}

		if i > 0 && buf.Len() > 0 {
			buf.WriteString("---\n")
		}

		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode manifest: %w", err)
		}
	}

	return buf.Bytes(), nil
}

func toMap(o interface{}) (map[string]interface{}, error) {
	switch v := o.(type) {
	case nil:
		return nil, nil
	case *unstructured.Unstructured:
		return v.Object, nil
	case *corev1.Secret:
		if v == nil {
			return nil, nil
		}
		masked := v.DeepCopy()
		for k, val := range masked.StringData {
			masked.StringData[k] = envfile.Mask
			if val == "" {
				masked.StringData[k] = ""
			}
		}
		masked.Data = nil
		return jsonRoundTrip(masked)
	default:
		return jsonRoundTrip(v)
	}
}

// jsonRoundTrip honors the json tags of typed API objects.
func jsonRoundTrip(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	delete(m, "status")
	if meta, ok := m["metadata"].(map[string]interface{}); ok {
		delete(meta, "creationTimestamp")
	}
	return m, nil
}
